package models

import (
	"errors"
	"strings"
	"time"
)

// SecuritiesTableName is the name of the table for securities
var SecuritiesTableName = "securities"

// Markets covered by the universe
const (
	MarketA  = "A"
	MarketHK = "HK"
)

// ErrUnrecognizedCode is returned when a raw security code fits no known
// market pattern and must be discarded.
var ErrUnrecognizedCode = errors.New("security code does not match any known market pattern")

// marketCodeWidths maps a market to its fixed-width, zero-padded code length.
var marketCodeWidths = map[string]int{
	MarketA:  6,
	MarketHK: 5,
}

// SecurityModel represents one security in the canonical universe
type SecurityModel struct {
	Code      string    `gorm:"primaryKey" json:"code"`
	Name      string    `json:"name"`
	Market    string    `gorm:"index" json:"market"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TableName specifies the table name for the Security model
func (SecurityModel) TableName() string {
	return SecuritiesTableName
}

// NormalizeCode normalizes a raw security code to the canonical fixed-width,
// zero-padded numeric form for the given market. Codes that are empty, carry
// non-digit characters, or exceed the market width are rejected with
// ErrUnrecognizedCode.
func NormalizeCode(market, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrUnrecognizedCode
	}

	width, ok := marketCodeWidths[market]
	if !ok {
		return "", ErrUnrecognizedCode
	}
	if len(code) > width {
		return "", ErrUnrecognizedCode
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", ErrUnrecognizedCode
		}
	}

	return strings.Repeat("0", width-len(code)) + code, nil
}
