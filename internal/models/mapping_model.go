package models

import "time"

// MappingsTableName is the name of the table for security to industry mappings
var MappingsTableName = "security_industry_mappings"

// Mapping statuses. A mapping is confirmed iff some provider matched the
// security to an industry in the current or a previous run.
const (
	MappingStatusPending   = "pending"
	MappingStatusConfirmed = "confirmed"
)

// SecurityIndustryMappingModel represents the classification of one security.
// IndustryCode is nil while the security is unclassified; status, industry
// code and confidence move together: confirmed <=> IndustryCode != nil
// <=> Confidence > 0.
type SecurityIndustryMappingModel struct {
	SecurityCode string    `gorm:"primaryKey" json:"security_code"`
	IndustryCode *string   `gorm:"index" json:"industry_code"`
	IndustryName string    `json:"industry_name"`
	Status       string    `gorm:"index" json:"status"`
	Confidence   float64   `json:"confidence"`
	Source       string    `json:"source"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for the SecurityIndustryMapping model
func (SecurityIndustryMappingModel) TableName() string {
	return MappingsTableName
}

// QueryMappingsParams is the parameters for the mappings list endpoint
type QueryMappingsParams struct {
	IndustryCode string `query:"industry_code"`
	Status       string `query:"status"`
	Keyword      string `query:"keyword"`
	Page         int    `query:"page"`
	PageSize     int    `query:"page_size"`
}

// IndustryCount is one row of the per-industry distribution
type IndustryCount struct {
	IndustryCode string `json:"industry_code"`
	IndustryName string `json:"industry_name"`
	Count        int64  `json:"count"`
}

// MappingStatistics aggregates the mapping table for dashboards
type MappingStatistics struct {
	TotalMapped       int64           `json:"total_mapped"`
	TotalPending      int64           `json:"total_pending"`
	PerIndustryCounts []IndustryCount `json:"per_industry_counts"`
	LastRunAt         string          `json:"last_run_at"`
}
