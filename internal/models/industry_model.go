// Package models contains the models for the Industry Map API
package models

import "time"

// IndustryNodesTableName is the name of the table for industry taxonomy nodes
var IndustryNodesTableName = "industry_nodes"

// Industry node statuses
const (
	IndustryStatusActive   = "active"
	IndustryStatusInactive = "inactive"
)

// IndustryNodeModel represents one node of the hierarchical industry taxonomy.
// Nodes form a forest: ParentCode is nil only for level-1 nodes and otherwise
// references an existing node one level up.
type IndustryNodeModel struct {
	Code       string    `gorm:"primaryKey" json:"code"`
	Name       string    `json:"name"`
	Level      int       `gorm:"index" json:"level"`
	ParentCode *string   `gorm:"index" json:"parent_code"`
	Status     string    `gorm:"index" json:"status"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TableName specifies the table name for the IndustryNode model
func (IndustryNodeModel) TableName() string {
	return IndustryNodesTableName
}
