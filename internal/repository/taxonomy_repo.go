package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantbots/industrymapapi/internal/models"
)

// TaxonomyRepository is the database repository for industry taxonomy nodes
type TaxonomyRepository struct {
	DB *gorm.DB
}

// NewTaxonomyRepository creates a new taxonomy repository
func NewTaxonomyRepository(db *gorm.DB) *TaxonomyRepository {
	return &TaxonomyRepository{DB: db}
}

// UpsertNodes inserts or updates taxonomy nodes in chunks, keyed on code
func (r *TaxonomyRepository) UpsertNodes(nodes []models.IndustryNodeModel, chunkSize int) (int64, error) {
	if len(nodes) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = 200
	}

	var affected int64
	for i := 0; i < len(nodes); i += chunkSize {
		end := i + chunkSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[i:end]
		result := r.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "level", "parent_code", "status", "updated_at"}),
		}).Create(&batch)
		if result.Error != nil {
			return affected, fmt.Errorf("failed to upsert taxonomy batch starting at index %d: %v", i, result.Error)
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// GetActiveLeaves returns the active nodes with no active children, ordered
// by code so that traversal is deterministic across runs.
func (r *TaxonomyRepository) GetActiveLeaves() ([]models.IndustryNodeModel, error) {
	parentCodes := r.DB.Model(&models.IndustryNodeModel{}).
		Select("parent_code").
		Where("status = ? AND parent_code IS NOT NULL", models.IndustryStatusActive)

	var leaves []models.IndustryNodeModel
	err := r.DB.
		Where("status = ?", models.IndustryStatusActive).
		Where("code NOT IN (?)", parentCodes).
		Order("code ASC").
		Find(&leaves).Error
	if err != nil {
		return nil, err
	}
	return leaves, nil
}

// GetNodeByCode returns one taxonomy node
func (r *TaxonomyRepository) GetNodeByCode(code string) (models.IndustryNodeModel, error) {
	var node models.IndustryNodeModel
	err := r.DB.Where("code = ?", code).First(&node).Error
	return node, err
}

// GetNodesRecordCount returns the number of records in the taxonomy table
func (r *TaxonomyRepository) GetNodesRecordCount() (int64, error) {
	var count int64
	err := r.DB.Model(&models.IndustryNodeModel{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get taxonomy record count: %v", err)
	}
	return count, nil
}
