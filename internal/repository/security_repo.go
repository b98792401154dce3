package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/models"
)

// SecurityRepository is the database repository for the security universe
type SecurityRepository struct {
	DB *gorm.DB
}

// NewSecurityRepository creates a new security repository
func NewSecurityRepository(db *gorm.DB) *SecurityRepository {
	return &SecurityRepository{DB: db}
}

// TruncateSecurities truncates the securities table
func (r *SecurityRepository) TruncateSecurities() error {
	return r.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s", models.SecuritiesTableName)).Error
}

// InsertSecurities inserts a batch of securities into the database
func (r *SecurityRepository) InsertSecurities(securities []models.SecurityModel) (int64, error) {
	if len(securities) == 0 {
		return 0, nil
	}
	result := r.DB.Create(&securities)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert securities batch: %v", result.Error)
	}
	return result.RowsAffected, nil
}

// GetAllSecurities returns the full universe, ordered by code
func (r *SecurityRepository) GetAllSecurities() ([]models.SecurityModel, error) {
	var securities []models.SecurityModel
	if err := r.DB.Order("code ASC").Find(&securities).Error; err != nil {
		return nil, err
	}
	return securities, nil
}

// GetSecuritiesRecordCount returns the number of records in the securities table
func (r *SecurityRepository) GetSecuritiesRecordCount() (int64, error) {
	var count int64
	err := r.DB.Model(&models.SecurityModel{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get securities record count: %v", err)
	}
	return count, nil
}
