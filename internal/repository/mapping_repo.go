package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quantbots/industrymapapi/internal/models"
)

// MappingRepository is the database repository for security-industry mappings.
// The reconciliation engine is the only writer; everything else reads.
type MappingRepository struct {
	DB *gorm.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{DB: db}
}

// Upsert writes one mapping, keyed on security_code. Last writer wins.
func (r *MappingRepository) Upsert(m *models.SecurityIndustryMappingModel) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "security_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"industry_code", "industry_name", "status", "confidence", "source", "updated_at"}),
	}).Create(m).Error
}

// BulkUpsert writes mappings in chunks with the same per-row semantics as Upsert
func (r *MappingRepository) BulkUpsert(mappings []models.SecurityIndustryMappingModel, chunkSize int) (int64, error) {
	if len(mappings) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = 200
	}

	var affected int64
	for i := 0; i < len(mappings); i += chunkSize {
		end := i + chunkSize
		if end > len(mappings) {
			end = len(mappings)
		}
		batch := mappings[i:end]
		result := r.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "security_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"industry_code", "industry_name", "status", "confidence", "source", "updated_at"}),
		}).Create(&batch)
		if result.Error != nil {
			return affected, fmt.Errorf("failed to upsert mappings batch starting at index %d: %v", i, result.Error)
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// EnsurePending creates pending mapping rows for securities that have none
// yet. Existing rows are left untouched.
func (r *MappingRepository) EnsurePending(securityCodes []string) (int64, error) {
	if len(securityCodes) == 0 {
		return 0, nil
	}

	rows := make([]models.SecurityIndustryMappingModel, 0, len(securityCodes))
	for _, code := range securityCodes {
		rows = append(rows, models.SecurityIndustryMappingModel{
			SecurityCode: code,
			Status:       models.MappingStatusPending,
		})
	}

	var affected int64
	chunkSize := 200
	for i := 0; i < len(rows); i += chunkSize {
		end := i + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[i:end]
		result := r.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "security_code"}},
			DoNothing: true,
		}).Create(&batch)
		if result.Error != nil {
			return affected, fmt.Errorf("failed to create pending mappings batch starting at index %d: %v", i, result.Error)
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// GetAllMappings returns every mapping row, ordered by security code
func (r *MappingRepository) GetAllMappings() ([]models.SecurityIndustryMappingModel, error) {
	var mappings []models.SecurityIndustryMappingModel
	if err := r.DB.Order("security_code ASC").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// QueryMappings returns one page of mappings matching the filters, plus the
// total match count for pagination.
func (r *MappingRepository) QueryMappings(params models.QueryMappingsParams) ([]models.SecurityIndustryMappingModel, int64, error) {
	query := r.DB.Model(&models.SecurityIndustryMappingModel{})

	if params.IndustryCode != "" {
		query = query.Where("industry_code = ?", params.IndustryCode)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		namedSecurities := r.DB.Model(&models.SecurityModel{}).
			Select("code").
			Where("name LIKE ?", keyword)
		query = query.Where(
			"security_code LIKE ? OR industry_name LIKE ? OR security_code IN (?)",
			keyword, keyword, namedSecurities,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	var mappings []models.SecurityIndustryMappingModel
	err := query.Order("security_code ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&mappings).Error
	if err != nil {
		return nil, 0, err
	}

	return mappings, total, nil
}

// GetStatistics aggregates the mapping table for the run reporter and dashboards
func (r *MappingRepository) GetStatistics() (*models.MappingStatistics, error) {
	stats := &models.MappingStatistics{}

	err := r.DB.Model(&models.SecurityIndustryMappingModel{}).
		Where("status = ?", models.MappingStatusConfirmed).
		Count(&stats.TotalMapped).Error
	if err != nil {
		return nil, err
	}

	err = r.DB.Model(&models.SecurityIndustryMappingModel{}).
		Where("status = ?", models.MappingStatusPending).
		Count(&stats.TotalPending).Error
	if err != nil {
		return nil, err
	}

	err = r.DB.Model(&models.SecurityIndustryMappingModel{}).
		Select("industry_code, industry_name, COUNT(*) AS count").
		Where("status = ?", models.MappingStatusConfirmed).
		Group("industry_code, industry_name").
		Order("count DESC").
		Scan(&stats.PerIndustryCounts).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
