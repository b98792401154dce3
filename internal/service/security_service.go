package service

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/models"
	"github.com/quantbots/industrymapapi/internal/repository"
	"github.com/quantbots/industrymapapi/pkg/utils/state"
	"github.com/quantbots/industrymapapi/pkg/utils/zaplogger"
)

var securitiesUpdatedAtKey = "SECURITIES_UPDATED_AT"

// SecurityService refreshes the canonical security universe from the
// full-universe CSV dump published by the registry provider.
type SecurityService struct {
	client      *http.Client
	repo        *repository.SecurityRepository
	mappingRepo *repository.MappingRepository
	state       *state.State
	sourceURL   string
}

// NewSecurityService creates a new security service
func NewSecurityService(db *gorm.DB, sourceURL string) *SecurityService {
	stateManager, err := state.NewState(db)
	if err != nil {
		zaplogger.Fatal("failed to create state manager", zaplogger.Fields{"error": err})
	}
	return &SecurityService{
		client:      &http.Client{Timeout: 60 * time.Second},
		repo:        repository.NewSecurityRepository(db),
		mappingRepo: repository.NewMappingRepository(db),
		state:       stateManager,
		sourceURL:   sourceURL,
	}
}

// UpdateSecurities replaces the security universe from the provider's CSV
// dump (columns: code, name, market) and seeds a pending mapping row for
// every security that does not have one yet. Mapping rows are never deleted
// here; history survives universe refreshes.
func (s *SecurityService) UpdateSecurities() (int64, error) {
	securitiesUpdatedAtValue, err := s.state.Get(securitiesUpdatedAtKey)
	if err == nil && !refreshRequired(securitiesUpdatedAtValue) {
		zaplogger.Info("Securities update not required", zaplogger.Fields{
			securitiesUpdatedAtKey: securitiesUpdatedAtValue,
		})
		return 0, nil
	}

	resp, err := s.client.Get(s.sourceURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch securities: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch securities: status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to parse CSV: %v", err)
	}
	if len(records) < 2 {
		return 0, fmt.Errorf("securities CSV contained no data rows")
	}

	records = records[1:] // Skip header row

	securities := make([]models.SecurityModel, 0, len(records))
	codes := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if len(record) < 3 {
			continue
		}
		market := strings.ToUpper(strings.TrimSpace(record[2]))
		code, nerr := models.NormalizeCode(market, record[0])
		if nerr != nil {
			zaplogger.Warn("discarding unrecognized security code", zaplogger.Fields{
				"code":   record[0],
				"market": market,
			})
			continue
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		securities = append(securities, models.SecurityModel{
			Code:   code,
			Name:   strings.TrimSpace(record[1]),
			Market: market,
		})
		codes = append(codes, code)
	}

	if err := s.repo.TruncateSecurities(); err != nil {
		return 0, fmt.Errorf("failed to truncate table: %v", err)
	}

	batchSize := 500
	var totalInserted int64 = 0
	for i := 0; i < len(securities); i += batchSize {
		end := i + batchSize
		if end > len(securities) {
			end = len(securities)
		}
		inserted, err := s.repo.InsertSecurities(securities[i:end])
		if err != nil {
			return totalInserted, fmt.Errorf("failed to insert batch starting at index %d: %v", i, err)
		}
		totalInserted += inserted
	}

	// Seed pending mapping rows for securities new to the registry
	created, err := s.mappingRepo.EnsurePending(codes)
	if err != nil {
		return totalInserted, fmt.Errorf("failed to seed pending mappings: %v", err)
	}

	if err := s.state.Set(securitiesUpdatedAtKey, time.Now().Format("2006-01-02 15:04:05")); err != nil {
		return 0, fmt.Errorf("failed to update state: %v", err)
	}

	zaplogger.Info("Securities updated", zaplogger.Fields{
		"totalInserted":   totalInserted,
		"pendingCreated":  created,
	})

	return totalInserted, nil
}

// GetSecuritiesRecordCount returns the number of records in the securities table
func (s *SecurityService) GetSecuritiesRecordCount() (int64, error) {
	return s.repo.GetSecuritiesRecordCount()
}
