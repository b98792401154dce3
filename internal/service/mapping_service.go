package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/models"
	"github.com/quantbots/industrymapapi/internal/repository"
	"github.com/quantbots/industrymapapi/pkg/utils/state"
	"github.com/quantbots/industrymapapi/pkg/utils/zaplogger"
)

var reconcileLastRunAtKey = "RECONCILE_LAST_RUN_AT"

var (
	statsCacheKey    = "industrymap:statistics"
	lastRunReportKey = "industrymap:lastrun"
	statsCacheTTL    = time.Minute
)

// MappingService is the read side of the mapping table, plus the run
// reporter that persists each run's statistics.
type MappingService struct {
	repo        *repository.MappingRepository
	state       *state.State
	redisClient *redis.Client
}

// NewMappingService creates a new mapping service
func NewMappingService(db *gorm.DB, redisClient *redis.Client) *MappingService {
	stateManager, err := state.NewState(db)
	if err != nil {
		zaplogger.Fatal("failed to create state manager", zaplogger.Fields{"error": err})
	}
	return &MappingService{
		repo:        repository.NewMappingRepository(db),
		state:       stateManager,
		redisClient: redisClient,
	}
}

// QueryMappings returns one page of mappings matching the filters
func (s *MappingService) QueryMappings(params models.QueryMappingsParams) ([]models.SecurityIndustryMappingModel, int64, error) {
	return s.repo.QueryMappings(params)
}

// GetStatistics returns the aggregate mapping statistics, cached briefly in
// redis since dashboards poll it.
func (s *MappingService) GetStatistics() (*models.MappingStatistics, error) {
	ctx := context.Background()

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, statsCacheKey).Result()
		if err == nil {
			var stats models.MappingStatistics
			if jsonErr := json.Unmarshal([]byte(cached), &stats); jsonErr == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.repo.GetStatistics()
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping statistics: %v", err)
	}

	lastRunAt, err := s.state.Get(reconcileLastRunAtKey)
	if err == nil {
		stats.LastRunAt = lastRunAt
	}

	if s.redisClient != nil {
		if payload, jsonErr := json.Marshal(stats); jsonErr == nil {
			s.redisClient.Set(ctx, statsCacheKey, payload, statsCacheTTL)
		}
	}

	return stats, nil
}

// PublishRunReport stores the report of a completed run and invalidates the
// statistics cache.
func (s *MappingService) PublishRunReport(report *models.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}

	if s.redisClient != nil {
		ctx := context.Background()
		s.redisClient.Set(ctx, lastRunReportKey, payload, 0)
		s.redisClient.Del(ctx, statsCacheKey)
	}

	return s.state.Set(reconcileLastRunAtKey, report.StartedAt.Format("2006-01-02 15:04:05"))
}

// GetLastRunReport returns the most recently stored run report
func (s *MappingService) GetLastRunReport() (*models.RunReport, error) {
	if s.redisClient == nil {
		return nil, fmt.Errorf("run reports are not available without redis")
	}

	payload, err := s.redisClient.Get(context.Background(), lastRunReportKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("no reconciliation run recorded yet")
	}
	if err != nil {
		return nil, err
	}

	var report models.RunReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
