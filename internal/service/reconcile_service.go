// Package service contains the service layer for the Industry Map API
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/config"
	"github.com/quantbots/industrymapapi/internal/models"
	"github.com/quantbots/industrymapapi/internal/provider"
	"github.com/quantbots/industrymapapi/internal/repository"
	"github.com/quantbots/industrymapapi/pkg/utils/zaplogger"
)

// taxonomyReader is the slice of the taxonomy repository the engine needs
type taxonomyReader interface {
	GetActiveLeaves() ([]models.IndustryNodeModel, error)
}

// securityReader is the slice of the security repository the engine needs
type securityReader interface {
	GetAllSecurities() ([]models.SecurityModel, error)
}

// mappingStore is the slice of the mapping repository the engine needs.
// The engine is the sole writer of the mapping table.
type mappingStore interface {
	GetAllMappings() ([]models.SecurityIndustryMappingModel, error)
	Upsert(*models.SecurityIndustryMappingModel) error
}

// runReporter receives the statistics of a completed run
type runReporter interface {
	PublishRunReport(report *models.RunReport) error
}

// ReconcileService walks the taxonomy leaves, pulls constituents from every
// configured provider, resolves conflicts deterministically and upserts the
// mapping table. One Run is one reconciliation pass.
type ReconcileService struct {
	taxonomy   taxonomyReader
	securities securityReader
	mappings   mappingStore
	adapters   []provider.Adapter
	retry      provider.RetryConfig
	reporter   runReporter
}

// NewReconcileService creates the reconciliation engine with the configured
// provider adapters and concrete repositories.
func NewReconcileService(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *ReconcileService {
	return &ReconcileService{
		taxonomy:   repository.NewTaxonomyRepository(db),
		securities: repository.NewSecurityRepository(db),
		mappings:   repository.NewMappingRepository(db),
		adapters: []provider.Adapter{
			provider.NewSwsAdapter(cfg.SwsBaseURL),
			provider.NewEastmoneyAdapter(cfg.EastmoneyBaseURL),
		},
		retry: provider.RetryConfig{
			MaxRetries: cfg.ReconcileMaxRetries,
			BaseDelay:  time.Duration(cfg.ReconcileBaseDelayMs) * time.Millisecond,
			MaxDelay:   time.Duration(cfg.ReconcileMaxDelayMs) * time.Millisecond,
		},
		reporter: NewMappingService(db, redisClient),
	}
}

// candidate is one provider-produced classification for a security
type candidate struct {
	industryCode string
	industryName string
	confidence   float64
	source       string
	priority     int
	leafIndex    int
}

// beats decides whether c wins over other. Higher source priority first, then
// higher confidence, then earlier leaf in traversal order, then source name
// so the outcome never depends on adapter completion order.
func (c candidate) beats(other candidate) bool {
	if c.priority != other.priority {
		return c.priority > other.priority
	}
	if c.confidence != other.confidence {
		return c.confidence > other.confidence
	}
	if c.leafIndex != other.leafIndex {
		return c.leafIndex < other.leafIndex
	}
	return c.source < other.source
}

// Run performs one reconciliation pass. Leaf and record level failures are
// contained and reported; only a store failure aborts the run.
func (s *ReconcileService) Run(ctx context.Context) (*models.RunReport, error) {
	start := time.Now()
	report := &models.RunReport{StartedAt: start}

	leaves, err := s.taxonomy.GetActiveLeaves()
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy leaves: %v", err)
	}
	report.LeavesProcessed = len(leaves)

	candidates, failedLeaves, abortedAdapters := s.collectCandidates(ctx, leaves)
	report.AdaptersAborted = abortedAdapters

	securities, err := s.securities.GetAllSecurities()
	if err != nil {
		return nil, fmt.Errorf("failed to load security universe: %v", err)
	}

	existing, err := s.mappings.GetAllMappings()
	if err != nil {
		return nil, fmt.Errorf("failed to load current mappings: %v", err)
	}
	existingByCode := make(map[string]models.SecurityIndustryMappingModel, len(existing))
	for _, m := range existing {
		existingByCode[m.SecurityCode] = m
	}

	s.applyCandidates(ctx, securities, candidates, existingByCode, failedLeaves, report)

	report.LeavesFailed = sortedKeys(failedLeaves)
	report.DurationMs = time.Since(start).Milliseconds()
	report.CompletedWithWarnings = len(report.LeavesFailed) > 0 ||
		len(report.AdaptersAborted) > 0 ||
		len(report.WriteFailures) > 0

	if s.reporter != nil {
		if err := s.reporter.PublishRunReport(report); err != nil {
			zaplogger.Warn("failed to publish run report", zaplogger.Fields{"error": err.Error()})
		}
	}

	zaplogger.Info("Reconciliation run completed", zaplogger.Fields{
		"leaves_processed":      report.LeavesProcessed,
		"leaves_failed":         len(report.LeavesFailed),
		"securities_confirmed":  report.SecuritiesConfirmed,
		"securities_demoted":    report.SecuritiesDemoted,
		"duration_ms":           report.DurationMs,
		"completed_with_warns":  report.CompletedWithWarnings,
	})

	return report, nil
}

// collectCandidates walks every leaf with every adapter. Adapters run
// concurrently against their independent remote services; within one adapter
// leaves are processed serially so its rate limit holds. Returns the winning
// candidate per normalized security code, the set of leaf codes that were not
// fully covered, and the adapters aborted by auth failures.
func (s *ReconcileService) collectCandidates(ctx context.Context, leaves []models.IndustryNodeModel) (map[string]candidate, map[string]bool, []string) {
	var mu sync.Mutex
	candidates := make(map[string]candidate)
	failedLeaves := make(map[string]bool)
	var abortedAdapters []string

	var wg sync.WaitGroup
	for _, adapter := range s.adapters {
		wg.Add(1)
		go func(a provider.Adapter) {
			defer wg.Done()

			for i, leaf := range leaves {
				if ctx.Err() != nil {
					// Cancelled: remaining leaves were not covered this run.
					mu.Lock()
					for _, rest := range leaves[i:] {
						failedLeaves[rest.Code] = true
					}
					mu.Unlock()
					return
				}

				constituents, err := provider.FetchAllPages(ctx, a, leaf.Code, s.retry)
				if err != nil {
					if provider.IsAuth(err) {
						zaplogger.Error("adapter aborted by auth failure", zaplogger.Fields{
							"source": a.Name(),
							"leaf":   leaf.Code,
							"error":  err.Error(),
						})
						mu.Lock()
						abortedAdapters = append(abortedAdapters, a.Name())
						for _, rest := range leaves[i:] {
							failedLeaves[rest.Code] = true
						}
						mu.Unlock()
						return
					}

					zaplogger.Warn("leaf fetch failed", zaplogger.Fields{
						"source": a.Name(),
						"leaf":   leaf.Code,
						"error":  err.Error(),
					})
					mu.Lock()
					failedLeaves[leaf.Code] = true
					mu.Unlock()
					continue
				}

				for _, c := range constituents {
					code, nerr := models.NormalizeCode(c.Market, c.Code)
					if nerr != nil {
						zaplogger.Warn("discarding unrecognized security code", zaplogger.Fields{
							"source": a.Name(),
							"leaf":   leaf.Code,
							"code":   c.Code,
							"market": c.Market,
						})
						continue
					}

					next := candidate{
						industryCode: leaf.Code,
						industryName: leaf.Name,
						confidence:   a.Confidence(),
						source:       a.Name(),
						priority:     a.Priority(),
						leafIndex:    i,
					}
					mu.Lock()
					current, ok := candidates[code]
					if !ok || next.beats(current) {
						candidates[code] = next
					}
					mu.Unlock()
				}
			}
		}(adapter)
	}
	wg.Wait()

	sort.Strings(abortedAdapters)
	return candidates, failedLeaves, abortedAdapters
}

// applyCandidates walks the registry universe and upserts the outcome of the
// run for every security: confirm winners, demote the rest unless their leaf
// was not covered this run.
func (s *ReconcileService) applyCandidates(
	ctx context.Context,
	securities []models.SecurityModel,
	candidates map[string]candidate,
	existingByCode map[string]models.SecurityIndustryMappingModel,
	failedLeaves map[string]bool,
	report *models.RunReport,
) {
	now := time.Now()

	for _, sec := range securities {
		if ctx.Err() != nil {
			// Cancelled mid-write: already-applied upserts stay in place.
			return
		}

		if cand, ok := candidates[sec.Code]; ok {
			industryCode := cand.industryCode
			m := &models.SecurityIndustryMappingModel{
				SecurityCode: sec.Code,
				IndustryCode: &industryCode,
				IndustryName: cand.industryName,
				Status:       models.MappingStatusConfirmed,
				Confidence:   cand.confidence,
				Source:       cand.source,
				UpdatedAt:    now,
			}
			if err := s.upsertWithRetry(m); err != nil {
				report.WriteFailures = append(report.WriteFailures, sec.Code)
				continue
			}
			report.SecuritiesConfirmed++
			continue
		}

		current, has := existingByCode[sec.Code]

		// A previously confirmed mapping under a leaf that failed this run is
		// left untouched so a partial outage cannot demote it.
		if has && current.Status == models.MappingStatusConfirmed &&
			current.IndustryCode != nil && failedLeaves[*current.IndustryCode] {
			continue
		}

		// Already pending with nothing to clear: no write needed.
		if has && current.Status == models.MappingStatusPending && current.IndustryCode == nil {
			continue
		}

		wasConfirmed := has && current.Status == models.MappingStatusConfirmed
		m := &models.SecurityIndustryMappingModel{
			SecurityCode: sec.Code,
			IndustryCode: nil,
			IndustryName: "",
			Status:       models.MappingStatusPending,
			Confidence:   0.0,
			Source:       "",
			UpdatedAt:    now,
		}
		if err := s.upsertWithRetry(m); err != nil {
			report.WriteFailures = append(report.WriteFailures, sec.Code)
			continue
		}
		if wasConfirmed {
			report.SecuritiesDemoted++
		}
	}
}

// upsertWithRetry retries a failed mapping write once before giving up
func (s *ReconcileService) upsertWithRetry(m *models.SecurityIndustryMappingModel) error {
	err := s.mappings.Upsert(m)
	if err == nil {
		return nil
	}
	zaplogger.Warn("mapping upsert failed, retrying once", zaplogger.Fields{
		"security_code": m.SecurityCode,
		"error":         err.Error(),
	})
	if err = s.mappings.Upsert(m); err != nil {
		zaplogger.Error("mapping upsert failed after retry", zaplogger.Fields{
			"security_code": m.SecurityCode,
			"error":         err.Error(),
		})
		return err
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
