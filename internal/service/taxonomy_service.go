package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/models"
	"github.com/quantbots/industrymapapi/internal/repository"
	"github.com/quantbots/industrymapapi/pkg/utils/state"
	"github.com/quantbots/industrymapapi/pkg/utils/zaplogger"
)

var taxonomyUpdatedAtKey = "TAXONOMY_UPDATED_AT"

// taxonomyNodePayload is one node as published by the primary authority
type taxonomyNodePayload struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	ParentCode string `json:"parent_code"`
	Status     string `json:"status"`
}

// TaxonomyService refreshes the industry taxonomy from the primary authority
type TaxonomyService struct {
	client    *http.Client
	repo      *repository.TaxonomyRepository
	state     *state.State
	sourceURL string
}

// NewTaxonomyService creates a new taxonomy service
func NewTaxonomyService(db *gorm.DB, sourceURL string) *TaxonomyService {
	stateManager, err := state.NewState(db)
	if err != nil {
		zaplogger.Fatal("failed to create state manager", zaplogger.Fields{"error": err})
	}
	return &TaxonomyService{
		client:    &http.Client{Timeout: 30 * time.Second},
		repo:      repository.NewTaxonomyRepository(db),
		state:     stateManager,
		sourceURL: sourceURL,
	}
}

// UpdateTaxonomy pulls the industry tree from the primary authority and
// upserts it. Refreshed at most once per day; nodes that violate the forest
// invariant are skipped with a warning.
func (s *TaxonomyService) UpdateTaxonomy() (int64, error) {
	taxonomyUpdatedAtValue, err := s.state.Get(taxonomyUpdatedAtKey)
	if err == nil && !refreshRequired(taxonomyUpdatedAtValue) {
		zaplogger.Info("Taxonomy update not required", zaplogger.Fields{
			taxonomyUpdatedAtKey: taxonomyUpdatedAtValue,
		})
		return 0, nil
	}

	resp, err := s.client.Get(s.sourceURL)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch taxonomy: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch taxonomy: status %d", resp.StatusCode)
	}

	var payload []taxonomyNodePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to parse taxonomy payload: %v", err)
	}

	nodes := validateForest(payload)
	if len(nodes) == 0 {
		return 0, fmt.Errorf("taxonomy payload contained no valid nodes")
	}

	affected, err := s.repo.UpsertNodes(nodes, 200)
	if err != nil {
		return 0, err
	}

	if err := s.state.Set(taxonomyUpdatedAtKey, time.Now().Format("2006-01-02 15:04:05")); err != nil {
		return 0, fmt.Errorf("failed to update state: %v", err)
	}

	zaplogger.Info("Taxonomy updated", zaplogger.Fields{
		"nodes_received": len(payload),
		"nodes_upserted": affected,
	})

	return affected, nil
}

// GetActiveLeaves returns the active deepest-level taxonomy nodes
func (s *TaxonomyService) GetActiveLeaves() ([]models.IndustryNodeModel, error) {
	return s.repo.GetActiveLeaves()
}

// GetNodesRecordCount returns the number of taxonomy nodes stored
func (s *TaxonomyService) GetNodesRecordCount() (int64, error) {
	return s.repo.GetNodesRecordCount()
}

// validateForest keeps the nodes that satisfy the taxonomy invariants:
// level >= 1, level-1 nodes have no parent, deeper nodes reference an
// existing node exactly one level up.
func validateForest(payload []taxonomyNodePayload) []models.IndustryNodeModel {
	byCode := make(map[string]taxonomyNodePayload, len(payload))
	for _, p := range payload {
		byCode[p.Code] = p
	}

	nodes := make([]models.IndustryNodeModel, 0, len(payload))
	for _, p := range payload {
		if p.Code == "" || p.Level < 1 {
			zaplogger.Warn("skipping invalid taxonomy node", zaplogger.Fields{
				"code": p.Code, "level": p.Level,
			})
			continue
		}

		var parentCode *string
		if p.Level == 1 {
			if p.ParentCode != "" {
				zaplogger.Warn("skipping level-1 node with a parent", zaplogger.Fields{
					"code": p.Code, "parent_code": p.ParentCode,
				})
				continue
			}
		} else {
			parent, ok := byCode[p.ParentCode]
			if !ok || parent.Level != p.Level-1 {
				zaplogger.Warn("skipping node with missing or mismatched parent", zaplogger.Fields{
					"code": p.Code, "level": p.Level, "parent_code": p.ParentCode,
				})
				continue
			}
			pc := p.ParentCode
			parentCode = &pc
		}

		status := p.Status
		if status != models.IndustryStatusActive && status != models.IndustryStatusInactive {
			status = models.IndustryStatusActive
		}

		nodes = append(nodes, models.IndustryNodeModel{
			Code:       p.Code,
			Name:       p.Name,
			Level:      p.Level,
			ParentCode: parentCode,
			Status:     status,
		})
	}

	return nodes
}
