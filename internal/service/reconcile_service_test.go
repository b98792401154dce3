package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbots/industrymapapi/internal/models"
	"github.com/quantbots/industrymapapi/internal/provider"
)

// --- Fakes ---

type fakeTaxonomy struct {
	leaves []models.IndustryNodeModel
}

func (f *fakeTaxonomy) GetActiveLeaves() ([]models.IndustryNodeModel, error) {
	return f.leaves, nil
}

type fakeSecurities struct {
	securities []models.SecurityModel
}

func (f *fakeSecurities) GetAllSecurities() ([]models.SecurityModel, error) {
	return f.securities, nil
}

type fakeMappingStore struct {
	mu      sync.Mutex
	rows    map[string]models.SecurityIndustryMappingModel
	failFor map[string]int
	upserts int
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{
		rows:    make(map[string]models.SecurityIndustryMappingModel),
		failFor: make(map[string]int),
	}
}

func (f *fakeMappingStore) GetAllMappings() ([]models.SecurityIndustryMappingModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mappings := make([]models.SecurityIndustryMappingModel, 0, len(f.rows))
	for _, m := range f.rows {
		mappings = append(mappings, m)
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].SecurityCode < mappings[j].SecurityCode })
	return mappings, nil
}

func (f *fakeMappingStore) Upsert(m *models.SecurityIndustryMappingModel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if remaining := f.failFor[m.SecurityCode]; remaining > 0 {
		f.failFor[m.SecurityCode] = remaining - 1
		return fmt.Errorf("simulated write failure for %s", m.SecurityCode)
	}
	f.rows[m.SecurityCode] = *m
	return nil
}

func (f *fakeMappingStore) get(code string) (models.SecurityIndustryMappingModel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[code]
	return m, ok
}

// fakeAdapter serves canned constituents per leaf, paginated, with optional
// per-leaf errors and an artificial delay to shuffle completion order.
type fakeAdapter struct {
	name       string
	priority   int
	confidence float64
	pageSize   int
	delay      time.Duration
	leaves     map[string][]provider.Constituent
	failLeaves map[string]error
}

func (f *fakeAdapter) Name() string        { return f.name }
func (f *fakeAdapter) Priority() int       { return f.priority }
func (f *fakeAdapter) Confidence() float64 { return f.confidence }

func (f *fakeAdapter) FetchConstituents(ctx context.Context, leafCode string, page int) ([]provider.Constituent, bool, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.failLeaves[leafCode]; ok {
		return nil, false, err
	}

	items := f.leaves[leafCode]
	pageSize := f.pageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil, false, nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], end < len(items), nil
}

func newTestEngine(taxonomy *fakeTaxonomy, securities *fakeSecurities, store *fakeMappingStore, adapters ...provider.Adapter) *ReconcileService {
	return &ReconcileService{
		taxonomy:   taxonomy,
		securities: securities,
		mappings:   store,
		adapters:   adapters,
		retry: provider.RetryConfig{
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}
}

func leaf(code, name string) models.IndustryNodeModel {
	return models.IndustryNodeModel{Code: code, Name: name, Level: 3, Status: models.IndustryStatusActive}
}

func security(code, name, market string) models.SecurityModel {
	return models.SecurityModel{Code: code, Name: name, Market: market}
}

func constituent(code, name string) provider.Constituent {
	return provider.Constituent{Code: code, Name: name, Market: models.MarketA}
}

func strPtr(s string) *string { return &s }

// --- Tests ---

func TestRunPrimaryAuthorityWinsConflicts(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{
		leaf("801010", "Agriculture"),
		leaf("801780", "Banking"),
	}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
	}}
	store := newFakeMappingStore()

	primary := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{
			"801010": {constituent("000001", "Ping An Bank")},
		},
	}
	secondary := &fakeAdapter{
		name: "eastmoney", priority: 10, confidence: 0.6,
		leaves: map[string][]provider.Constituent{
			"801780": {constituent("000001", "Ping An Bank")},
		},
	}

	report, err := newTestEngine(taxonomy, securities, store, primary, secondary).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.LeavesProcessed)
	assert.Empty(t, report.LeavesFailed)
	assert.Equal(t, 1, report.SecuritiesConfirmed)
	assert.False(t, report.CompletedWithWarnings)

	m, ok := store.get("000001")
	require.True(t, ok)
	require.NotNil(t, m.IndustryCode)
	assert.Equal(t, "801010", *m.IndustryCode)
	assert.Equal(t, "Agriculture", m.IndustryName)
	assert.Equal(t, models.MappingStatusConfirmed, m.Status)
	assert.Equal(t, 1.0, m.Confidence)
	assert.Equal(t, "sws", m.Source)
}

func TestRunDemotesUncoveredSecurity(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{leaf("801010", "Agriculture")}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("600000", "Pufa Bank", models.MarketA),
	}}
	store := newFakeMappingStore()
	store.rows["600000"] = models.SecurityIndustryMappingModel{
		SecurityCode: "600000",
		IndustryCode: strPtr("801780"),
		IndustryName: "Banking",
		Status:       models.MappingStatusConfirmed,
		Confidence:   1.0,
		Source:       "sws",
	}

	adapter := &fakeAdapter{name: "sws", priority: 100, confidence: 1.0, leaves: map[string][]provider.Constituent{}}

	report, err := newTestEngine(taxonomy, securities, store, adapter).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SecuritiesDemoted)

	m, ok := store.get("600000")
	require.True(t, ok)
	assert.Nil(t, m.IndustryCode)
	assert.Equal(t, "", m.IndustryName)
	assert.Equal(t, models.MappingStatusPending, m.Status)
	assert.Equal(t, 0.0, m.Confidence)
}

func TestRunIsIdempotent(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{
		leaf("801010", "Agriculture"),
		leaf("801780", "Banking"),
	}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
		security("600000", "Pufa Bank", models.MarketA),
		security("000998", "Longping Hi-Tech", models.MarketA),
	}}
	store := newFakeMappingStore()

	adapter := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		pageSize: 1,
		leaves: map[string][]provider.Constituent{
			"801010": {constituent("000998", "Longping Hi-Tech")},
			"801780": {constituent("000001", "Ping An Bank"), constituent("600000", "Pufa Bank")},
		},
	}

	engine := newTestEngine(taxonomy, securities, store, adapter)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	first, err := store.GetAllMappings()
	require.NoError(t, err)

	_, err = engine.Run(context.Background())
	require.NoError(t, err)
	second, err := store.GetAllMappings()
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		first[i].UpdatedAt = time.Time{}
		second[i].UpdatedAt = time.Time{}
		assert.Equal(t, first[i], second[i])
	}
}

func TestTieBreakPrefersEarlierLeafRegardlessOfCompletionOrder(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{
		leaf("801010", "Agriculture"),
		leaf("801780", "Banking"),
	}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
	}}

	for i := 0; i < 20; i++ {
		store := newFakeMappingStore()
		a := &fakeAdapter{
			name: "alpha", priority: 10, confidence: 0.6,
			delay: time.Duration(rand.Intn(5)) * time.Millisecond,
			leaves: map[string][]provider.Constituent{
				"801780": {constituent("000001", "Ping An Bank")},
			},
		}
		b := &fakeAdapter{
			name: "beta", priority: 10, confidence: 0.6,
			delay: time.Duration(rand.Intn(5)) * time.Millisecond,
			leaves: map[string][]provider.Constituent{
				"801010": {constituent("000001", "Ping An Bank")},
			},
		}

		_, err := newTestEngine(taxonomy, securities, store, a, b).Run(context.Background())
		require.NoError(t, err)

		m, ok := store.get("000001")
		require.True(t, ok)
		require.NotNil(t, m.IndustryCode)
		assert.Equal(t, "801010", *m.IndustryCode, "iteration %d", i)
	}
}

func TestStatusInvariantHolds(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{
		leaf("801010", "Agriculture"),
		leaf("801780", "Banking"),
	}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
		security("600000", "Pufa Bank", models.MarketA),
		security("000002", "Wanke A", models.MarketA),
	}}
	store := newFakeMappingStore()

	primary := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{
			"801780": {constituent("000001", "Ping An Bank")},
		},
	}
	secondary := &fakeAdapter{
		name: "eastmoney", priority: 10, confidence: 0.6,
		leaves: map[string][]provider.Constituent{
			"801010": {constituent("000002", "Wanke A")},
		},
	}

	_, err := newTestEngine(taxonomy, securities, store, primary, secondary).Run(context.Background())
	require.NoError(t, err)

	mappings, err := store.GetAllMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 3)
	for _, m := range mappings {
		confirmed := m.Status == models.MappingStatusConfirmed
		assert.Equal(t, confirmed, m.IndustryCode != nil, "code %s", m.SecurityCode)
		assert.Equal(t, confirmed, m.Confidence > 0, "code %s", m.SecurityCode)
	}
}

func TestNoFalseDemotionOnLeafFailure(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{
		leaf("801010", "Agriculture"),
		leaf("801780", "Banking"),
	}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("600000", "Pufa Bank", models.MarketA),
	}}
	store := newFakeMappingStore()
	store.rows["600000"] = models.SecurityIndustryMappingModel{
		SecurityCode: "600000",
		IndustryCode: strPtr("801780"),
		IndustryName: "Banking",
		Status:       models.MappingStatusConfirmed,
		Confidence:   1.0,
		Source:       "sws",
	}

	adapter := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{
			"801010": {},
		},
		failLeaves: map[string]error{
			"801780": &provider.TransientError{Err: fmt.Errorf("upstream down")},
		},
	}

	report, err := newTestEngine(taxonomy, securities, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"801780"}, report.LeavesFailed)
	assert.Equal(t, 0, report.SecuritiesDemoted)
	assert.True(t, report.CompletedWithWarnings)

	m, ok := store.get("600000")
	require.True(t, ok)
	require.NotNil(t, m.IndustryCode)
	assert.Equal(t, "801780", *m.IndustryCode)
	assert.Equal(t, models.MappingStatusConfirmed, m.Status)
}

func TestUnrecognizedCodesAreDiscarded(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{leaf("801010", "Agriculture")}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
	}}
	store := newFakeMappingStore()

	adapter := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{
			"801010": {
				{Code: "12a", Name: "Broken", Market: models.MarketA},
				constituent("1", "Ping An Bank"),
			},
		},
	}

	_, err := newTestEngine(taxonomy, securities, store, adapter).Run(context.Background())
	require.NoError(t, err)

	mappings, err := store.GetAllMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "000001", mappings[0].SecurityCode)
	assert.Equal(t, models.MappingStatusConfirmed, mappings[0].Status)
}

func TestWriteFailuresAreContained(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{leaf("801010", "Agriculture")}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
		security("000002", "Wanke A", models.MarketA),
	}}
	store := newFakeMappingStore()
	// Fails the first attempt and the retry.
	store.failFor["000001"] = 2

	adapter := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{
			"801010": {constituent("000001", "Ping An Bank"), constituent("000002", "Wanke A")},
		},
	}

	report, err := newTestEngine(taxonomy, securities, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"000001"}, report.WriteFailures)
	assert.Equal(t, 1, report.SecuritiesConfirmed)
	assert.True(t, report.CompletedWithWarnings)

	_, ok := store.get("000001")
	assert.False(t, ok)
	m, ok := store.get("000002")
	require.True(t, ok)
	assert.Equal(t, models.MappingStatusConfirmed, m.Status)
}

func TestWriteFailureRetriesOnceAndRecovers(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{leaf("801010", "Agriculture")}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
	}}
	store := newFakeMappingStore()
	// Fails the first attempt only; the retry succeeds.
	store.failFor["000001"] = 1

	adapter := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{
			"801010": {constituent("000001", "Ping An Bank")},
		},
	}

	report, err := newTestEngine(taxonomy, securities, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.WriteFailures)
	assert.Equal(t, 1, report.SecuritiesConfirmed)

	m, ok := store.get("000001")
	require.True(t, ok)
	assert.Equal(t, models.MappingStatusConfirmed, m.Status)
}

func TestAuthFailureAbortsAdapterOnly(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{
		leaf("801010", "Agriculture"),
		leaf("801780", "Banking"),
	}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("000001", "Ping An Bank", models.MarketA),
	}}
	store := newFakeMappingStore()

	broken := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		failLeaves: map[string]error{
			"801010": &provider.AuthError{Err: fmt.Errorf("token expired")},
		},
	}
	working := &fakeAdapter{
		name: "eastmoney", priority: 10, confidence: 0.6,
		leaves: map[string][]provider.Constituent{
			"801780": {constituent("000001", "Ping An Bank")},
		},
	}

	report, err := newTestEngine(taxonomy, securities, store, broken, working).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"sws"}, report.AdaptersAborted)
	assert.True(t, report.CompletedWithWarnings)

	// The working secondary still classifies the security.
	m, ok := store.get("000001")
	require.True(t, ok)
	require.NotNil(t, m.IndustryCode)
	assert.Equal(t, "801780", *m.IndustryCode)
	assert.Equal(t, "eastmoney", m.Source)
}

func TestCancelledRunLeavesMappingsUntouched(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{leaf("801010", "Agriculture")}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("600000", "Pufa Bank", models.MarketA),
	}}
	store := newFakeMappingStore()
	store.rows["600000"] = models.SecurityIndustryMappingModel{
		SecurityCode: "600000",
		IndustryCode: strPtr("801010"),
		IndustryName: "Agriculture",
		Status:       models.MappingStatusConfirmed,
		Confidence:   1.0,
		Source:       "sws",
	}

	adapter := &fakeAdapter{
		name: "sws", priority: 100, confidence: 1.0,
		leaves: map[string][]provider.Constituent{"801010": {}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestEngine(taxonomy, securities, store, adapter).Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.CompletedWithWarnings)
	assert.Equal(t, []string{"801010"}, report.LeavesFailed)

	m, ok := store.get("600000")
	require.True(t, ok)
	assert.Equal(t, models.MappingStatusConfirmed, m.Status)
}

func TestPendingSecurityStaysPendingWithoutWrites(t *testing.T) {
	taxonomy := &fakeTaxonomy{leaves: []models.IndustryNodeModel{leaf("801010", "Agriculture")}}
	securities := &fakeSecurities{securities: []models.SecurityModel{
		security("600000", "Pufa Bank", models.MarketA),
	}}
	store := newFakeMappingStore()
	store.rows["600000"] = models.SecurityIndustryMappingModel{
		SecurityCode: "600000",
		Status:       models.MappingStatusPending,
	}

	adapter := &fakeAdapter{name: "sws", priority: 100, confidence: 1.0, leaves: map[string][]provider.Constituent{"801010": {}}}

	report, err := newTestEngine(taxonomy, securities, store, adapter).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.SecuritiesDemoted)
	assert.Equal(t, 0, store.upserts)
}
