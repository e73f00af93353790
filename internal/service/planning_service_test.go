package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/chainplan/internal/cache"
	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/forecast"
	"github.com/andresuchdata/chainplan/internal/metrics"
	"github.com/andresuchdata/chainplan/internal/optimizer"
	"github.com/andresuchdata/chainplan/internal/repository"
	"github.com/andresuchdata/chainplan/internal/repository/memory"
	"github.com/andresuchdata/chainplan/internal/storage"
)

var (
	targetDate = time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)
	clock      = time.Date(2024, time.July, 14, 6, 0, 0, 0, time.UTC)
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string]cache.ForecastEntry
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]cache.ForecastEntry)}
}

func (c *mapCache) Get(ctx context.Context, key cache.ForecastKey) (cache.ForecastEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	return e, ok, nil
}

func (c *mapCache) Set(ctx context.Context, key cache.ForecastKey, entry cache.ForecastEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = entry
	return nil
}

func (c *mapCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cache.ForecastEntry)
	return nil
}

func frozenBeef() domain.InventoryItem {
	return domain.InventoryItem{
		ID: "BEEF001", Name: "Beef Patty", Category: domain.CategoryFrozen,
		Storage: domain.StorageFrozen, Unit: "piece",
		MinLevel: 50, MaxLevel: 500, ReorderPoint: 100, LeadTimeDays: 2, CostPerUnit: 10,
	}
}

// seedChain stores a chain where Zurich runs low on beef, Geneva holds a large
// surplus and Basel has stock but no sales history.
func seedChain(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertItems(ctx, []domain.InventoryItem{frozenBeef()}))
	require.NoError(t, store.UpsertLevels(ctx, []domain.InventoryLevel{
		{Location: "Zurich", ItemID: "BEEF001", CurrentQuantity: 20, LastUpdated: clock},
		{Location: "Geneva", ItemID: "BEEF001", CurrentQuantity: 500, LastUpdated: clock},
		{Location: "Basel", ItemID: "BEEF001", CurrentQuantity: 300, LastUpdated: clock},
	}))

	var sales []domain.HistoricalSalesRecord
	for d := 1; d <= 10; d++ {
		for _, loc := range []string{"Zurich", "Geneva"} {
			sales = append(sales, domain.HistoricalSalesRecord{
				Date:      time.Date(2024, time.July, d, 0, 0, 0, 0, time.UTC),
				Location:  loc,
				ItemID:    "BEEF001",
				UnitsSold: 10,
			})
		}
	}
	require.NoError(t, store.UpsertSales(ctx, sales))
}

func newTestPlanner(store *memory.Store, c cache.ForecastCache, exporter storage.ObjectStorage, rec *metrics.Recorder) *PlanningService {
	optCfg := optimizer.DefaultConfig()
	optCfg.Now = func() time.Time { return clock }
	return NewPlanningService(
		store, store,
		forecast.NewForecaster(forecast.DefaultConfig()),
		optimizer.New(optCfg),
		c, exporter, rec,
		PlanningOptions{Now: func() time.Time { return clock }},
	)
}

func TestPlanningService_Run(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedChain(t, store)

	objects, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	rec := metrics.NewRecorder()

	planner := newTestPlanner(store, nil, objects, rec)
	run, err := planner.Run(ctx, PlanRequest{TargetDate: targetDate})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.PlanCompleted, run.Status)
	assert.Equal(t, []string{"Basel", "Geneva", "Zurich"}, run.Locations)
	assert.Equal(t, 0, run.OrderCount)
	assert.Equal(t, 1, run.TransferCount)

	// need = 100 - 20 + 12*2 = 104; transport = 120 * 1.5 * 1.104; goods = 104 * 10 * 0.8
	in := run.Recommendations["Zurich"].TransfersIn["BEEF001"]
	assert.Equal(t, "Geneva", in.FromLocation)
	assert.Equal(t, "Zurich", in.ToLocation)
	assert.InDelta(t, 104, in.Quantity, 1e-9)
	assert.InDelta(t, 198.72, in.TransportCost, 1e-9)
	assert.Equal(t, "1030.72", run.TotalTransferCost.StringFixed(2))
	assert.Equal(t, in, run.Recommendations["Geneva"].TransfersOut["BEEF001"])
	assert.True(t, run.Recommendations["Basel"].IsEmpty())

	var missing int
	for _, d := range run.Diagnostics {
		if d.Kind == domain.DiagMissingPrediction {
			missing++
			assert.Equal(t, "Basel", d.Location)
		}
	}
	assert.Equal(t, 1, missing)

	stored, err := store.GetPlan(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.TransferCount, stored.TransferCount)
	assert.Equal(t, "plans/2024-07-15/"+run.ID+".json", stored.ExportKey)

	dest := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, objects.DownloadObject(ctx, stored.ExportKey, dest))
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	var exported domain.PlanRun
	require.NoError(t, json.Unmarshal(raw, &exported))
	assert.Equal(t, run.ID, exported.ID)

	assert.Equal(t, 1.0, counterValue(t, rec, "planner_runs_total", "completed"))
	assert.Equal(t, 1.0, counterValue(t, rec, "planner_transfers_total", ""))
	assert.Equal(t, 2.0, counterValue(t, rec, "planner_cache_requests_total", "miss"))
}

func counterValue(t *testing.T, rec *metrics.Recorder, name, label string) float64 {
	t.Helper()
	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if label == "" || (len(m.GetLabel()) > 0 && m.GetLabel()[0].GetValue() == label) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPlanningService_CachesForecasts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedChain(t, store)
	c := newMapCache()
	rec := metrics.NewRecorder()
	planner := newTestPlanner(store, c, nil, rec)

	first, err := planner.Run(ctx, PlanRequest{TargetDate: targetDate})
	require.NoError(t, err)
	assert.Len(t, c.entries, 2)
	assert.Empty(t, first.ExportKey)

	second, err := planner.Run(ctx, PlanRequest{TargetDate: targetDate})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.Equal(t, 2.0, counterValue(t, rec, "planner_cache_requests_total", "hit"))

	require.NoError(t, store.UpsertLevels(ctx, []domain.InventoryLevel{
		{Location: "Zurich", ItemID: "BEEF001", CurrentQuantity: 400, LastUpdated: clock},
	}))
	third, err := planner.Run(ctx, PlanRequest{TargetDate: targetDate})
	require.NoError(t, err)
	assert.Equal(t, 0, third.TransferCount)
	assert.Equal(t, 0, third.OrderCount)

	plans, err := planner.ListPlans(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, plans, 3)
}

func TestPlanningService_LocationFilter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedChain(t, store)
	planner := newTestPlanner(store, nil, nil, nil)

	run, err := planner.Run(ctx, PlanRequest{TargetDate: targetDate, Locations: []string{"Zurich"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zurich"}, run.Locations)
	assert.Equal(t, 1, run.OrderCount)
	order := run.Recommendations["Zurich"].NewOrders["BEEF001"]
	assert.Equal(t, domain.PriorityHigh, order.Priority)
	assert.Equal(t, "1040.00", run.TotalOrderCost.StringFixed(2))
}

func TestPlanningService_IgnoresSalesOnOrAfterTarget(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedChain(t, store)
	require.NoError(t, store.UpsertSales(ctx, []domain.HistoricalSalesRecord{
		{Date: targetDate, Location: "Zurich", ItemID: "BEEF001", UnitsSold: 1000},
		{Date: targetDate.AddDate(0, 0, 5), Location: "Zurich", ItemID: "BEEF001", UnitsSold: 1000},
	}))

	run, err := newTestPlanner(store, nil, nil, nil).Run(ctx, PlanRequest{TargetDate: targetDate})
	require.NoError(t, err)

	in := run.Recommendations["Zurich"].TransfersIn["BEEF001"]
	assert.Equal(t, "Geneva", in.FromLocation)
	assert.InDelta(t, 104, in.Quantity, 1e-9)
	assert.Equal(t, "1030.72", run.TotalTransferCost.StringFixed(2))
}

func TestPlanningService_Errors(t *testing.T) {
	ctx := context.Background()
	planner := newTestPlanner(memory.NewStore(), nil, nil, nil)

	_, err := planner.Run(ctx, PlanRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTargetDate)

	_, err = planner.Run(ctx, PlanRequest{TargetDate: targetDate})
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)

	_, err = planner.GetPlan(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrPlanNotFound)

	bare := NewPlanningService(memory.NewStore(), nil, forecast.NewForecaster(forecast.DefaultConfig()),
		optimizer.New(optimizer.DefaultConfig()), nil, nil, nil, PlanningOptions{})
	_, err = bare.ListPlans(ctx, 5)
	assert.ErrorIs(t, err, ErrPlansUnavailable)
}

func TestPlanningService_Forecast(t *testing.T) {
	ctx := context.Background()
	planner := newTestPlanner(memory.NewStore(), nil, nil, nil)
	items := map[string]domain.InventoryItem{"BEEF001": frozenBeef()}
	history := []domain.HistoricalSalesRecord{
		{Date: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), Location: "Zurich", ItemID: "BEEF001", UnitsSold: 10},
	}

	entry, err := planner.Forecast(ctx, "Zurich", targetDate, history, items)
	require.NoError(t, err)
	pred := entry.Predictions["BEEF001"]
	assert.InDelta(t, 12, pred.PredictedDemand, 1e-9)
	assert.InDelta(t, 1.2, pred.SeasonalityFactor, 1e-9)

	_, err = planner.Forecast(ctx, "Zurich", time.Time{}, history, items)
	assert.ErrorIs(t, err, domain.ErrInvalidTargetDate)

	_, err = planner.Forecast(ctx, "Zurich", targetDate, nil, items)
	assert.ErrorIs(t, err, domain.ErrEmptyHistory)
}
