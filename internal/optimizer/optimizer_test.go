package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return fixedNow }
	return cfg
}

func beef() domain.InventoryItem {
	return domain.InventoryItem{
		ID: "BEEF001", Name: "Swiss Beef Patty", Category: domain.CategoryPerishable,
		Storage: domain.StorageRefrigerated, Unit: "piece", MinLevel: 150, MaxLevel: 600,
		ReorderPoint: 250, LeadTimeDays: 2, CostPerUnit: 4.50, SupplierID: "SWISS_MEAT",
	}
}

type snapshotBuilder struct {
	snap Snapshot
}

func newSnapshot(items ...domain.InventoryItem) *snapshotBuilder {
	b := &snapshotBuilder{snap: Snapshot{
		Levels:      map[string]map[string]domain.InventoryLevel{},
		Predictions: map[string]map[string]domain.DemandPrediction{},
		Items:       map[string]domain.InventoryItem{},
	}}
	for _, it := range items {
		b.snap.Items[it.ID] = it
	}
	return b
}

func (b *snapshotBuilder) stock(loc, itemID string, current, demand float64) *snapshotBuilder {
	if b.snap.Levels[loc] == nil {
		b.snap.Levels[loc] = map[string]domain.InventoryLevel{}
		b.snap.Predictions[loc] = map[string]domain.DemandPrediction{}
	}
	b.snap.Levels[loc][itemID] = domain.InventoryLevel{Location: loc, ItemID: itemID, CurrentQuantity: current}
	b.snap.Predictions[loc][itemID] = domain.DemandPrediction{Location: loc, ItemID: itemID, PredictedDemand: demand}
	return b
}

func TestOptimize_TransferFromDonorWithExcess(t *testing.T) {
	// Geneva excess = 750 - (150 + 100*2) = 400 > 250 needed at Zurich.
	snap := newSnapshot(beef()).
		stock("Zurich", "BEEF001", 200, 100).
		stock("Geneva", "BEEF001", 750, 100).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	zurich := res.Recommendations["Zurich"]
	geneva := res.Recommendations["Geneva"]
	assert.NotContains(t, zurich.NewOrders, "BEEF001")
	require.Contains(t, zurich.TransfersIn, "BEEF001")
	require.Contains(t, geneva.TransfersOut, "BEEF001")

	in := zurich.TransfersIn["BEEF001"]
	assert.Equal(t, "Geneva", in.FromLocation)
	assert.Equal(t, "Zurich", in.ToLocation)
	assert.Equal(t, 250.0, in.Quantity)
	// 120 * 1.3 * (1 + 250/1000)
	assert.InDelta(t, 195.0, in.TransportCost, 1e-9)
	assert.InDelta(t, 195.0+250*4.5*0.8, in.TotalCost, 1e-9)
	assert.True(t, in.AvailableImmediately)
	assert.Equal(t, in, geneva.TransfersOut["BEEF001"])
}

func TestOptimize_NewOrderWhenNoDonor(t *testing.T) {
	snap := newSnapshot(beef()).
		stock("Zurich", "BEEF001", 200, 100).
		stock("Geneva", "BEEF001", 500, 100).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	order, ok := res.Recommendations["Zurich"].NewOrders["BEEF001"]
	require.True(t, ok)
	assert.Equal(t, 250.0, order.Quantity)
	assert.Equal(t, domain.PriorityMedium, order.Priority)
	assert.Equal(t, "Stock coverage: 2.0 days", order.Reason)
	assert.InDelta(t, 250*4.5, order.EstimatedCost, 1e-9)
	assert.Equal(t, fixedNow, order.SuggestedOrderDate)
	assert.Empty(t, res.Recommendations["Zurich"].TransfersIn)
}

func TestOptimize_TransferRejectedAboveTolerance(t *testing.T) {
	cheap := beef()
	cheap.CostPerUnit = 0.1
	snap := newSnapshot(cheap).
		stock("Lugano", "BEEF001", 200, 100).
		stock("Bern", "BEEF001", 2000, 100).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	assert.Contains(t, res.Recommendations["Lugano"].NewOrders, "BEEF001")
	assert.Empty(t, res.Recommendations["Bern"].TransfersOut)
}

func TestOptimize_TieBrokenByLocationName(t *testing.T) {
	// Neither donor has a route to Lugano so both price at the base cost.
	snap := newSnapshot(beef()).
		stock("Lugano", "BEEF001", 200, 100).
		stock("Bern", "BEEF001", 1000, 100).
		stock("Aarau", "BEEF001", 1000, 100).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	in := res.Recommendations["Lugano"].TransfersIn["BEEF001"]
	assert.Equal(t, "Aarau", in.FromLocation)
	assert.Contains(t, res.Recommendations["Aarau"].TransfersOut, "BEEF001")
	assert.Empty(t, res.Recommendations["Bern"].TransfersOut)
}

func TestOptimize_DonorServesOneRequesterPerItem(t *testing.T) {
	snap := newSnapshot(beef()).
		stock("Basel", "BEEF001", 200, 100).
		stock("Zurich", "BEEF001", 200, 100).
		stock("Geneva", "BEEF001", 750, 100).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	// Basel commits first in sorted order and takes Geneva's surplus.
	assert.Equal(t, "Geneva", res.Recommendations["Basel"].TransfersIn["BEEF001"].FromLocation)
	assert.Equal(t, "Basel", res.Recommendations["Geneva"].TransfersOut["BEEF001"].ToLocation)
	assert.Contains(t, res.Recommendations["Zurich"].NewOrders, "BEEF001")
	assert.Empty(t, res.Recommendations["Zurich"].TransfersIn)
}

func TestOptimize_FallsBackToNextDonor(t *testing.T) {
	snap := newSnapshot(beef()).
		stock("Basel", "BEEF001", 200, 100).
		stock("Zurich", "BEEF001", 200, 100).
		stock("Geneva", "BEEF001", 750, 100).
		stock("Bern", "BEEF001", 750, 100).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	basel := res.Recommendations["Basel"].TransfersIn["BEEF001"]
	zurich := res.Recommendations["Zurich"].TransfersIn["BEEF001"]
	// Basel-Geneva (150) beats Basel-Bern (base 200); Zurich then falls back to Bern.
	assert.Equal(t, "Geneva", basel.FromLocation)
	assert.Equal(t, "Bern", zurich.FromLocation)
	assert.Empty(t, res.Recommendations["Zurich"].NewOrders)
}

func TestOptimize_Diagnostics(t *testing.T) {
	snap := newSnapshot(beef()).
		stock("Zurich", "BEEF001", 200, 100).snap
	snap.Levels["Zurich"]["TRUFFLE"] = domain.InventoryLevel{CurrentQuantity: 3}
	snap.Levels["Geneva"] = map[string]domain.InventoryLevel{
		"BEEF001": {CurrentQuantity: 10},
	}
	snap.Levels["Basel"] = map[string]domain.InventoryLevel{
		"BEEF001": {CurrentQuantity: 10, ReservedQuantity: 50},
	}

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	counts := domain.CountByKind(res.Diagnostics)
	assert.Equal(t, 1, counts[domain.DiagCatalogMismatch])
	assert.Equal(t, 1, counts[domain.DiagMissingPrediction])
	assert.Equal(t, 1, counts[domain.DiagInputData])

	assert.True(t, res.Recommendations["Geneva"].IsEmpty())
	assert.True(t, res.Recommendations["Basel"].IsEmpty())
	assert.Contains(t, res.Recommendations["Zurich"].NewOrders, "BEEF001")
}

func TestOptimize_NonFiniteInputsAreSkipped(t *testing.T) {
	snap := newSnapshot(beef()).
		stock("Zurich", "BEEF001", 200, 100).
		stock("Geneva", "BEEF001", 160, math.NaN()).snap

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	zurich := res.Recommendations["Zurich"]
	assert.Empty(t, zurich.TransfersIn, "a donor with NaN demand is never eligible")
	require.Contains(t, zurich.NewOrders, "BEEF001")
	assert.Equal(t, 250.0, zurich.NewOrders["BEEF001"].Quantity)
	assert.Empty(t, res.Recommendations["Geneva"].TransfersOut)
	assert.Equal(t, 1, domain.CountByKind(res.Diagnostics)[domain.DiagMissingPrediction])

	broken := beef()
	broken.CostPerUnit = math.NaN()
	snap = newSnapshot(broken).stock("Zurich", "BEEF001", 200, 100).snap

	res, err = New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations["Zurich"].NewOrders)
	assert.Equal(t, 1, domain.CountByKind(res.Diagnostics)[domain.DiagInputData])
}

func TestOptimize_LocationWithoutLevelsGetsEmptyRecommendation(t *testing.T) {
	snap := newSnapshot(beef()).stock("Zurich", "BEEF001", 1000, 10).snap
	snap.Predictions["Basel"] = map[string]domain.DemandPrediction{"BEEF001": {PredictedDemand: 10}}

	res, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
	require.NoError(t, err)

	require.Contains(t, res.Recommendations, "Basel")
	assert.True(t, res.Recommendations["Basel"].IsEmpty())
	assert.NotNil(t, res.Recommendations["Basel"].NewOrders)
}

func TestOptimize_Errors(t *testing.T) {
	_, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), Snapshot{})
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)

	cfg := testConfig()
	cfg.MaxEvaluations = 1
	snap := newSnapshot(beef()).
		stock("Zurich", "BEEF001", 200, 100).
		stock("Geneva", "BEEF001", 750, 100).snap
	_, err = New(cfg).OptimizeAcrossLocations(context.Background(), snap)
	assert.ErrorIs(t, err, domain.ErrWorkLimitExceeded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(testConfig()).OptimizeAcrossLocations(ctx, snap)
	assert.ErrorIs(t, err, context.Canceled)
}

func randomSnapshot(rng *rand.Rand) Snapshot {
	storages := []domain.StorageCondition{domain.StorageRoomTemp, domain.StorageRefrigerated, domain.StorageFrozen}
	var items []domain.InventoryItem
	for i := 0; i < 6; i++ {
		minLevel := float64(20 + rng.Intn(100))
		items = append(items, domain.InventoryItem{
			ID:           fmt.Sprintf("ITEM%03d", i),
			Storage:      storages[rng.Intn(len(storages))],
			MinLevel:     minLevel,
			ReorderPoint: minLevel + float64(rng.Intn(100)),
			MaxLevel:     minLevel + 300,
			LeadTimeDays: rng.Intn(4),
			CostPerUnit:  0.5 + rng.Float64()*10,
		})
	}
	b := newSnapshot(items...)
	for _, loc := range []string{"Basel", "Bern", "Geneva", "Lugano", "Zurich"} {
		for _, it := range items {
			b.stock(loc, it.ID, float64(rng.Intn(1500)), float64(rng.Intn(150)))
		}
	}
	return b.snap
}

func TestOptimize_InvariantsAndIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 25; round++ {
		snap := randomSnapshot(rng)
		cfg := testConfig()
		cfg.Workers = 1 + round%4

		first, err := New(cfg).OptimizeAcrossLocations(context.Background(), snap)
		require.NoError(t, err)
		second, err := New(testConfig()).OptimizeAcrossLocations(context.Background(), snap)
		require.NoError(t, err)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.JSONEq(t, string(a), string(b))

		shipped := map[string]map[string]float64{}
		for loc, rec := range first.Recommendations {
			for id := range rec.NewOrders {
				assert.NotContains(t, rec.TransfersIn, id, "%s/%s has both an order and a transfer", loc, id)
			}
			for id, out := range rec.TransfersOut {
				assert.Equal(t, loc, out.FromLocation)
				assert.Equal(t, out, first.Recommendations[out.ToLocation].TransfersIn[id])
				if shipped[loc] == nil {
					shipped[loc] = map[string]float64{}
				}
				shipped[loc][id] += out.Quantity
			}
		}

		for loc, byItem := range shipped {
			for id, qty := range byItem {
				item := snap.Items[id]
				left := snap.Levels[loc][id].CurrentQuantity - qty
				floor := item.MinLevel + snap.Predictions[loc][id].PredictedDemand*float64(item.LeadTimeDays)
				assert.Greater(t, left, floor, "donor %s/%s drops below safety stock", loc, id)
			}
		}
	}
}
