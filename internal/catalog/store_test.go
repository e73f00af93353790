package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []domain.InventoryItem {
	shelf := 4
	return []domain.InventoryItem{
		{
			ID: "BUN001", Name: "Classic Burger Buns", Category: "PERISHABLE", Storage: domain.StorageRoomTemp,
			Unit: "piece", MinLevel: 200, MaxLevel: 800, ReorderPoint: 300, LeadTimeDays: 2, CostPerUnit: 0.75,
			SupplierID: "LOCAL_BAKERY",
		},
		{
			ID: "BEEF001", Name: "Swiss Beef Patty 180g", Category: "perishable", Storage: domain.StorageRefrigerated,
			Unit: "piece", MinLevel: 150, MaxLevel: 600, ReorderPoint: 250, LeadTimeDays: 2, ShelfLifeDays: &shelf,
			CostPerUnit: 4.50, SupplierID: "SWISS_MEAT",
		},
		{
			ID: "VEG001", Name: "Fresh Lettuce", Category: "perishable", Storage: domain.StorageRefrigerated,
			Unit: "head", MinLevel: 30, MaxLevel: 100, ReorderPoint: 40, LeadTimeDays: 1, CostPerUnit: 1.20,
			SupplierID: "LOCAL_PRODUCE",
		},
	}
}

func TestNewStore(t *testing.T) {
	items := append(sampleItems(),
		domain.InventoryItem{ID: "BAD001", Storage: domain.StorageFrozen, MinLevel: 1, MaxLevel: 2, ReorderPoint: 1, CostPerUnit: -1},
		domain.InventoryItem{ID: "BEEF001", Storage: domain.StorageFrozen, MinLevel: 1, MaxLevel: 2, ReorderPoint: 1, CostPerUnit: 1},
	)

	store, diags, err := NewStore(items, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, store.Len())
	assert.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, domain.DiagInputData, d.Kind)
	}

	beef, ok := store.Item("BEEF001")
	require.True(t, ok)
	assert.Equal(t, domain.StorageRefrigerated, beef.Storage, "first definition wins over the duplicate")

	bun, _ := store.Item("BUN001")
	assert.Equal(t, domain.CategoryPerishable, bun.Category)

	ids := make([]string, 0)
	for _, it := range store.Items() {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"BEEF001", "BUN001", "VEG001"}, ids)
}

func TestNewStore_EmptyIsFatal(t *testing.T) {
	_, _, err := NewStore(nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)

	_, diags, err := NewStore([]domain.InventoryItem{{ID: "X", CostPerUnit: 0}}, nil)
	assert.True(t, errors.Is(err, domain.ErrEmptyCatalog))
	assert.Len(t, diags, 1)
}

func TestSubset(t *testing.T) {
	store, _, err := NewStore(sampleItems(), nil)
	require.NoError(t, err)

	subset, diags := store.Subset([]string{"BEEF001", "TRUFFLE"})
	assert.Len(t, subset, 1)
	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagCatalogMismatch, diags[0].Kind)
	assert.Equal(t, "TRUFFLE", diags[0].ItemID)

	all, diags := store.Subset(nil)
	assert.Len(t, all, 3)
	assert.Empty(t, diags)
}

func TestExpandProductSales(t *testing.T) {
	recipes := []domain.Recipe{
		{ProductID: "CLASSIC", Ingredients: map[string]float64{"BUN001": 1, "BEEF001": 1, "VEG001": 0.1, "SAUCE001": 0.03}},
		{ProductID: "DOUBLE", Ingredients: map[string]float64{"BUN001": 1, "BEEF001": 2}},
	}
	store, diags, err := NewStore(sampleItems(), recipes)
	require.NoError(t, err)
	require.Len(t, diags, 1, "SAUCE001 is not in the catalog")
	assert.Equal(t, domain.DiagCatalogMismatch, diags[0].Kind)

	day := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	rows, diags := store.ExpandProductSales([]ProductSale{
		{Date: day, Location: "Zurich", ProductID: "CLASSIC", Units: 100},
		{Date: day, Location: "Zurich", ProductID: "DOUBLE", Units: 10},
		{Date: day, Location: "Zurich", ProductID: "MYSTERY", Units: 5},
		{Date: day, Location: "Zurich", ProductID: "MYSTERY", Units: 5},
	})
	require.Len(t, diags, 1)

	got := make(map[string]float64)
	for _, r := range rows {
		got[r.ItemID] = r.UnitsSold
		assert.Equal(t, "Zurich", r.Location)
	}
	assert.Equal(t, 110.0, got["BUN001"])
	assert.Equal(t, 120.0, got["BEEF001"])
	assert.InDelta(t, 10.0, got["VEG001"], 1e-9)
	assert.NotContains(t, got, "SAUCE001")
}
