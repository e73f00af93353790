package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryLevel_AvailableQuantity(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		reserved float64
		want     float64
	}{
		{"No reservations", 100, 0, 100},
		{"Some reservations", 100, 25, 75},
		{"Fully reserved", 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := InventoryLevel{ItemID: "BEEF001", CurrentQuantity: tt.current, ReservedQuantity: tt.reserved}
			assert.Equal(t, tt.want, level.AvailableQuantity())
			assert.Equal(t, level.CurrentQuantity-level.ReservedQuantity, level.AvailableQuantity())
			assert.NoError(t, level.Validate())
		})
	}
}

func TestInventoryLevel_ValidateRejectsOverReservation(t *testing.T) {
	level := InventoryLevel{ItemID: "BEEF001", CurrentQuantity: 100, ReservedQuantity: 110}

	err := level.Validate()
	require.Error(t, err)

	var ide *InputDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, "reserved_quantity", ide.Field)
}

func TestInventoryItem_Validate(t *testing.T) {
	valid := InventoryItem{
		ID: "BEEF001", Name: "Swiss Beef Patty", Category: CategoryPerishable,
		Storage: StorageRefrigerated, Unit: "piece",
		MinLevel: 150, MaxLevel: 600, ReorderPoint: 250, LeadTimeDays: 2, CostPerUnit: 4.5,
	}
	negative := -1

	tests := []struct {
		name  string
		mod   func(it *InventoryItem)
		field string
	}{
		{"valid", func(it *InventoryItem) {}, ""},
		{"missing id", func(it *InventoryItem) { it.ID = " " }, "id"},
		{"negative cost", func(it *InventoryItem) { it.CostPerUnit = -4.5 }, "cost_per_unit"},
		{"zero cost", func(it *InventoryItem) { it.CostPerUnit = 0 }, "cost_per_unit"},
		{"reorder below min", func(it *InventoryItem) { it.ReorderPoint = 100 }, "reorder_point"},
		{"reorder above max", func(it *InventoryItem) { it.ReorderPoint = 700 }, "reorder_point"},
		{"negative lead time", func(it *InventoryItem) { it.LeadTimeDays = -2 }, "lead_time_days"},
		{"negative shelf life", func(it *InventoryItem) { it.ShelfLifeDays = &negative }, "shelf_life_days"},
		{"unknown storage", func(it *InventoryItem) { it.Storage = "warm" }, "storage"},
		{"NaN cost", func(it *InventoryItem) { it.CostPerUnit = math.NaN() }, "cost_per_unit"},
		{"infinite max level", func(it *InventoryItem) { it.MaxLevel = math.Inf(1) }, "max_level"},
		{"NaN reorder point", func(it *InventoryItem) { it.ReorderPoint = math.NaN() }, "reorder_point"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := valid
			tt.mod(&it)
			err := it.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ide *InputDataError
			require.True(t, errors.As(err, &ide), "expected InputDataError, got %v", err)
			assert.Equal(t, tt.field, ide.Field)
		})
	}
}

func TestValidate_RejectsNonFiniteQuantities(t *testing.T) {
	day := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"NaN current quantity", InventoryLevel{ItemID: "BEEF001", CurrentQuantity: math.NaN()}.Validate(), "current_quantity"},
		{"infinite reserved quantity", InventoryLevel{ItemID: "BEEF001", CurrentQuantity: 10, ReservedQuantity: math.Inf(1)}.Validate(), "reserved_quantity"},
		{"NaN units sold", HistoricalSalesRecord{Date: day, ItemID: "BEEF001", UnitsSold: math.NaN()}.Validate(), "units_sold"},
		{"negative infinite waste", HistoricalSalesRecord{Date: day, ItemID: "BEEF001", UnitsSold: 1, WasteUnits: math.Inf(-1)}.Validate(), "waste_units"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ide *InputDataError
			require.True(t, errors.As(tt.err, &ide), "expected InputDataError, got %v", tt.err)
			assert.Equal(t, tt.field, ide.Field)
		})
	}
}

func TestParseStorageCondition(t *testing.T) {
	tests := []struct {
		in   string
		want StorageCondition
		ok   bool
	}{
		{"FROZEN", StorageFrozen, true},
		{"Refrigerated", StorageRefrigerated, true},
		{"ROOM_TEMP", StorageRoomTemp, true},
		{"room-temp", StorageRoomTemp, true},
		{"lukewarm", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseStorageCondition(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDiagnosticFromError(t *testing.T) {
	d := DiagnosticFromError("Zurich", &InputDataError{Entity: "item", ID: "X1", Field: "cost_per_unit", Reason: "must be positive"})
	assert.Equal(t, DiagInputData, d.Kind)
	assert.Equal(t, "X1", d.ItemID)
	assert.Equal(t, "Zurich", d.Location)
	assert.Contains(t, d.Message, "cost_per_unit")

	counts := CountByKind([]Diagnostic{d, d, {Kind: DiagCatalogMismatch}})
	assert.Equal(t, 2, counts[DiagInputData])
	assert.Equal(t, 1, counts[DiagCatalogMismatch])
}
