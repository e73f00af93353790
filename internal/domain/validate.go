package domain

import (
	"math"
	"strings"
)

// Validate checks the catalog invariants of an item.
func (it InventoryItem) Validate() error {
	invalid := func(field, reason string) error {
		return &InputDataError{Entity: "item", ID: it.ID, Field: field, Reason: reason}
	}

	if strings.TrimSpace(it.ID) == "" {
		return invalid("id", "is required")
	}
	if field, ok := firstNonFinite(
		numField{"cost_per_unit", it.CostPerUnit},
		numField{"min_level", it.MinLevel},
		numField{"max_level", it.MaxLevel},
		numField{"reorder_point", it.ReorderPoint},
	); ok {
		return invalid(field, "must be a finite number")
	}
	if it.CostPerUnit <= 0 {
		return invalid("cost_per_unit", "must be positive")
	}
	if it.MinLevel < 0 {
		return invalid("min_level", "must not be negative")
	}
	if it.ReorderPoint < it.MinLevel || it.ReorderPoint > it.MaxLevel {
		return invalid("reorder_point", "must be within [min_level, max_level]")
	}
	if it.LeadTimeDays < 0 {
		return invalid("lead_time_days", "must not be negative")
	}
	if it.ShelfLifeDays != nil && *it.ShelfLifeDays < 0 {
		return invalid("shelf_life_days", "must not be negative")
	}
	switch it.Storage {
	case StorageRoomTemp, StorageRefrigerated, StorageFrozen:
	default:
		return invalid("storage", "is unknown")
	}
	return nil
}

// Validate checks that a level snapshot is usable.
func (l InventoryLevel) Validate() error {
	invalid := func(field, reason string) error {
		return &InputDataError{Entity: "inventory level", ID: l.ItemID, Field: field, Reason: reason}
	}

	if strings.TrimSpace(l.ItemID) == "" {
		return invalid("item_id", "is required")
	}
	if field, ok := firstNonFinite(numField{"current_quantity", l.CurrentQuantity}, numField{"reserved_quantity", l.ReservedQuantity}); ok {
		return invalid(field, "must be a finite number")
	}
	if l.CurrentQuantity < 0 {
		return invalid("current_quantity", "must not be negative")
	}
	if l.ReservedQuantity < 0 {
		return invalid("reserved_quantity", "must not be negative")
	}
	if l.AvailableQuantity() < 0 {
		return invalid("reserved_quantity", "exceeds current quantity")
	}
	return nil
}

// Validate checks a single sales row.
func (r HistoricalSalesRecord) Validate() error {
	invalid := func(field, reason string) error {
		return &InputDataError{Entity: "sales record", ID: r.ItemID, Field: field, Reason: reason}
	}

	if strings.TrimSpace(r.ItemID) == "" {
		return invalid("item_id", "is required")
	}
	if r.Date.IsZero() {
		return invalid("date", "is required")
	}
	if field, ok := firstNonFinite(numField{"units_sold", r.UnitsSold}, numField{"waste_units", r.WasteUnits}); ok {
		return invalid(field, "must be a finite number")
	}
	if r.UnitsSold < 0 {
		return invalid("units_sold", "must not be negative")
	}
	if r.WasteUnits < 0 {
		return invalid("waste_units", "must not be negative")
	}
	return nil
}

type numField struct {
	name  string
	value float64
}

// firstNonFinite reports the first NaN or infinite field. Plain comparisons
// such as x < 0 are false for NaN, so these are checked up front.
func firstNonFinite(fields ...numField) (string, bool) {
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return f.name, true
		}
	}
	return "", false
}
