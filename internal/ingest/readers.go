package ingest

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/andresuchdata/chainplan/internal/catalog"
	"github.com/andresuchdata/chainplan/internal/domain"
)

func rowError(entity string, rec record, id, field, reason string) error {
	if id == "" {
		id = fmt.Sprintf("line %d", rec.line)
	}
	return &domain.InputDataError{Entity: entity, ID: id, Field: field, Reason: reason}
}

// eachRow calls fn for every non-blank record; row-level errors returned by fn
// become diagnostics, read errors abort.
func eachRow(t *table, location func(record) string, fn func(record) error) ([]domain.Diagnostic, error) {
	var diags []domain.Diagnostic
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			return diags, nil
		}
		if err != nil {
			return diags, err
		}
		if rec.blank() {
			continue
		}
		if err := fn(rec); err != nil {
			diags = append(diags, domain.DiagnosticFromError(location(rec), err))
		}
	}
}

func noLocation(record) string { return "" }

// ReadCatalog parses catalog rows. Validation beyond field parsing happens in
// catalog.NewStore.
func ReadCatalog(r io.Reader) ([]domain.InventoryItem, []domain.Diagnostic, error) {
	t, err := newTable("catalog", r)
	if err != nil {
		return nil, nil, err
	}
	req, err := t.require("id", "storage", "min_level", "max_level", "reorder_point", "lead_time_days", "cost_per_unit")
	if err != nil {
		return nil, nil, err
	}
	idxID, idxStorage, idxMin, idxMax, idxRP, idxLead, idxCost := req[0], req[1], req[2], req[3], req[4], req[5], req[6]
	idxName := t.colIndex("name", "item_name")
	idxCategory := t.colIndex("category")
	idxUnit := t.colIndex("unit")
	idxShelf := t.colIndex("shelf_life_days", "shelf_life")
	idxSupplier := t.colIndex("supplier_id", "supplier")

	var items []domain.InventoryItem
	diags, err := eachRow(t, noLocation, func(rec record) error {
		id := rec.get(idxID)
		storage, ok := domain.ParseStorageCondition(rec.get(idxStorage))
		if !ok {
			return rowError("item", rec, id, "storage", fmt.Sprintf("unknown storage condition %q", rec.get(idxStorage)))
		}

		item := domain.InventoryItem{
			ID:         id,
			Name:       rec.get(idxName),
			Category:   domain.NormalizeCategory(rec.get(idxCategory)),
			Storage:    storage,
			Unit:       rec.get(idxUnit),
			SupplierID: rec.get(idxSupplier),
		}
		floats := []struct {
			field string
			idx   int
			dst   *float64
		}{
			{"min_level", idxMin, &item.MinLevel},
			{"max_level", idxMax, &item.MaxLevel},
			{"reorder_point", idxRP, &item.ReorderPoint},
			{"cost_per_unit", idxCost, &item.CostPerUnit},
		}
		for _, f := range floats {
			v, err := rec.float(f.idx)
			if err != nil {
				return rowError("item", rec, id, f.field, err.Error())
			}
			*f.dst = v
		}
		var err error
		if item.LeadTimeDays, err = rec.int(idxLead); err != nil {
			return rowError("item", rec, id, "lead_time_days", err.Error())
		}
		if rec.get(idxShelf) != "" {
			shelf, err := rec.int(idxShelf)
			if err != nil {
				return rowError("item", rec, id, "shelf_life_days", err.Error())
			}
			item.ShelfLifeDays = &shelf
		}

		items = append(items, item)
		return nil
	})
	return items, diags, err
}

// ReadRecipes parses one (product, item, quantity) row per ingredient and
// groups them by product.
func ReadRecipes(r io.Reader) ([]domain.Recipe, []domain.Diagnostic, error) {
	t, err := newTable("recipes", r)
	if err != nil {
		return nil, nil, err
	}
	req, err := t.require("product_id", "item_id", "quantity")
	if err != nil {
		return nil, nil, err
	}

	byProduct := make(map[string]map[string]float64)
	diags, err := eachRow(t, noLocation, func(rec record) error {
		product, item := rec.get(req[0]), rec.get(req[1])
		if product == "" || item == "" {
			return rowError("recipe", rec, product, "", "product_id and item_id are required")
		}
		qty, err := rec.float(req[2])
		if err != nil {
			return rowError("recipe", rec, product, "quantity", err.Error())
		}
		if byProduct[product] == nil {
			byProduct[product] = make(map[string]float64)
		}
		byProduct[product][item] += qty
		return nil
	})
	if err != nil {
		return nil, diags, err
	}

	products := make([]string, 0, len(byProduct))
	for p := range byProduct {
		products = append(products, p)
	}
	sort.Strings(products)

	recipes := make([]domain.Recipe, 0, len(products))
	for _, p := range products {
		recipes = append(recipes, domain.Recipe{ProductID: p, Ingredients: byProduct[p]})
	}
	return recipes, diags, nil
}

// ReadLevels parses stock snapshots. Rows failing domain validation are
// reported and skipped.
func ReadLevels(r io.Reader) ([]domain.InventoryLevel, []domain.Diagnostic, error) {
	t, err := newTable("levels", r)
	if err != nil {
		return nil, nil, err
	}
	req, err := t.require("location", "item_id", "current_quantity")
	if err != nil {
		return nil, nil, err
	}
	idxReserved := t.colIndex("reserved_quantity", "reserved")
	idxUpdated := t.colIndex("last_updated", "updated_at")

	var levels []domain.InventoryLevel
	loc := func(rec record) string { return rec.get(req[0]) }
	diags, err := eachRow(t, loc, func(rec record) error {
		level := domain.InventoryLevel{Location: rec.get(req[0]), ItemID: rec.get(req[1])}
		if level.Location == "" {
			return rowError("stock level", rec, level.ItemID, "location", "is required")
		}
		var err error
		if level.CurrentQuantity, err = rec.float(req[2]); err != nil {
			return rowError("stock level", rec, level.ItemID, "current_quantity", err.Error())
		}
		if level.ReservedQuantity, err = rec.float(idxReserved); err != nil {
			return rowError("stock level", rec, level.ItemID, "reserved_quantity", err.Error())
		}
		if v := rec.get(idxUpdated); v != "" {
			if level.LastUpdated, err = parseDate(v); err != nil {
				return rowError("stock level", rec, level.ItemID, "last_updated", err.Error())
			}
		}
		if err := level.Validate(); err != nil {
			return err
		}
		levels = append(levels, level)
		return nil
	})
	return levels, diags, err
}

// ReadSales parses item-level daily sales.
func ReadSales(r io.Reader) ([]domain.HistoricalSalesRecord, []domain.Diagnostic, error) {
	t, err := newTable("sales", r)
	if err != nil {
		return nil, nil, err
	}
	req, err := t.require("date", "location", "item_id", "units_sold")
	if err != nil {
		return nil, nil, err
	}
	idxWaste := t.colIndex("waste_units", "waste")

	var rows []domain.HistoricalSalesRecord
	loc := func(rec record) string { return rec.get(req[1]) }
	diags, err := eachRow(t, loc, func(rec record) error {
		row := domain.HistoricalSalesRecord{Location: rec.get(req[1]), ItemID: rec.get(req[2])}
		var err error
		if row.Date, err = parseDate(rec.get(req[0])); err != nil {
			return rowError("sales row", rec, row.ItemID, "date", err.Error())
		}
		if row.UnitsSold, err = rec.float(req[3]); err != nil {
			return rowError("sales row", rec, row.ItemID, "units_sold", err.Error())
		}
		if row.WasteUnits, err = rec.float(idxWaste); err != nil {
			return rowError("sales row", rec, row.ItemID, "waste_units", err.Error())
		}
		if err := row.Validate(); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, diags, err
}

// ReadProductSales parses product-level daily sales, to be expanded through
// recipes with catalog.Store.ExpandProductSales.
func ReadProductSales(r io.Reader) ([]catalog.ProductSale, []domain.Diagnostic, error) {
	t, err := newTable("product sales", r)
	if err != nil {
		return nil, nil, err
	}
	req, err := t.require("date", "location", "product_id", "units_sold")
	if err != nil {
		return nil, nil, err
	}

	var rows []catalog.ProductSale
	loc := func(rec record) string { return rec.get(req[1]) }
	diags, err := eachRow(t, loc, func(rec record) error {
		sale := catalog.ProductSale{Location: rec.get(req[1]), ProductID: rec.get(req[2])}
		if sale.ProductID == "" {
			return rowError("product sale", rec, "", "product_id", "is required")
		}
		var err error
		if sale.Date, err = parseDate(rec.get(req[0])); err != nil {
			return rowError("product sale", rec, sale.ProductID, "date", err.Error())
		}
		if sale.Units, err = rec.float(req[3]); err != nil {
			return rowError("product sale", rec, sale.ProductID, "units_sold", err.Error())
		}
		if sale.Units < 0 {
			return rowError("product sale", rec, sale.ProductID, "units_sold", "must not be negative")
		}
		rows = append(rows, sale)
		return nil
	})
	return rows, diags, err
}
