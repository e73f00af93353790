// Package catalog holds the read-only item and recipe reference data of the chain.
package catalog

import (
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/chainplan/internal/domain"
)

// Store is built once and never mutated afterwards, so it is safe to share
// between goroutines.
type Store struct {
	items   map[string]domain.InventoryItem
	ids     []string
	recipes map[string]domain.Recipe
}

// NewStore validates items and recipes. Invalid records are excluded and
// reported as diagnostics; an empty resulting catalog is fatal.
func NewStore(items []domain.InventoryItem, recipes []domain.Recipe) (*Store, []domain.Diagnostic, error) {
	if len(items) == 0 {
		return nil, nil, domain.ErrEmptyCatalog
	}

	var diags []domain.Diagnostic
	s := &Store{
		items:   make(map[string]domain.InventoryItem, len(items)),
		recipes: make(map[string]domain.Recipe, len(recipes)),
	}

	for _, it := range items {
		it.Category = domain.NormalizeCategory(string(it.Category))
		if err := it.Validate(); err != nil {
			diags = append(diags, domain.DiagnosticFromError("", err))
			continue
		}
		if _, dup := s.items[it.ID]; dup {
			diags = append(diags, domain.DiagnosticFromError("", &domain.InputDataError{
				Entity: "item", ID: it.ID, Field: "id", Reason: "is duplicated",
			}))
			continue
		}
		s.items[it.ID] = it
		s.ids = append(s.ids, it.ID)
	}

	if len(s.items) == 0 {
		return nil, diags, fmt.Errorf("%w: all %d items failed validation", domain.ErrEmptyCatalog, len(items))
	}
	sort.Strings(s.ids)

	for _, r := range recipes {
		clean := domain.Recipe{ProductID: r.ProductID, Ingredients: make(map[string]float64, len(r.Ingredients))}
		for itemID, qty := range r.Ingredients {
			if _, ok := s.items[itemID]; !ok {
				diags = append(diags, domain.Diagnostic{
					Kind:    domain.DiagCatalogMismatch,
					ItemID:  itemID,
					Message: fmt.Sprintf("recipe %s references unknown item", r.ProductID),
				})
				continue
			}
			if qty <= 0 {
				diags = append(diags, domain.DiagnosticFromError("", &domain.InputDataError{
					Entity: "recipe", ID: r.ProductID, Field: itemID, Reason: "quantity must be positive",
				}))
				continue
			}
			clean.Ingredients[itemID] = qty
		}
		if existing, ok := s.recipes[r.ProductID]; ok {
			for itemID, qty := range clean.Ingredients {
				existing.Ingredients[itemID] = qty
			}
			continue
		}
		s.recipes[r.ProductID] = clean
	}

	return s, diags, nil
}

// Len returns the number of valid items.
func (s *Store) Len() int { return len(s.ids) }

// Has reports whether the item exists.
func (s *Store) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Item looks up a single item.
func (s *Store) Item(id string) (domain.InventoryItem, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Items returns all items ordered by id.
func (s *Store) Items() []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.items[id])
	}
	return out
}

// ItemMap returns a copy of the catalog keyed by item id.
func (s *Store) ItemMap() map[string]domain.InventoryItem {
	out := make(map[string]domain.InventoryItem, len(s.items))
	for id, it := range s.items {
		out[id] = it
	}
	return out
}

// Subset returns the known items among ids plus a diagnostic for each unknown id.
// An empty ids slice selects the whole catalog.
func (s *Store) Subset(ids []string) (map[string]domain.InventoryItem, []domain.Diagnostic) {
	if len(ids) == 0 {
		return s.ItemMap(), nil
	}
	var diags []domain.Diagnostic
	out := make(map[string]domain.InventoryItem, len(ids))
	for _, id := range ids {
		it, ok := s.items[id]
		if !ok {
			diags = append(diags, domain.Diagnostic{Kind: domain.DiagCatalogMismatch, ItemID: id, Message: "item not in catalog"})
			continue
		}
		out[id] = it
	}
	return out, diags
}

// Recipe returns the ingredients consumed by a product.
func (s *Store) Recipe(productID string) (domain.Recipe, bool) {
	r, ok := s.recipes[productID]
	return r, ok
}

// Products returns the product ids with a recipe, sorted.
func (s *Store) Products() []string {
	out := make([]string, 0, len(s.recipes))
	for id := range s.recipes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ProductSale is one day of product (menu item) sales at a location.
type ProductSale struct {
	Date      time.Time
	Location  string
	ProductID string
	Units     float64
}

type usageKey struct {
	date     time.Time
	location string
	itemID   string
}

// ExpandProductSales turns product sales into item-level sales rows through the
// recipes, summing usage per (date, location, item). Output is sorted by
// location, item and date.
func (s *Store) ExpandProductSales(sales []ProductSale) ([]domain.HistoricalSalesRecord, []domain.Diagnostic) {
	var diags []domain.Diagnostic
	usage := make(map[usageKey]float64)
	reported := make(map[string]bool)

	for _, sale := range sales {
		recipe, ok := s.recipes[sale.ProductID]
		if !ok {
			if !reported[sale.ProductID] {
				reported[sale.ProductID] = true
				diags = append(diags, domain.Diagnostic{
					Kind:     domain.DiagCatalogMismatch,
					Location: sale.Location,
					Message:  fmt.Sprintf("no recipe for product %s", sale.ProductID),
				})
			}
			continue
		}
		day := sale.Date.Truncate(24 * time.Hour)
		for itemID, qty := range recipe.Ingredients {
			usage[usageKey{date: day, location: sale.Location, itemID: itemID}] += qty * sale.Units
		}
	}

	out := make([]domain.HistoricalSalesRecord, 0, len(usage))
	for k, units := range usage {
		out = append(out, domain.HistoricalSalesRecord{
			Date:      k.date,
			Location:  k.location,
			ItemID:    k.itemID,
			UnitsSold: units,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, diags
}
