package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/chainplan/internal/domain"
)

// ReorderNeed is the shortfall of one item at one location.
type ReorderNeed struct {
	ItemID         string          `json:"item_id"`
	NeededQuantity float64         `json:"needed_quantity"`
	DaysCoverage   float64         `json:"days_coverage"`
	Priority       domain.Priority `json:"priority"`
}

// Reason is the human-readable justification carried onto a new order.
func (n ReorderNeed) Reason() string {
	return fmt.Sprintf("Stock coverage: %.1f days", n.DaysCoverage)
}

// Evaluate computes the reorder need of every stocked item at one location.
// Items that need nothing are omitted. Levels without a catalog entry or
// without a demand value are skipped with a diagnostic.
func Evaluate(
	levels map[string]domain.InventoryLevel,
	items map[string]domain.InventoryItem,
	demand map[string]float64,
) (map[string]ReorderNeed, []domain.Diagnostic) {
	ids := make([]string, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var diags []domain.Diagnostic
	needs := make(map[string]ReorderNeed)
	for _, id := range ids {
		level := levels[id]
		if err := level.Validate(); err != nil {
			diags = append(diags, domain.DiagnosticFromError(level.Location, err))
			continue
		}
		item, ok := items[id]
		if !ok {
			diags = append(diags, domain.Diagnostic{
				Kind:     domain.DiagCatalogMismatch,
				Location: level.Location,
				ItemID:   id,
				Message:  "stock level references an item missing from the catalog",
			})
			continue
		}
		if err := item.Validate(); err != nil {
			diags = append(diags, domain.DiagnosticFromError(level.Location, err))
			continue
		}
		d, ok := demand[id]
		if !ok || !finite(d) {
			diags = append(diags, domain.Diagnostic{
				Kind:     domain.DiagMissingPrediction,
				Location: level.Location,
				ItemID:   id,
				Message:  "no demand prediction for stocked item",
			})
			continue
		}

		need := reorderNeed(level.CurrentQuantity, d, item)
		if need.NeededQuantity > 0 {
			needs[id] = need
		}
	}
	return needs, diags
}

func reorderNeed(current, demand float64, item domain.InventoryItem) ReorderNeed {
	lead := float64(item.LeadTimeDays)
	coverage := daysCoverage(current, demand)

	need := ReorderNeed{
		ItemID:         item.ID,
		NeededQuantity: math.Max(0, item.ReorderPoint-current+demand*lead),
		DaysCoverage:   coverage,
		Priority:       domain.PriorityMedium,
	}
	if coverage < lead {
		need.Priority = domain.PriorityHigh
	}
	return need
}

// daysCoverage divides by the exact demand so 200 units at 100/day covers
// exactly 2.0 days; the epsilon only guards zero demand.
func daysCoverage(current, demand float64) float64 {
	if demand > 0 {
		return current / demand
	}
	return current / (demand + coverageEpsilon)
}

// excessStock is what a location can give away while keeping its minimum level
// plus the demand expected during the item's lead time.
func excessStock(current, demand float64, item domain.InventoryItem) float64 {
	return current - (item.MinLevel + demand*float64(item.LeadTimeDays))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
