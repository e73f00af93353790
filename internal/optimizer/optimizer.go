package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/chainplan/internal/domain"
)

// Snapshot is the read-only input of one optimization pass.
type Snapshot struct {
	Levels      map[string]map[string]domain.InventoryLevel   `json:"levels"`
	Predictions map[string]map[string]domain.DemandPrediction `json:"predictions"`
	Items       map[string]domain.InventoryItem               `json:"items"`
}

// Result is the outcome of one pass across every location in the snapshot.
type Result struct {
	Recommendations map[string]domain.LocationRecommendation `json:"recommendations"`
	Needs           map[string]map[string]ReorderNeed        `json:"needs"`
	Diagnostics     []domain.Diagnostic                      `json:"diagnostics,omitempty"`
	GeneratedAt     time.Time                                `json:"generated_at"`
}

// Optimizer evaluates reorder needs and matches them with surplus stock held
// elsewhere in the chain.
type Optimizer struct {
	cfg Config
}

// New returns an optimizer; zero fields of cfg fall back to defaults.
func New(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg.withDefaults()}
}

// locationPlan is the concurrent, side-effect free evaluation of one location.
type locationPlan struct {
	location   string
	needs      map[string]ReorderNeed
	candidates map[string][]domain.TransferOption
	diags      []domain.Diagnostic
}

// OptimizeAcrossLocations recommends, for every need at every location, either
// a transfer from another location or a new supplier order.
func (o *Optimizer) OptimizeAcrossLocations(ctx context.Context, snap Snapshot) (Result, error) {
	if len(snap.Items) == 0 {
		return Result{}, domain.ErrEmptyCatalog
	}

	locations := snapshotLocations(snap)
	if o.cfg.MaxEvaluations > 0 {
		if work := len(locations) * len(snap.Items); work > o.cfg.MaxEvaluations {
			return Result{}, fmt.Errorf("%w: %d locations x %d items > %d",
				domain.ErrWorkLimitExceeded, len(locations), len(snap.Items), o.cfg.MaxEvaluations)
		}
	}

	levels := normalizeLevels(snap.Levels)
	demand := demandByLocation(snap.Predictions)

	plans := make([]locationPlan, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plans[i] = o.planLocation(loc, locations, levels, demand, snap.Items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("evaluate locations: %w", err)
	}

	return o.commit(plans, levels, demand, snap.Items), nil
}

func (o *Optimizer) planLocation(
	loc string,
	locations []string,
	levels map[string]map[string]domain.InventoryLevel,
	demand map[string]map[string]float64,
	items map[string]domain.InventoryItem,
) locationPlan {
	needs, diags := Evaluate(levels[loc], items, demand[loc])

	plan := locationPlan{
		location:   loc,
		needs:      needs,
		candidates: make(map[string][]domain.TransferOption, len(needs)),
		diags:      diags,
	}
	for id, need := range needs {
		plan.candidates[id] = o.transferCandidates(loc, locations, need, items[id], levels, demand)
	}
	return plan
}

// transferCandidates lists every donor whose offer beats a fresh order, cheapest
// first with ties broken by location name.
func (o *Optimizer) transferCandidates(
	to string,
	locations []string,
	need ReorderNeed,
	item domain.InventoryItem,
	levels map[string]map[string]domain.InventoryLevel,
	demand map[string]map[string]float64,
) []domain.TransferOption {
	qty := need.NeededQuantity
	ceiling := qty * item.CostPerUnit * o.cfg.OrderTolerance

	var out []domain.TransferOption
	for _, from := range locations {
		if from == to {
			continue
		}
		level, ok := levels[from][item.ID]
		if !ok || level.Validate() != nil {
			continue
		}
		d, ok := demand[from][item.ID]
		if !ok || !finite(d) {
			continue
		}
		// A NaN excess must never qualify.
		if !(excessStock(level.CurrentQuantity, d, item) > qty) {
			continue
		}

		transport := o.cfg.transportCost(from, to, qty, item)
		total := transport + qty*item.CostPerUnit*o.cfg.TransferMarkdown
		if total >= ceiling {
			continue
		}
		out = append(out, domain.TransferOption{
			FromLocation:         from,
			ToLocation:           to,
			Quantity:             qty,
			TransportCost:        transport,
			TotalCost:            total,
			AvailableImmediately: true,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost < out[j].TotalCost
		}
		return out[i].FromLocation < out[j].FromLocation
	})
	return out
}

// commit walks the plans in (location, item) order and turns each need into
// exactly one transfer or order. Donor stock is debited as transfers are
// accepted, and a donor ships a given item to one receiver at most.
func (o *Optimizer) commit(
	plans []locationPlan,
	levels map[string]map[string]domain.InventoryLevel,
	demand map[string]map[string]float64,
	items map[string]domain.InventoryItem,
) Result {
	now := o.cfg.Now()
	res := Result{
		Recommendations: make(map[string]domain.LocationRecommendation, len(plans)),
		Needs:           make(map[string]map[string]ReorderNeed, len(plans)),
		GeneratedAt:     now,
	}
	for _, p := range plans {
		res.Recommendations[p.location] = domain.NewLocationRecommendation()
	}

	shipped := make(map[string]map[string]float64)
	remaining := func(from, itemID string) float64 {
		return excessStock(levels[from][itemID].CurrentQuantity, demand[from][itemID], items[itemID]) - shipped[from][itemID]
	}

	for _, p := range plans {
		res.Needs[p.location] = p.needs
		res.Diagnostics = append(res.Diagnostics, p.diags...)

		ids := make([]string, 0, len(p.needs))
		for id := range p.needs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		rec := res.Recommendations[p.location]
		for _, id := range ids {
			need := p.needs[id]
			if t, ok := pickDonor(id, p.candidates[id], res.Recommendations, remaining); ok {
				rec.TransfersIn[id] = t
				res.Recommendations[t.FromLocation].TransfersOut[id] = t
				if shipped[t.FromLocation] == nil {
					shipped[t.FromLocation] = make(map[string]float64)
				}
				shipped[t.FromLocation][id] += t.Quantity
				continue
			}

			item := items[id]
			rec.NewOrders[id] = domain.OrderRecommendation{
				ItemID:             id,
				Quantity:           need.NeededQuantity,
				Priority:           need.Priority,
				Reason:             need.Reason(),
				EstimatedCost:      need.NeededQuantity * item.CostPerUnit,
				SuggestedOrderDate: now,
			}
		}
	}
	return res
}

// pickDonor returns the first candidate whose donor has not already shipped the
// item in this pass and still holds more than the requested quantity in excess.
func pickDonor(
	itemID string,
	candidates []domain.TransferOption,
	recs map[string]domain.LocationRecommendation,
	remaining func(from, itemID string) float64,
) (domain.TransferOption, bool) {
	for _, c := range candidates {
		if _, busy := recs[c.FromLocation].TransfersOut[itemID]; busy {
			continue
		}
		if remaining(c.FromLocation, itemID) <= c.Quantity {
			continue
		}
		return c, true
	}
	return domain.TransferOption{}, false
}

// snapshotLocations returns every location that has levels or predictions, sorted.
func snapshotLocations(snap Snapshot) []string {
	seen := make(map[string]struct{}, len(snap.Levels)+len(snap.Predictions))
	for loc := range snap.Levels {
		seen[loc] = struct{}{}
	}
	for loc := range snap.Predictions {
		seen[loc] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for loc := range seen {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// normalizeLevels stamps each level with the location it is filed under so
// diagnostics name the right place even when the input omits it.
func normalizeLevels(in map[string]map[string]domain.InventoryLevel) map[string]map[string]domain.InventoryLevel {
	out := make(map[string]map[string]domain.InventoryLevel, len(in))
	for loc, byItem := range in {
		m := make(map[string]domain.InventoryLevel, len(byItem))
		for id, lvl := range byItem {
			lvl.Location = loc
			lvl.ItemID = id
			m[id] = lvl
		}
		out[loc] = m
	}
	return out
}

func demandByLocation(preds map[string]map[string]domain.DemandPrediction) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(preds))
	for loc, byItem := range preds {
		m := make(map[string]float64, len(byItem))
		for id, p := range byItem {
			m[id] = p.PredictedDemand
		}
		out[loc] = m
	}
	return out
}
