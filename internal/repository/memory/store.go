// Package memory is an in-process repository used by the file-driven CLI and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/repository"
)

type levelKey struct{ location, itemID string }

type saleKey struct {
	date     string
	location string
	itemID   string
}

type Store struct {
	mu      sync.RWMutex
	items   map[string]domain.InventoryItem
	recipes map[string]domain.Recipe
	levels  map[levelKey]domain.InventoryLevel
	sales   map[saleKey]domain.HistoricalSalesRecord
	plans   map[string][]byte
}

func NewStore() *Store {
	return &Store{
		items:   make(map[string]domain.InventoryItem),
		recipes: make(map[string]domain.Recipe),
		levels:  make(map[levelKey]domain.InventoryLevel),
		sales:   make(map[saleKey]domain.HistoricalSalesRecord),
		plans:   make(map[string][]byte),
	}
}

func (s *Store) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InventoryItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, copyRecipe(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Store) ListLevels(ctx context.Context, locations []string) ([]domain.InventoryLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := locationSet(locations)
	var out []domain.InventoryLevel
	for k, l := range s.levels {
		if want != nil && !want[k.location] {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (s *Store) ListSales(ctx context.Context, locations []string, since, until time.Time) ([]domain.HistoricalSalesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := locationSet(locations)
	var out []domain.HistoricalSalesRecord
	for k, r := range s.sales {
		if want != nil && !want[k.location] {
			continue
		}
		if !since.IsZero() && r.Date.Before(since) {
			continue
		}
		if !until.IsZero() && !r.Date.Before(until) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.ItemID < b.ItemID
	})
	return out, nil
}

func (s *Store) UpsertItems(ctx context.Context, items []domain.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.ID] = it
	}
	return nil
}

func (s *Store) UpsertRecipes(ctx context.Context, recipes []domain.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recipes {
		s.recipes[r.ProductID] = copyRecipe(r)
	}
	return nil
}

func (s *Store) UpsertLevels(ctx context.Context, levels []domain.InventoryLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range levels {
		s.levels[levelKey{l.Location, l.ItemID}] = l
	}
	return nil
}

func (s *Store) UpsertSales(ctx context.Context, sales []domain.HistoricalSalesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range sales {
		s.sales[saleKey{r.Date.Format("2006-01-02"), r.Location, r.ItemID}] = r
	}
	return nil
}

// SavePlan stores a deep copy so callers can keep mutating their run.
func (s *Store) SavePlan(ctx context.Context, run *domain.PlanRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("plan id is required")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[run.ID] = payload
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.PlanRun, error) {
	s.mu.RLock()
	payload, ok := s.plans[id]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrPlanNotFound
	}

	var run domain.PlanRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &run, nil
}

func (s *Store) ListPlans(ctx context.Context, limit int) ([]domain.PlanSummary, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.plans))
	for id := range s.plans {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	out := make([]domain.PlanSummary, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetPlan(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, run.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if limit = repository.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func locationSet(locations []string) map[string]bool {
	if len(locations) == 0 {
		return nil
	}
	set := make(map[string]bool, len(locations))
	for _, l := range locations {
		set[l] = true
	}
	return set
}

func copyRecipe(r domain.Recipe) domain.Recipe {
	ing := make(map[string]float64, len(r.Ingredients))
	for k, v := range r.Ingredients {
		ing[k] = v
	}
	return domain.Recipe{ProductID: r.ProductID, Ingredients: ing}
}

var _ repository.Store = (*Store)(nil)
