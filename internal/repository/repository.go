package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/chainplan/internal/domain"
)

var ErrPlanNotFound = errors.New("plan not found")

// SnapshotReader loads the inputs of a planning run. An empty locations slice
// means every location. ListSales returns rows dated in [since, until); a zero
// bound is open.
type SnapshotReader interface {
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)
	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
	ListLevels(ctx context.Context, locations []string) ([]domain.InventoryLevel, error)
	ListSales(ctx context.Context, locations []string, since, until time.Time) ([]domain.HistoricalSalesRecord, error)
}

// SnapshotWriter stores imported bundles. Items, recipes and levels are
// upserted; sales rows replace any existing row for the same day.
type SnapshotWriter interface {
	UpsertItems(ctx context.Context, items []domain.InventoryItem) error
	UpsertRecipes(ctx context.Context, recipes []domain.Recipe) error
	UpsertLevels(ctx context.Context, levels []domain.InventoryLevel) error
	UpsertSales(ctx context.Context, sales []domain.HistoricalSalesRecord) error
}

type PlanRepository interface {
	SavePlan(ctx context.Context, run *domain.PlanRun) error
	GetPlan(ctx context.Context, id string) (*domain.PlanRun, error)
	ListPlans(ctx context.Context, limit int) ([]domain.PlanSummary, error)
}

// Store is everything the planner persists.
type Store interface {
	SnapshotReader
	SnapshotWriter
	PlanRepository
}

const (
	DefaultPlanListLimit = 20
	MaxPlanListLimit     = 200
)

// ClampLimit bounds list page sizes the same way for every backend.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPlanListLimit
	}
	if limit > MaxPlanListLimit {
		return MaxPlanListLimit
	}
	return limit
}
