package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/chainplan/internal/cache"
	"github.com/andresuchdata/chainplan/internal/catalog"
	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/forecast"
	"github.com/andresuchdata/chainplan/internal/metrics"
	"github.com/andresuchdata/chainplan/internal/optimizer"
	"github.com/andresuchdata/chainplan/internal/repository"
	"github.com/andresuchdata/chainplan/internal/storage"
)

const (
	defaultHistoryDays     = 90
	defaultForecastWorkers = 4
)

type PlanningOptions struct {
	// HistoryDays bounds the sales window read before the target date. Zero
	// means the default; a negative value reads everything.
	HistoryDays int
	Workers     int
	PlanPrefix  string
	Now         func() time.Time
}

// PlanRequest selects the target date and, optionally, a subset of locations.
type PlanRequest struct {
	TargetDate time.Time `json:"target_date"`
	Locations  []string  `json:"locations,omitempty"`
}

type PlanningService struct {
	snapshots  repository.SnapshotReader
	plans      repository.PlanRepository
	forecaster *forecast.Forecaster
	optimizer  *optimizer.Optimizer
	cache      cache.ForecastCache
	exporter   storage.ObjectStorage
	metrics    *metrics.Recorder
	opts       PlanningOptions
}

// NewPlanningService wires a planner. cacheImpl, exporter and recorder are
// optional.
func NewPlanningService(
	snapshots repository.SnapshotReader,
	plans repository.PlanRepository,
	forecaster *forecast.Forecaster,
	opt *optimizer.Optimizer,
	cacheImpl cache.ForecastCache,
	exporter storage.ObjectStorage,
	recorder *metrics.Recorder,
	opts PlanningOptions,
) *PlanningService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopForecastCache()
	}
	if opts.HistoryDays == 0 {
		opts.HistoryDays = defaultHistoryDays
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultForecastWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PlanningService{
		snapshots:  snapshots,
		plans:      plans,
		forecaster: forecaster,
		optimizer:  opt,
		cache:      cacheImpl,
		exporter:   exporter,
		metrics:    recorder,
		opts:       opts,
	}
}

// Run forecasts demand for every location, optimizes across the chain, and
// stores the resulting plan. The plan is exported to object storage when an
// exporter is configured; export failures are logged and do not fail the run.
func (s *PlanningService) Run(ctx context.Context, req PlanRequest) (*domain.PlanRun, error) {
	started := s.opts.Now()
	run, err := s.run(ctx, req, started)

	elapsed := s.opts.Now().Sub(started)
	if err != nil {
		s.metrics.ObserveRun(domain.PlanFailed, elapsed, 0, 0, nil)
		log.Error().Err(err).Time("target_date", req.TargetDate).Msg("planner: run failed")
		return nil, err
	}

	s.metrics.ObserveRun(run.Status, elapsed, run.OrderCount, run.TransferCount, run.Diagnostics)
	log.Info().
		Str("run_id", run.ID).
		Int("locations", len(run.Locations)).
		Int("orders", run.OrderCount).
		Int("transfers", run.TransferCount).
		Str("order_cost", run.TotalOrderCost.StringFixed(2)).
		Str("transfer_cost", run.TotalTransferCost.StringFixed(2)).
		Int("diagnostics", len(run.Diagnostics)).
		Dur("elapsed", elapsed).
		Msg("planner: run completed")
	return run, nil
}

func (s *PlanningService) run(ctx context.Context, req PlanRequest, started time.Time) (*domain.PlanRun, error) {
	if req.TargetDate.IsZero() {
		return nil, domain.ErrInvalidTargetDate
	}

	cat, diags, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	levels, err := s.snapshots.ListLevels(ctx, req.Locations)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}

	// Only sales strictly before the target date feed its forecast.
	var since time.Time
	if s.opts.HistoryDays > 0 {
		since = req.TargetDate.AddDate(0, 0, -s.opts.HistoryDays)
	}
	sales, err := s.snapshots.ListSales(ctx, req.Locations, since, req.TargetDate)
	if err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}

	items := cat.ItemMap()
	preds, d, err := s.forecastLocations(ctx, groupByLocation(sales), items, req.TargetDate)
	diags = append(diags, d...)
	if err != nil {
		return nil, err
	}

	snap := optimizer.Snapshot{
		Levels:      levelsByLocation(levels),
		Predictions: preds,
		Items:       items,
	}
	result, err := s.optimizer.OptimizeAcrossLocations(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	diags = append(diags, result.Diagnostics...)

	run := &domain.PlanRun{
		ID:              uuid.NewString(),
		TargetDate:      req.TargetDate,
		Status:          domain.PlanCompleted,
		CreatedAt:       started.UTC(),
		Locations:       sortedKeys(result.Recommendations),
		Recommendations: result.Recommendations,
		Diagnostics:     diags,
	}
	run.Tally()

	s.export(ctx, run)

	if s.plans != nil {
		if err := s.plans.SavePlan(ctx, run); err != nil {
			return nil, fmt.Errorf("save plan: %w", err)
		}
	}
	return run, nil
}

func (s *PlanningService) loadCatalog(ctx context.Context) (*catalog.Store, []domain.Diagnostic, error) {
	items, err := s.snapshots.ListItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load items: %w", err)
	}
	recipes, err := s.snapshots.ListRecipes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load recipes: %w", err)
	}
	return catalog.NewStore(items, recipes)
}

// forecastLocations runs one forecast per location on a bounded worker pool.
// Locations without any history are left out; the optimizer reports their
// items as missing predictions.
func (s *PlanningService) forecastLocations(
	ctx context.Context,
	history map[string][]domain.HistoricalSalesRecord,
	items map[string]domain.InventoryItem,
	target time.Time,
) (map[string]map[string]domain.DemandPrediction, []domain.Diagnostic, error) {
	locations := sortedKeys(history)
	diagsByLoc := make([][]domain.Diagnostic, len(locations))

	var mu sync.Mutex
	out := make(map[string]map[string]domain.DemandPrediction, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := s.forecastLocation(gctx, loc, history[loc], items, target)
			if err != nil {
				return fmt.Errorf("forecast %s: %w", loc, err)
			}
			mu.Lock()
			out[loc] = entry.Predictions
			mu.Unlock()
			diagsByLoc[i] = entry.Diagnostics
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var diags []domain.Diagnostic
	for _, d := range diagsByLoc {
		diags = append(diags, d...)
	}
	return out, diags, nil
}

func (s *PlanningService) forecastLocation(
	ctx context.Context,
	location string,
	history []domain.HistoricalSalesRecord,
	items map[string]domain.InventoryItem,
	target time.Time,
) (cache.ForecastEntry, error) {
	key := cache.ForecastKey{
		Location:    location,
		TargetDate:  target,
		Fingerprint: cache.Fingerprint(history, items),
	}

	entry, hit, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheError()
		log.Warn().Err(err).Str("location", location).Msg("planner: forecast cache get failed")
	case hit:
		s.metrics.CacheHit()
		return entry, nil
	default:
		s.metrics.CacheMiss()
	}

	preds, diags, err := s.forecaster.Predict(history, items, target, location)
	if err != nil {
		return cache.ForecastEntry{}, err
	}
	entry = cache.ForecastEntry{Predictions: preds, Diagnostics: diags}

	if err := s.cache.Set(ctx, key, entry); err != nil {
		log.Warn().Err(err).Str("location", location).Msg("planner: forecast cache set failed")
	}
	return entry, nil
}

func (s *PlanningService) export(ctx context.Context, run *domain.PlanRun) {
	if s.exporter == nil {
		return
	}
	key := storage.PlanKey(s.opts.PlanPrefix, run.TargetDate.Format("2006-01-02"), run.ID)
	payload, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("planner: encode plan export failed")
		return
	}
	if err := s.exporter.UploadObject(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("planner: plan export failed")
		return
	}
	run.ExportKey = key
}

// Forecast predicts demand at one location from caller-supplied history,
// sharing the planner's cache.
func (s *PlanningService) Forecast(
	ctx context.Context,
	location string,
	target time.Time,
	history []domain.HistoricalSalesRecord,
	items map[string]domain.InventoryItem,
) (cache.ForecastEntry, error) {
	if target.IsZero() {
		return cache.ForecastEntry{}, domain.ErrInvalidTargetDate
	}
	if len(items) == 0 {
		return cache.ForecastEntry{}, domain.ErrEmptyCatalog
	}
	return s.forecastLocation(ctx, location, history, items, target)
}

// Optimize runs a single optimization pass over a caller-supplied snapshot.
func (s *PlanningService) Optimize(ctx context.Context, snap optimizer.Snapshot) (optimizer.Result, error) {
	return s.optimizer.OptimizeAcrossLocations(ctx, snap)
}

var ErrPlansUnavailable = errors.New("plan storage is not configured")

func (s *PlanningService) GetPlan(ctx context.Context, id string) (*domain.PlanRun, error) {
	if s.plans == nil {
		return nil, ErrPlansUnavailable
	}
	return s.plans.GetPlan(ctx, id)
}

func (s *PlanningService) ListPlans(ctx context.Context, limit int) ([]domain.PlanSummary, error) {
	if s.plans == nil {
		return nil, ErrPlansUnavailable
	}
	return s.plans.ListPlans(ctx, limit)
}

func groupByLocation(rows []domain.HistoricalSalesRecord) map[string][]domain.HistoricalSalesRecord {
	out := make(map[string][]domain.HistoricalSalesRecord)
	for _, r := range rows {
		out[r.Location] = append(out[r.Location], r)
	}
	return out
}

func levelsByLocation(levels []domain.InventoryLevel) map[string]map[string]domain.InventoryLevel {
	out := make(map[string]map[string]domain.InventoryLevel)
	for _, l := range levels {
		if out[l.Location] == nil {
			out[l.Location] = make(map[string]domain.InventoryLevel)
		}
		out[l.Location][l.ItemID] = l
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
