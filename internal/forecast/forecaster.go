// Package forecast predicts per-item demand from historical sales using a
// mean × seasonality × trend heuristic.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/chainplan/internal/domain"
)

const (
	trendHorizonDays = 30
	minTrendFactor   = 0.5
	maxTrendFactor   = 1.5
	bandSigmas       = 2
	dispersionFloor  = 0.1
)

// DefaultSeasonality models the summer high season and the winter dip.
func DefaultSeasonality() map[time.Month]float64 {
	return map[time.Month]float64{
		time.January:  0.9,
		time.February: 0.9,
		time.June:     1.2,
		time.July:     1.2,
		time.August:   1.2,
		time.December: 1.1,
	}
}

// Config holds the static tables used by the forecaster.
type Config struct {
	// Seasonality maps calendar months to a demand multiplier; missing months use 1.0.
	Seasonality map[time.Month]float64
}

// DefaultConfig returns the built-in seasonality table.
func DefaultConfig() Config {
	return Config{Seasonality: DefaultSeasonality()}
}

// Forecaster is stateless apart from its read-only config.
type Forecaster struct {
	seasonality map[time.Month]float64
}

// NewForecaster copies cfg so later mutation by the caller has no effect.
func NewForecaster(cfg Config) *Forecaster {
	table := make(map[time.Month]float64, len(cfg.Seasonality))
	for m, f := range cfg.Seasonality {
		if f > 0 {
			table[m] = f
		}
	}
	return &Forecaster{seasonality: table}
}

// SeasonalityFactor returns the multiplier for the month of date.
func (f *Forecaster) SeasonalityFactor(date time.Time) float64 {
	if v, ok := f.seasonality[date.Month()]; ok {
		return v
	}
	return 1.0
}

// Predict forecasts demand at location for each item on target. history must
// already be filtered to the location. Items without history are omitted from
// the result and reported as insufficient-history diagnostics.
func (f *Forecaster) Predict(
	history []domain.HistoricalSalesRecord,
	items map[string]domain.InventoryItem,
	target time.Time,
	location string,
) (map[string]domain.DemandPrediction, []domain.Diagnostic, error) {
	if target.IsZero() {
		return nil, nil, domain.ErrInvalidTargetDate
	}
	if len(items) == 0 {
		return nil, nil, domain.ErrEmptyCatalog
	}
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("%w for location %s", domain.ErrEmptyHistory, location)
	}

	var diags []domain.Diagnostic
	byItem := make(map[string][]domain.HistoricalSalesRecord)
	for _, row := range history {
		if err := row.Validate(); err != nil {
			diags = append(diags, domain.DiagnosticFromError(location, err))
			continue
		}
		byItem[row.ItemID] = append(byItem[row.ItemID], row)
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seasonality := f.SeasonalityFactor(target)
	out := make(map[string]domain.DemandPrediction, len(ids))
	for _, id := range ids {
		rows := byItem[id]
		if len(rows) == 0 {
			diags = append(diags, domain.Diagnostic{
				Kind:     domain.DiagInsufficientHistory,
				Location: location,
				ItemID:   id,
				Message:  "no historical sales",
			})
			continue
		}
		out[id] = predictItem(rows, seasonality, target, location, id)
	}

	return out, diags, nil
}

func predictItem(rows []domain.HistoricalSalesRecord, seasonality float64, target time.Time, location, itemID string) domain.DemandPrediction {
	units := make([]float64, len(rows))
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		units[i] = r.UnitsSold
		dates[i] = r.Date
	}

	avg := mean(units)
	std, ok := sampleStdDev(units)
	if !ok || std == 0 {
		std = dispersionFloor * avg
	}

	trend := trendFactor(dates, units, avg)
	predicted := roundFloat(avg*seasonality*trend, 2)
	band := bandSigmas * std

	return domain.DemandPrediction{
		Location:        location,
		ItemID:          itemID,
		TargetDate:      target,
		PredictedDemand: predicted,
		ConfidenceRange: domain.ConfidenceRange{
			Low:  roundFloat(math.Max(0, predicted-band), 2),
			High: roundFloat(predicted+band, 2),
		},
		TrendFactor:       roundFloat(trend, 2),
		SeasonalityFactor: seasonality,
	}
}

// trendFactor projects the fitted daily slope over the horizon relative to the
// mean, clamped so short series cannot extrapolate wildly.
func trendFactor(dates []time.Time, units []float64, avg float64) float64 {
	if avg == 0 {
		return 1.0
	}
	slope, ok := linearSlope(dayOffsets(dates), units)
	if !ok {
		return 1.0
	}
	return clamp(1+slope*trendHorizonDays/avg, minTrendFactor, maxTrendFactor)
}

// PredictByLocation groups mixed-location history by location and forecasts
// each one. Locations are processed in sorted order.
func (f *Forecaster) PredictByLocation(
	history []domain.HistoricalSalesRecord,
	items map[string]domain.InventoryItem,
	target time.Time,
) (map[string]map[string]domain.DemandPrediction, []domain.Diagnostic, error) {
	if len(history) == 0 {
		return nil, nil, domain.ErrEmptyHistory
	}

	byLocation := make(map[string][]domain.HistoricalSalesRecord)
	for _, row := range history {
		byLocation[row.Location] = append(byLocation[row.Location], row)
	}
	locations := make([]string, 0, len(byLocation))
	for loc := range byLocation {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	var diags []domain.Diagnostic
	out := make(map[string]map[string]domain.DemandPrediction, len(locations))
	for _, loc := range locations {
		preds, d, err := f.Predict(byLocation[loc], items, target, loc)
		if err != nil {
			return nil, diags, fmt.Errorf("forecast %s: %w", loc, err)
		}
		diags = append(diags, d...)
		out[loc] = preds
	}
	return out, diags, nil
}
