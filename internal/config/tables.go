package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/chainplan/internal/forecast"
	"github.com/andresuchdata/chainplan/internal/optimizer"
)

// Route is one symmetric transport cost entry.
type Route struct {
	From string
	To   string
	Cost float64
}

// ParseSeasonality parses "month=factor" pairs such as "6=1.2,7=1.2".
func ParseSeasonality(s string) (map[time.Month]float64, error) {
	out := make(map[time.Month]float64)
	for _, pair := range splitPairs(s) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected month=factor, got %q", pair)
		}
		month, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("invalid month %q", k)
		}
		factor, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || factor <= 0 {
			return nil, fmt.Errorf("invalid factor %q for month %d", v, month)
		}
		out[time.Month(month)] = factor
	}
	return out, nil
}

// ParseRoutes parses "From:To=cost" pairs such as "Zurich:Geneva=120".
func ParseRoutes(s string) ([]Route, error) {
	var out []Route
	for _, pair := range splitPairs(s) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected from:to=cost, got %q", pair)
		}
		from, to, ok := strings.Cut(k, ":")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid route %q", k)
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || cost < 0 {
			return nil, fmt.Errorf("invalid cost %q for route %s", v, k)
		}
		out = append(out, Route{From: from, To: to, Cost: cost})
	}
	return out, nil
}

func splitPairs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ForecasterConfig converts the forecast section for forecast.NewForecaster.
func (c *Config) ForecasterConfig() forecast.Config {
	return forecast.Config{Seasonality: c.Forecast.Seasonality}
}

// OptimizerConfig converts the transfer and planner sections for optimizer.New.
func (c *Config) OptimizerConfig() optimizer.Config {
	routes := make([]optimizer.Route, 0, len(c.Transfer.Routes))
	for _, r := range c.Transfer.Routes {
		routes = append(routes, optimizer.Route{From: r.From, To: r.To, Cost: r.Cost})
	}
	return optimizer.Config{
		Routes:                 optimizer.NewRouteTable(routes...),
		BaseTransportCost:      c.Transfer.BaseCost,
		FrozenMultiplier:       c.Transfer.FrozenMultiplier,
		RefrigeratedMultiplier: c.Transfer.RefrigeratedMultiplier,
		TransferMarkdown:       c.Transfer.Markdown,
		OrderTolerance:         c.Transfer.OrderTolerance,
		Workers:                c.Planner.Workers,
		MaxEvaluations:         c.Planner.MaxEvaluations,
		Now:                    time.Now,
	}
}
