// Package optimizer turns stock levels and demand predictions into per-location
// replenishment orders and cross-location transfers.
package optimizer

import "time"

const (
	defaultBaseTransportCost      = 200
	defaultFrozenMultiplier       = 1.5
	defaultRefrigeratedMultiplier = 1.3
	defaultTransferMarkdown       = 0.8
	defaultOrderTolerance         = 1.2
	defaultWorkers                = 4

	// coverageEpsilon keeps days-of-coverage finite for zero demand.
	coverageEpsilon = 0.0001
	// quantityScale grows transport cost by 1/1000 per unit moved.
	quantityScale = 1000
)

// Config holds the cost model and execution limits of one optimizer.
type Config struct {
	Routes                 *RouteTable
	BaseTransportCost      float64
	FrozenMultiplier       float64
	RefrigeratedMultiplier float64
	// TransferMarkdown is applied to the unit cost of goods already owned by the chain.
	TransferMarkdown float64
	// OrderTolerance caps a transfer's total cost at this multiple of a fresh order.
	OrderTolerance float64
	Workers        int
	// MaxEvaluations caps locations × items per request; 0 disables the cap.
	MaxEvaluations int
	Now            func() time.Time
}

// DefaultRoutes is the built-in Swiss route table.
func DefaultRoutes() *RouteTable {
	return NewRouteTable(
		Route{From: "Zurich", To: "Geneva", Cost: 120},
		Route{From: "Zurich", To: "Basel", Cost: 100},
		Route{From: "Geneva", To: "Basel", Cost: 150},
	)
}

// DefaultConfig returns the production cost model with the wall clock.
func DefaultConfig() Config {
	return Config{
		Routes:                 DefaultRoutes(),
		BaseTransportCost:      defaultBaseTransportCost,
		FrozenMultiplier:       defaultFrozenMultiplier,
		RefrigeratedMultiplier: defaultRefrigeratedMultiplier,
		TransferMarkdown:       defaultTransferMarkdown,
		OrderTolerance:         defaultOrderTolerance,
		Workers:                defaultWorkers,
		Now:                    time.Now,
	}
}

// withDefaults fills zero values so a partially populated Config stays usable.
func (c Config) withDefaults() Config {
	if c.Routes == nil {
		c.Routes = NewRouteTable()
	}
	if c.BaseTransportCost <= 0 {
		c.BaseTransportCost = defaultBaseTransportCost
	}
	if c.FrozenMultiplier <= 0 {
		c.FrozenMultiplier = defaultFrozenMultiplier
	}
	if c.RefrigeratedMultiplier <= 0 {
		c.RefrigeratedMultiplier = defaultRefrigeratedMultiplier
	}
	if c.TransferMarkdown <= 0 {
		c.TransferMarkdown = defaultTransferMarkdown
	}
	if c.OrderTolerance <= 0 {
		c.OrderTolerance = defaultOrderTolerance
	}
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
