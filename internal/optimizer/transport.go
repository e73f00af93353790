package optimizer

import (
	"github.com/andresuchdata/chainplan/internal/domain"
)

// Route is a base transport cost between two locations, valid in both directions.
type Route struct {
	From string  `json:"from" mapstructure:"from"`
	To   string  `json:"to" mapstructure:"to"`
	Cost float64 `json:"cost" mapstructure:"cost"`
}

type routeKey struct{ a, b string }

func newRouteKey(x, y string) routeKey {
	if y < x {
		x, y = y, x
	}
	return routeKey{a: x, b: y}
}

// RouteTable is a symmetric lookup of base transport costs. It is read-only
// after construction.
type RouteTable struct {
	costs map[routeKey]float64
}

// NewRouteTable builds a table; a later route for the same pair replaces an earlier one.
func NewRouteTable(routes ...Route) *RouteTable {
	t := &RouteTable{costs: make(map[routeKey]float64, len(routes))}
	for _, r := range routes {
		if r.From == "" || r.To == "" || r.Cost < 0 {
			continue
		}
		t.costs[newRouteKey(r.From, r.To)] = r.Cost
	}
	return t
}

// Lookup returns the base cost between two locations in either direction.
func (t *RouteTable) Lookup(from, to string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	c, ok := t.costs[newRouteKey(from, to)]
	return c, ok
}

// Len returns the number of distinct location pairs.
func (t *RouteTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.costs)
}

// transportCost prices moving qty units of item from one location to another.
func (c Config) transportCost(from, to string, qty float64, item domain.InventoryItem) float64 {
	base, ok := c.Routes.Lookup(from, to)
	if !ok {
		base = c.BaseTransportCost
	}

	switch item.Storage {
	case domain.StorageFrozen:
		base *= c.FrozenMultiplier
	case domain.StorageRefrigerated:
		base *= c.RefrigeratedMultiplier
	}

	return base * (1 + qty/quantityScale)
}
