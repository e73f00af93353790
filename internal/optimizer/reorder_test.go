package optimizer

import (
	"testing"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_CoverageEqualToLeadTimeIsMedium(t *testing.T) {
	levels := map[string]domain.InventoryLevel{
		"BEEF001": {Location: "Zurich", ItemID: "BEEF001", CurrentQuantity: 200},
	}
	items := map[string]domain.InventoryItem{"BEEF001": beef()}

	needs, diags := Evaluate(levels, items, map[string]float64{"BEEF001": 100})
	assert.Empty(t, diags)
	require.Contains(t, needs, "BEEF001")

	n := needs["BEEF001"]
	assert.Equal(t, 250.0, n.NeededQuantity)
	assert.Equal(t, 2.0, n.DaysCoverage)
	assert.Equal(t, domain.PriorityMedium, n.Priority)
}

func TestEvaluate(t *testing.T) {
	items := map[string]domain.InventoryItem{"BEEF001": beef()}

	tests := []struct {
		name     string
		current  float64
		demand   float64
		needed   float64
		priority domain.Priority
		omitted  bool
	}{
		{name: "short coverage is high", current: 100, demand: 100, needed: 350, priority: domain.PriorityHigh},
		{name: "well stocked is omitted", current: 600, demand: 100, omitted: true},
		{name: "zero demand below reorder point", current: 100, demand: 0, needed: 150, priority: domain.PriorityMedium},
		{name: "empty shelf with no demand", current: 0, demand: 0, needed: 250, priority: domain.PriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels := map[string]domain.InventoryLevel{
				"BEEF001": {Location: "Zurich", ItemID: "BEEF001", CurrentQuantity: tt.current},
			}
			needs, diags := Evaluate(levels, items, map[string]float64{"BEEF001": tt.demand})
			assert.Empty(t, diags)
			if tt.omitted {
				assert.Empty(t, needs)
				return
			}
			require.Contains(t, needs, "BEEF001")
			assert.Equal(t, tt.needed, needs["BEEF001"].NeededQuantity)
			assert.Equal(t, tt.priority, needs["BEEF001"].Priority)
		})
	}
}

func TestRouteTable(t *testing.T) {
	routes := DefaultRoutes()
	assert.Equal(t, 3, routes.Len())

	c, ok := routes.Lookup("Geneva", "Zurich")
	require.True(t, ok)
	assert.Equal(t, 120.0, c)

	c, ok = routes.Lookup("Basel", "Geneva")
	require.True(t, ok)
	assert.Equal(t, 150.0, c)

	_, ok = routes.Lookup("Zurich", "Lugano")
	assert.False(t, ok)

	var nilTable *RouteTable
	_, ok = nilTable.Lookup("a", "b")
	assert.False(t, ok)
}

func TestTransportCost(t *testing.T) {
	cfg := DefaultConfig()
	frozen := beef()
	frozen.Storage = domain.StorageFrozen
	dry := beef()
	dry.Storage = domain.StorageRoomTemp

	assert.InDelta(t, 100*1.5*1.1, cfg.transportCost("Basel", "Zurich", 100, frozen), 1e-9)
	assert.InDelta(t, 200*1.0, cfg.transportCost("Lugano", "Zurich", 0, dry), 1e-9)
	assert.InDelta(t, 200*1.3*2, cfg.transportCost("Lugano", "Bern", 1000, beef()), 1e-9)
}
