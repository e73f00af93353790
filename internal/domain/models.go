// internal/domain/models.go
package domain

import (
	"strings"
	"time"
)

// StorageCondition describes how an item has to be kept, which drives transfer costs.
type StorageCondition string

const (
	StorageRoomTemp     StorageCondition = "room_temp"
	StorageRefrigerated StorageCondition = "refrigerated"
	StorageFrozen       StorageCondition = "frozen"
)

var storageAliases = map[string]StorageCondition{
	"roomtemp":     StorageRoomTemp,
	"ambient":      StorageRoomTemp,
	"dry":          StorageRoomTemp,
	"refrigerated": StorageRefrigerated,
	"chilled":      StorageRefrigerated,
	"frozen":       StorageFrozen,
}

// ParseStorageCondition accepts the spellings used by the catalog exports
// (ROOM_TEMP, room-temp, Refrigerated, ...).
func ParseStorageCondition(s string) (StorageCondition, bool) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	v, ok := storageAliases[key]
	return v, ok
}

// ItemCategory is a free-form, lower-cased grouping such as perishable, frozen or supplies.
type ItemCategory string

const (
	CategoryPerishable ItemCategory = "perishable"
	CategoryFrozen     ItemCategory = "frozen"
	CategorySupplies   ItemCategory = "supplies"
)

// NormalizeCategory lower-cases and trims a category label.
func NormalizeCategory(s string) ItemCategory {
	return ItemCategory(strings.ToLower(strings.TrimSpace(s)))
}

// InventoryItem is immutable catalog reference data.
type InventoryItem struct {
	ID            string           `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Category      ItemCategory     `json:"category" db:"category"`
	Storage       StorageCondition `json:"storage" db:"storage"`
	Unit          string           `json:"unit" db:"unit"`
	MinLevel      float64          `json:"min_level" db:"min_level"`
	MaxLevel      float64          `json:"max_level" db:"max_level"`
	ReorderPoint  float64          `json:"reorder_point" db:"reorder_point"`
	LeadTimeDays  int              `json:"lead_time_days" db:"lead_time_days"`
	ShelfLifeDays *int             `json:"shelf_life_days,omitempty" db:"shelf_life_days"`
	CostPerUnit   float64          `json:"cost_per_unit" db:"cost_per_unit"`
	SupplierID    string           `json:"supplier_id" db:"supplier_id"`
}

// Recipe lists the item quantities consumed by one unit of a sold product.
type Recipe struct {
	ProductID   string             `json:"product_id"`
	Ingredients map[string]float64 `json:"ingredients"`
}

// InventoryLevel is a point-in-time stock snapshot for one item at one location.
type InventoryLevel struct {
	Location         string    `json:"location" db:"location"`
	ItemID           string    `json:"item_id" db:"item_id"`
	CurrentQuantity  float64   `json:"current_quantity" db:"current_quantity"`
	ReservedQuantity float64   `json:"reserved_quantity" db:"reserved_quantity"`
	LastUpdated      time.Time `json:"last_updated" db:"last_updated"`
}

// AvailableQuantity is always derived, never stored.
func (l InventoryLevel) AvailableQuantity() float64 {
	return l.CurrentQuantity - l.ReservedQuantity
}

// HistoricalSalesRecord is one day of sales for an item at a location.
type HistoricalSalesRecord struct {
	Date       time.Time `json:"date" db:"sale_date"`
	Location   string    `json:"location" db:"location"`
	ItemID     string    `json:"item_id" db:"item_id"`
	UnitsSold  float64   `json:"units_sold" db:"units_sold"`
	WasteUnits float64   `json:"waste_units" db:"waste_units"`
}

// ConfidenceRange is a heuristic band around a prediction.
type ConfidenceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DemandPrediction is the forecaster output for one (location, item, target date).
type DemandPrediction struct {
	Location          string          `json:"location"`
	ItemID            string          `json:"item_id"`
	TargetDate        time.Time       `json:"target_date"`
	PredictedDemand   float64         `json:"predicted_demand"`
	ConfidenceRange   ConfidenceRange `json:"confidence_range"`
	TrendFactor       float64         `json:"trend_factor"`
	SeasonalityFactor float64         `json:"seasonality_factor"`
}

// Priority of a replenishment order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// OrderRecommendation suggests a new supplier order.
type OrderRecommendation struct {
	ItemID             string    `json:"item_id"`
	Quantity           float64   `json:"quantity"`
	Priority           Priority  `json:"priority"`
	Reason             string    `json:"reason"`
	EstimatedCost      float64   `json:"estimated_cost"`
	SuggestedOrderDate time.Time `json:"suggested_order_date"`
}

// TransferOption moves stock between two locations of the chain.
type TransferOption struct {
	FromLocation         string  `json:"from_location"`
	ToLocation           string  `json:"to_location"`
	Quantity             float64 `json:"quantity"`
	TransportCost        float64 `json:"transport_cost"`
	TotalCost            float64 `json:"total_cost"`
	AvailableImmediately bool    `json:"available_immediately"`
}

// LocationRecommendation aggregates one optimization pass for a location.
type LocationRecommendation struct {
	NewOrders    map[string]OrderRecommendation `json:"new_orders"`
	TransfersIn  map[string]TransferOption      `json:"transfers_in"`
	TransfersOut map[string]TransferOption      `json:"transfers_out"`
}

// NewLocationRecommendation returns a recommendation with initialized maps.
func NewLocationRecommendation() LocationRecommendation {
	return LocationRecommendation{
		NewOrders:    make(map[string]OrderRecommendation),
		TransfersIn:  make(map[string]TransferOption),
		TransfersOut: make(map[string]TransferOption),
	}
}

// IsEmpty reports whether nothing was recommended.
func (r LocationRecommendation) IsEmpty() bool {
	return len(r.NewOrders) == 0 && len(r.TransfersIn) == 0 && len(r.TransfersOut) == 0
}
