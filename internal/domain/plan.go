package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PlanStatus of a stored planning run.
type PlanStatus string

const (
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// PlanRun is one persisted forecast+optimization pass over the chain.
type PlanRun struct {
	ID                string                            `json:"id" db:"id"`
	TargetDate        time.Time                         `json:"target_date" db:"target_date"`
	Status            PlanStatus                        `json:"status" db:"status"`
	CreatedAt         time.Time                         `json:"created_at" db:"created_at"`
	Locations         []string                          `json:"locations"`
	Recommendations   map[string]LocationRecommendation `json:"recommendations"`
	Diagnostics       []Diagnostic                      `json:"diagnostics,omitempty"`
	OrderCount        int                               `json:"order_count" db:"order_count"`
	TransferCount     int                               `json:"transfer_count" db:"transfer_count"`
	TotalOrderCost    decimal.Decimal                   `json:"total_order_cost" db:"total_order_cost"`
	TotalTransferCost decimal.Decimal                   `json:"total_transfer_cost" db:"total_transfer_cost"`
	ExportKey         string                            `json:"export_key,omitempty" db:"export_key"`
}

// PlanSummary is the listing view of a PlanRun.
type PlanSummary struct {
	ID                string          `json:"id" db:"id"`
	TargetDate        time.Time       `json:"target_date" db:"target_date"`
	Status            PlanStatus      `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	OrderCount        int             `json:"order_count" db:"order_count"`
	TransferCount     int             `json:"transfer_count" db:"transfer_count"`
	TotalOrderCost    decimal.Decimal `json:"total_order_cost" db:"total_order_cost"`
	TotalTransferCost decimal.Decimal `json:"total_transfer_cost" db:"total_transfer_cost"`
}

func (p *PlanRun) Summary() PlanSummary {
	return PlanSummary{
		ID:                p.ID,
		TargetDate:        p.TargetDate,
		Status:            p.Status,
		CreatedAt:         p.CreatedAt,
		OrderCount:        p.OrderCount,
		TransferCount:     p.TransferCount,
		TotalOrderCost:    p.TotalOrderCost,
		TotalTransferCost: p.TotalTransferCost,
	}
}

// Tally recomputes counts and money totals from the recommendations. Transfers
// are counted once, on the receiving side.
func (p *PlanRun) Tally() {
	p.OrderCount, p.TransferCount = 0, 0
	orderCost, transferCost := decimal.Zero, decimal.Zero

	for _, rec := range p.Recommendations {
		for _, o := range rec.NewOrders {
			p.OrderCount++
			orderCost = orderCost.Add(decimal.NewFromFloat(o.EstimatedCost))
		}
		for _, t := range rec.TransfersIn {
			p.TransferCount++
			transferCost = transferCost.Add(decimal.NewFromFloat(t.TotalCost))
		}
	}

	p.TotalOrderCost = orderCost.Round(2)
	p.TotalTransferCost = transferCost.Round(2)
}

// PlannedOrder flattens a new order recommendation for row storage.
type PlannedOrder struct {
	Location string `db:"location"`
	OrderRecommendation
}

// PlannedTransfer flattens a transfer for row storage.
type PlannedTransfer struct {
	ItemID string `db:"item_id"`
	TransferOption
}

// Rows returns orders and inbound transfers sorted by location and item.
func (p *PlanRun) Rows() ([]PlannedOrder, []PlannedTransfer) {
	var orders []PlannedOrder
	var transfers []PlannedTransfer
	for loc, rec := range p.Recommendations {
		for _, o := range rec.NewOrders {
			orders = append(orders, PlannedOrder{Location: loc, OrderRecommendation: o})
		}
		for itemID, t := range rec.TransfersIn {
			transfers = append(transfers, PlannedTransfer{ItemID: itemID, TransferOption: t})
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].Location != orders[j].Location {
			return orders[i].Location < orders[j].Location
		}
		return orders[i].ItemID < orders[j].ItemID
	})
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].ToLocation != transfers[j].ToLocation {
			return transfers[i].ToLocation < transfers[j].ToLocation
		}
		return transfers[i].ItemID < transfers[j].ItemID
	})
	return orders, transfers
}
