package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/optimizer"
	"github.com/andresuchdata/chainplan/internal/service"
)

type salesRow struct {
	Date       string  `json:"date" binding:"required"`
	ItemID     string  `json:"item_id" binding:"required"`
	UnitsSold  float64 `json:"units_sold"`
	WasteUnits float64 `json:"waste_units"`
}

type forecastRequest struct {
	Location   string                 `json:"location" binding:"required"`
	TargetDate string                 `json:"target_date" binding:"required"`
	Items      []domain.InventoryItem `json:"items"`
	History    []salesRow             `json:"history" binding:"required"`
}

type forecastResponse struct {
	Location    string                             `json:"location"`
	Predictions map[string]domain.DemandPrediction `json:"predictions"`
	Diagnostics []domain.Diagnostic                `json:"diagnostics"`
}

type optimizeRequest struct {
	Items       []domain.InventoryItem                        `json:"items" binding:"required"`
	Levels      map[string]map[string]domain.InventoryLevel   `json:"levels"`
	Predictions map[string]map[string]domain.DemandPrediction `json:"predictions"`
}

type ForecastHandler struct {
	planner *service.PlanningService
}

func NewForecastHandler(planner *service.PlanningService) *ForecastHandler {
	return &ForecastHandler{planner: planner}
}

// Forecast predicts one location from the history in the request body. When
// items are omitted every item seen in the history is forecast.
func (h *ForecastHandler) Forecast(c *gin.Context) {
	var req forecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	target, err := parseTargetDate(req.TargetDate)
	if err != nil {
		badRequest(c, "invalid target_date: "+err.Error())
		return
	}

	var diags []domain.Diagnostic
	history := make([]domain.HistoricalSalesRecord, 0, len(req.History))
	for _, row := range req.History {
		date, err := parseTargetDate(row.Date)
		if err != nil {
			diags = append(diags, domain.Diagnostic{
				Kind:     domain.DiagInputData,
				Location: req.Location,
				ItemID:   row.ItemID,
				Message:  "invalid date " + row.Date,
			})
			continue
		}
		history = append(history, domain.HistoricalSalesRecord{
			Date:       date,
			Location:   req.Location,
			ItemID:     row.ItemID,
			UnitsSold:  row.UnitsSold,
			WasteUnits: row.WasteUnits,
		})
	}

	items := make(map[string]domain.InventoryItem, len(req.Items))
	for _, it := range req.Items {
		items[it.ID] = it
	}
	if len(items) == 0 {
		for _, r := range history {
			items[r.ItemID] = domain.InventoryItem{ID: r.ItemID}
		}
	}

	entry, err := h.planner.Forecast(c.Request.Context(), req.Location, target, history, items)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, forecastResponse{
		Location:    req.Location,
		Predictions: entry.Predictions,
		Diagnostics: append(diags, entry.Diagnostics...),
	})
}

// Optimize runs one optimization pass over the snapshot in the request body.
func (h *ForecastHandler) Optimize(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var diags []domain.Diagnostic
	items := make(map[string]domain.InventoryItem, len(req.Items))
	for _, it := range req.Items {
		if err := it.Validate(); err != nil {
			diags = append(diags, domain.DiagnosticFromError("", err))
			continue
		}
		items[it.ID] = it
	}

	result, err := h.planner.Optimize(c.Request.Context(), optimizer.Snapshot{
		Levels:      req.Levels,
		Predictions: req.Predictions,
		Items:       items,
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	result.Diagnostics = append(diags, result.Diagnostics...)

	c.JSON(http.StatusOK, result)
}
