package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/chainplan/internal/service"
)

type planRequest struct {
	TargetDate string   `json:"target_date" binding:"required"`
	Locations  []string `json:"locations"`
}

type PlanHandler struct {
	planner *service.PlanningService
}

func NewPlanHandler(planner *service.PlanningService) *PlanHandler {
	return &PlanHandler{planner: planner}
}

func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	target, err := parseTargetDate(req.TargetDate)
	if err != nil {
		badRequest(c, "invalid target_date: "+err.Error())
		return
	}

	run, err := h.planner.Run(c.Request.Context(), service.PlanRequest{TargetDate: target, Locations: req.Locations})
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *PlanHandler) GetPlan(c *gin.Context) {
	run, err := h.planner.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *PlanHandler) ListPlans(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	plans, err := h.planner.ListPlans(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plans})
}
