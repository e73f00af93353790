package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/ingest"
	"github.com/andresuchdata/chainplan/internal/repository"
	"github.com/andresuchdata/chainplan/internal/service"
)

func statusFor(err error) int {
	var inputErr *domain.InputDataError
	switch {
	case errors.Is(err, domain.ErrInvalidTargetDate),
		errors.Is(err, domain.ErrEmptyCatalog),
		errors.Is(err, domain.ErrEmptyHistory),
		errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrWorkLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, repository.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPlansUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func parseTargetDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, domain.ErrInvalidTargetDate
	}
	return ingest.ParseDate(raw)
}
