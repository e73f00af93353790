package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/chainplan/internal/api/handlers"
	"github.com/andresuchdata/chainplan/internal/api/middleware"
	"github.com/andresuchdata/chainplan/internal/metrics"
	"github.com/andresuchdata/chainplan/internal/service"
)

type Services struct {
	Planning *service.PlanningService
	Import   *service.ImportService
	Sources  handlers.ImportSources
	Metrics  *metrics.Recorder
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil {
		return router
	}

	if services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(services.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	apiGroup := router.Group("/api/v1")

	if services.Planning != nil {
		forecastHandler := handlers.NewForecastHandler(services.Planning)
		apiGroup.POST("/forecast", forecastHandler.Forecast)
		apiGroup.POST("/optimize", forecastHandler.Optimize)

		planHandler := handlers.NewPlanHandler(services.Planning)
		planGroup := apiGroup.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("", planHandler.ListPlans)
			planGroup.GET("/:id", planHandler.GetPlan)
		}
	}

	if services.Import != nil {
		importHandler := handlers.NewImportHandler(services.Import, services.Sources)
		apiGroup.POST("/imports", importHandler.Import)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
