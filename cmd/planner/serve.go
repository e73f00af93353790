package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/chainplan/internal/api"
	"github.com/andresuchdata/chainplan/internal/api/handlers"
	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/internal/forecast"
	"github.com/andresuchdata/chainplan/internal/metrics"
	"github.com/andresuchdata/chainplan/internal/optimizer"
	"github.com/andresuchdata/chainplan/internal/repository/postgres"
	"github.com/andresuchdata/chainplan/internal/service"
	"github.com/andresuchdata/chainplan/internal/storage"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the planning HTTP API backed by Postgres",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{Name: "port", Usage: "Listen port", EnvVars: []string{"SERVER_PORT"}},
			&cli.BoolFlag{Name: "migrate", Usage: "Apply the schema before serving"},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg := config.Load()
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(c.Context, c, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("migrate") {
		if err := db.Migrate(c.Context); err != nil {
			return err
		}
	}

	store := postgres.NewStore(db)
	recorder := metrics.NewRecorder()
	exporter := newExporter(cfg)

	planner := service.NewPlanningService(
		store, store,
		forecast.NewForecaster(cfg.ForecasterConfig()),
		optimizer.New(cfg.OptimizerConfig()),
		newForecastCache(cfg),
		exporter,
		recorder,
		service.PlanningOptions{
			HistoryDays: cfg.Planner.HistoryDays,
			Workers:     cfg.Planner.Workers,
			PlanPrefix:  cfg.Storage.PlanPrefix,
		},
	)

	sources := handlers.ImportSources{WorkDir: cfg.App.DownloadDir}
	if cfg.Storage.Enabled {
		if objects, err := storage.New(cfg.Storage); err == nil {
			sources.Objects = objects
		} else {
			log.Warn().Err(err).Msg("object storage imports disabled")
		}
	}
	if cfg.Drive.CredentialsJSON != "" || cfg.Drive.CredentialsFile != "" {
		if downloader, err := newDriveDownloader(c.Context, cfg); err == nil {
			sources.Drive = downloader
		} else {
			log.Warn().Err(err).Msg("google drive imports disabled")
		}
	}

	router := api.NewRouter(&api.Services{
		Planning: planner,
		Import:   service.NewImportService(store),
		Sources:  sources,
		Metrics:  recorder,
	}, cfg.Server.AllowedOrigins)

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.String("port")
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info().Msg("Server exiting")
	return nil
}
