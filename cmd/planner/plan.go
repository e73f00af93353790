package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/internal/forecast"
	"github.com/andresuchdata/chainplan/internal/optimizer"
	"github.com/andresuchdata/chainplan/internal/repository/memory"
	"github.com/andresuchdata/chainplan/internal/service"
)

func planCommand() *cli.Command {
	flags := append(bundleFlags(),
		&cli.StringFlag{Name: "date", Usage: "Target date (YYYY-MM-DD)", Required: true},
		&cli.StringSliceFlag{Name: "locations", Usage: "Only plan these locations"},
		&cli.StringFlag{Name: "out", Usage: "Write the plan JSON here instead of stdout"},
	)
	return &cli.Command{
		Name:   "plan",
		Usage:  "Forecast and optimize one bundle of input files",
		Flags:  flags,
		Action: runPlan,
	}
}

// runPlan loads the bundle into an in-memory store and runs the same planning
// service the HTTP API uses against Postgres.
func runPlan(c *cli.Context) error {
	cfg := config.Load()
	ctx := c.Context
	if cfg.Planner.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Planner.RunTimeout)
		defer cancel()
	}

	target, err := parseDateFlag(c, "date")
	if err != nil {
		return err
	}

	store := memory.NewStore()
	summary, err := importBundle(ctx, c, cfg, service.NewImportService(store))
	logDiagnostics(summary)
	if err != nil {
		return err
	}

	planner := service.NewPlanningService(
		store, store,
		forecast.NewForecaster(cfg.ForecasterConfig()),
		optimizer.New(cfg.OptimizerConfig()),
		newForecastCache(cfg),
		newExporter(cfg),
		nil,
		service.PlanningOptions{
			HistoryDays: cfg.Planner.HistoryDays,
			Workers:     cfg.Planner.Workers,
			PlanPrefix:  cfg.Storage.PlanPrefix,
		},
	)

	run, err := planner.Run(ctx, service.PlanRequest{TargetDate: target, Locations: c.StringSlice("locations")})
	if err != nil {
		return err
	}
	if run.ExportKey != "" {
		log.Info().Str("key", run.ExportKey).Msg("plan exported")
	}
	return writeJSON(c.String("out"), run)
}
