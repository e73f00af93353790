package main

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/chainplan/internal/catalog"
	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/internal/domain"
	"github.com/andresuchdata/chainplan/internal/forecast"
	"github.com/andresuchdata/chainplan/internal/ingest"
)

type forecastOutput struct {
	Predictions map[string]map[string]domain.DemandPrediction `json:"predictions"`
	Diagnostics []domain.Diagnostic                           `json:"diagnostics,omitempty"`
}

func forecastCommand() *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "Predict item demand from a sales history file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "catalog", Usage: "Catalog CSV/XLSX", Required: true},
			&cli.StringFlag{Name: "sales", Usage: "Item sales history CSV/XLSX"},
			&cli.StringFlag{Name: "recipes", Usage: "Recipes CSV/XLSX, needed with --product-sales"},
			&cli.StringFlag{Name: "product-sales", Usage: "Product sales CSV/XLSX"},
			&cli.StringFlag{Name: "location", Usage: "Only forecast this location"},
			&cli.StringFlag{Name: "date", Usage: "Target date (YYYY-MM-DD)", Required: true},
			&cli.StringFlag{Name: "out", Usage: "Write JSON here instead of stdout"},
		},
		Action: runForecast,
	}
}

func runForecast(c *cli.Context) error {
	cfg := config.Load()
	target, err := parseDateFlag(c, "date")
	if err != nil {
		return err
	}
	if c.String("sales") == "" && c.String("product-sales") == "" {
		return fmt.Errorf("--sales or --product-sales is required")
	}

	b, diags, err := ingest.LoadBundle(ingest.BundlePaths{
		Catalog:      c.String("catalog"),
		Recipes:      c.String("recipes"),
		Sales:        c.String("sales"),
		ProductSales: c.String("product-sales"),
	})
	if err != nil {
		return err
	}

	cat, d, err := catalog.NewStore(b.Items, b.Recipes)
	diags = append(diags, d...)
	if err != nil {
		return err
	}

	history := b.Sales
	if len(b.ProductSales) > 0 {
		expanded, d := cat.ExpandProductSales(b.ProductSales)
		diags = append(diags, d...)
		history = append(history, expanded...)
	}
	if loc := c.String("location"); loc != "" {
		filtered := history[:0:0]
		for _, r := range history {
			if r.Location == loc {
				filtered = append(filtered, r)
			}
		}
		history = filtered
	}

	f := forecast.NewForecaster(cfg.ForecasterConfig())
	preds, d, err := f.PredictByLocation(history, cat.ItemMap(), target)
	diags = append(diags, d...)
	if err != nil {
		return err
	}

	locations := make([]string, 0, len(preds))
	for loc := range preds {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	log.Info().Strs("locations", locations).Time("target_date", target).Int("diagnostics", len(diags)).Msg("forecast complete")

	return writeJSON(c.String("out"), forecastOutput{Predictions: preds, Diagnostics: diags})
}
