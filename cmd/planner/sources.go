package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/chainplan/internal/cache"
	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/internal/drive"
	"github.com/andresuchdata/chainplan/internal/ingest"
	"github.com/andresuchdata/chainplan/internal/repository/postgres"
	"github.com/andresuchdata/chainplan/internal/service"
	"github.com/andresuchdata/chainplan/internal/storage"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func bundleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "dir", Usage: "Directory holding catalog, recipes, levels and sales files"},
		&cli.StringFlag{Name: "catalog", Usage: "Catalog CSV/XLSX"},
		&cli.StringFlag{Name: "recipes", Usage: "Recipes CSV/XLSX"},
		&cli.StringFlag{Name: "levels", Usage: "Stock levels CSV/XLSX"},
		&cli.StringFlag{Name: "sales", Usage: "Item sales history CSV/XLSX"},
		&cli.StringFlag{Name: "product-sales", Usage: "Product sales CSV/XLSX, expanded through recipes"},
		&cli.StringFlag{Name: "drive-folder", Usage: "Google Drive folder id to pull the bundle from"},
		&cli.StringFlag{Name: "bucket-prefix", Usage: "Object storage prefix to pull the bundle from"},
	}
}

func parseDateFlag(c *cli.Context, name string) (time.Time, error) {
	raw := c.String(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	t, err := ingest.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

// importBundle resolves the bundle flags to one source and imports it.
func importBundle(ctx context.Context, c *cli.Context, cfg *config.Config, importer *service.ImportService) (service.ImportSummary, error) {
	switch {
	case c.String("drive-folder") != "":
		downloader, err := newDriveDownloader(ctx, cfg)
		if err != nil {
			return service.ImportSummary{}, err
		}
		return importer.ImportDrive(ctx, downloader, c.String("drive-folder"), cfg.App.DownloadDir)

	case c.String("bucket-prefix") != "":
		objects, err := storage.New(cfg.Storage)
		if err != nil {
			return service.ImportSummary{}, fmt.Errorf("object storage: %w", err)
		}
		return importer.ImportObjects(ctx, objects, c.String("bucket-prefix"), cfg.App.DownloadDir)

	case c.String("dir") != "":
		return importer.ImportDir(ctx, c.String("dir"))

	default:
		paths := ingest.BundlePaths{
			Catalog:      c.String("catalog"),
			Recipes:      c.String("recipes"),
			Levels:       c.String("levels"),
			Sales:        c.String("sales"),
			ProductSales: c.String("product-sales"),
		}
		if paths.Catalog == "" {
			return service.ImportSummary{}, fmt.Errorf("one of --dir, --catalog, --drive-folder or --bucket-prefix is required")
		}
		b, diags, err := ingest.LoadBundle(paths)
		if err != nil {
			return service.ImportSummary{Diagnostics: diags}, err
		}
		summary, err := importer.Import(ctx, b)
		summary.Diagnostics = append(diags, summary.Diagnostics...)
		return summary, err
	}
}

func newDriveDownloader(ctx context.Context, cfg *config.Config) (*drive.Downloader, error) {
	creds, err := cfg.Drive.Credentials()
	if err != nil {
		return nil, err
	}
	svc, err := drive.NewService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("google drive: %w", err)
	}
	return drive.NewDownloader(svc), nil
}

// newExporter returns nil when object storage is disabled or unreachable.
func newExporter(cfg *config.Config) storage.ObjectStorage {
	if !cfg.Storage.Enabled {
		return nil
	}
	objects, err := storage.New(cfg.Storage)
	if err != nil {
		log.Warn().Err(err).Msg("object storage unavailable, plans will not be exported")
		return nil
	}
	return objects
}

// newForecastCache falls back to the no-op cache when redis is unreachable.
func newForecastCache(cfg *config.Config) cache.ForecastCache {
	c, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("forecast cache unavailable, continuing without cache")
		return cache.NewNoopForecastCache()
	}
	return c
}

func openDB(ctx context.Context, c *cli.Context, cfg *config.Config) (*postgres.DB, error) {
	dbCfg := cfg.Database
	if c.IsSet("db-url") {
		dbCfg.URL = c.String("db-url")
	}
	db, err := postgres.NewDB(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func logDiagnostics(summary service.ImportSummary) {
	for _, d := range summary.Diagnostics {
		log.Warn().Str("kind", string(d.Kind)).Str("location", d.Location).Str("item_id", d.ItemID).Msg(d.Message)
	}
}
