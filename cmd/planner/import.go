package main

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/internal/repository/postgres"
	"github.com/andresuchdata/chainplan/internal/service"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:   "import",
		Usage:  "Store a bundle of input files in the database",
		Flags:  append(bundleFlags(), newDBURLFlag()),
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	cfg := config.Load()
	db, err := openDB(c.Context, c, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	summary, err := importBundle(c.Context, c, cfg, service.NewImportService(postgres.NewStore(db)))
	logDiagnostics(summary)
	if err != nil {
		return err
	}

	log.Info().
		Int("items", summary.Items).
		Int("recipes", summary.Recipes).
		Int("levels", summary.Levels).
		Int("sales", summary.Sales).
		Msg("import complete")
	return nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema",
		Flags: []cli.Flag{newDBURLFlag()},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			db, err := openDB(c.Context, c, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(c.Context); err != nil {
				return err
			}
			log.Info().Msg("schema is up to date")
			return nil
		},
	}
}
