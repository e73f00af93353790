package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "planner",
		Usage: "Forecast demand and plan replenishment across restaurant locations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (console or json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.Load()
			level, format := cfg.App.LogLevel, cfg.App.LogFormat
			if c.IsSet("log-level") {
				level = c.String("log-level")
			}
			if c.IsSet("log-format") {
				format = c.String("log-format")
			}
			logger.Setup(level, format, os.Stderr)
			return nil
		},
		Commands: []*cli.Command{
			forecastCommand(),
			planCommand(),
			importCommand(),
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("planner failed")
	}
}
