package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/api"
	"github.com/travigo/fareharvest/pkg/export"
	"github.com/travigo/fareharvest/pkg/harvest"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	// A missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

	if os.Getenv("FAREHARVEST_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("FAREHARVEST_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	// Upstream times are UK wall clock
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Europe/London timezone")
	}
	time.Local = london

	app := &cli.App{
		Name:        "fareharvest",
		Description: "Harvests rail fare observations and serves them back",

		Commands: []*cli.Command{
			harvest.RegisterCLI(),
			api.RegisterCLI(),
			export.RegisterCLI(),
		},
	}

	err = app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
