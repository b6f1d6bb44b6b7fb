package export

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/database"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stored observations",
		Subcommands: []*cli.Command{
			{
				Name:  "fares",
				Usage: "write fares joined with their journeys as CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "origin",
						Usage: "only journeys from this station",
					},
					&cli.StringFlag{
						Name:  "destination",
						Usage: "only journeys to this station",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "only fares of this ticket type",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "file to write, standard output when empty",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					defer database.Disconnect()

					store, err := database.OpenStore()
					if err != nil {
						return err
					}

					fares, err := store.QueryFares(c.Context, database.FareFilter{
						JourneyFilter: database.JourneyFilter{
							OriginCode:      c.String("origin"),
							DestinationCode: c.String("destination"),
						},
						Type: c.String("type"),
					})
					if err != nil {
						return err
					}

					var out io.Writer = os.Stdout
					if path := c.String("output"); path != "" {
						file, err := os.Create(path)
						if err != nil {
							return err
						}
						defer file.Close()

						out = file
					}

					if err := WriteFaresCSV(fares, out); err != nil {
						return err
					}

					log.Info().Int("fares", len(fares)).Msg("Exported fares")

					return nil
				},
			},
		},
	}
}
