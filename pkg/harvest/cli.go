package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/consumer"
	"github.com/travigo/fareharvest/pkg/database"
	"github.com/travigo/fareharvest/pkg/elastic_client"
	"github.com/travigo/fareharvest/pkg/redis_client"
	"github.com/travigo/fareharvest/pkg/schedule"
	"github.com/travigo/fareharvest/pkg/util"
	"github.com/urfave/cli/v2"
)

func routeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "origin",
			Usage: "CRS code of the origin station",
		},
		&cli.StringFlag{
			Name:  "destination",
			Usage: "CRS code of the destination station",
		},
		&cli.StringFlag{
			Name:  "routes-file",
			Usage: "YAML file listing routes to harvest instead of --origin/--destination",
		},
		&cli.TimestampFlag{
			Name:   "reference-date",
			Usage:  "Schedule starts the day after this date (default today)",
			Layout: "2006-01-02",
		},
		&cli.IntFlag{
			Name:  "horizon-days",
			Value: schedule.DefaultHorizonDays,
			Usage: "Number of days ahead to request",
		},
	}
}

func harvesterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "delay",
			Value: DefaultMaxDelay,
			Usage: "Upper bound of the random pause after each request",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
			Usage: "Timeout for a single upstream request",
		},
		&cli.IntFlag{
			Name:  "retries",
			Value: 0,
			Usage: "Retry a failed fetch this many times before skipping it",
		},
	}
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "Collect fare observations from the upstream journey planner",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "harvest the full schedule for one or more routes",
				Flags: append(append(routeFlags(), harvesterFlags()...),
					&cli.IntFlag{
						Name:  "workers",
						Value: 1,
						Usage: "Number of descriptors processed concurrently",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Skip descriptors completed by an earlier run with the same reference date (requires Redis)",
					},
				),
				Action: func(c *cli.Context) error {
					routes, err := routesFromContext(c)
					if err != nil {
						return err
					}

					if err := connectServices(c.Bool("resume")); err != nil {
						return err
					}
					defer database.Disconnect()
					defer elastic_client.WaitUntilQueueEmpty()

					harvester, err := newHarvesterFromContext(c)
					if err != nil {
						return err
					}
					harvester.Workers = c.Int("workers")

					ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					var errs []error
					for _, route := range routes {
						generator := generatorFromContext(c, route)

						if c.Bool("resume") {
							harvester.Checkpoint = NewRedisCheckpoint(redis_client.Client, generator)
						}

						if _, err := harvester.Run(ctx, generator); err != nil {
							errs = append(errs, err)
						}

						if ctx.Err() != nil {
							break
						}
					}

					return errors.Join(errs...)
				},
			},
			{
				Name:  "enqueue",
				Usage: "publish the schedule for one or more routes to the harvest queue",
				Flags: routeFlags(),
				Action: func(c *cli.Context) error {
					routes, err := routesFromContext(c)
					if err != nil {
						return err
					}

					if err := redis_client.Connect(); err != nil {
						return err
					}

					queue, err := redis_client.QueueConnection.OpenQueue(QueueName)
					if err != nil {
						return err
					}

					for _, route := range routes {
						count, err := EnqueueSchedule(queue, generatorFromContext(c, route))
						if err != nil {
							return err
						}

						log.Info().Str("origin", route.Origin).Str("destination", route.Destination).Int("descriptors", count).Msg("Enqueued schedule")
					}

					return nil
				},
			},
			{
				Name:  "worker",
				Usage: "process descriptors from the harvest queue",
				Flags: append(harvesterFlags(),
					&cli.IntFlag{
						Name:  "consumers",
						Value: 2,
						Usage: "Number of queue consumers",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Value: 1,
						Usage: "Deliveries handed to a consumer at once",
					},
				),
				Action: func(c *cli.Context) error {
					if err := connectServices(true); err != nil {
						return err
					}
					defer database.Disconnect()
					defer elastic_client.WaitUntilQueueEmpty()

					harvester, err := newHarvesterFromContext(c)
					if err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					redisConsumer := consumer.RedisConsumer{
						QueueName:       QueueName,
						NumberConsumers: c.Int("consumers"),
						BatchSize:       c.Int("batch-size"),
						Timeout:         2 * time.Second,
						Consumer:        NewBatchConsumer(ctx, harvester),
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()
					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
			{
				Name:  "extract",
				Usage: "print the observations extracted from a saved results page",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "Path to the saved HTML page",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "date",
						Usage:    "Requested date of the page as DDMMYY",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					file, err := os.Open(c.String("file"))
					if err != nil {
						return err
					}
					defer file.Close()

					observations, err := Extract(file, c.String("date"))
					if err != nil {
						return err
					}
					shifted := CorrectRollover(observations)

					for _, observation := range observations {
						pretty.Println(observation)
					}

					log.Info().Int("observations", len(observations)).Int("rollovers", shifted).Msg("Extracted page")

					return nil
				},
			},
		},
	}
}

func routesFromContext(c *cli.Context) ([]Route, error) {
	if c.String("routes-file") != "" {
		return LoadRoutes(c.String("routes-file"))
	}

	route := Route{Origin: c.String("origin"), Destination: c.String("destination")}
	if err := route.Validate(); err != nil {
		return nil, fmt.Errorf("%w (set --origin and --destination or --routes-file)", err)
	}

	return []Route{route}, nil
}

func generatorFromContext(c *cli.Context, route Route) schedule.Generator {
	reference := time.Now()
	if timestamp := c.Timestamp("reference-date"); timestamp != nil {
		reference = *timestamp
	}

	generator := schedule.NewGenerator(route.Origin, route.Destination, reference)
	generator.HorizonDays = c.Int("horizon-days")

	return generator
}

func connectServices(requireRedis bool) error {
	if err := database.Connect(); err != nil {
		return err
	}
	if err := elastic_client.Connect(false); err != nil {
		return err
	}

	if requireRedis || redis_client.Configured() {
		if err := redis_client.Connect(); err != nil {
			return err
		}
	}

	return nil
}

func newHarvesterFromContext(c *cli.Context) (*Harvester, error) {
	fareStore, err := database.OpenStore()
	if err != nil {
		return nil, err
	}

	var store Store = fareStore
	var locker Locker = NewKeyedMutex()

	if redis_client.Client != nil {
		store = NewCachedStore(fareStore, redis_client.Client)
		locker = redis_client.NewFingerprintLock(redis_client.Client)
	}

	fetcher := NewFetcher(FetcherConfig{
		BaseURL:  util.GetEnvironmentVariables()["FAREHARVEST_UPSTREAM_BASE_URL"],
		MaxDelay: c.Duration("delay"),
		Timeout:  c.Duration("timeout"),
	})

	harvester := NewHarvester(fetcher, NewDeduplicator(store, locker))
	harvester.Retries = c.Int("retries")
	harvester.Events = DefaultEventSink()

	return harvester, nil
}
