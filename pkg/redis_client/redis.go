package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

// Configured reports whether a Redis address has been set in the environment
func Configured() bool {
	return util.GetEnvironmentVariables()["FAREHARVEST_REDIS_ADDRESS"] != ""
}

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["FAREHARVEST_REDIS_ADDRESS"] != "" {
		address = env["FAREHARVEST_REDIS_ADDRESS"]
	}

	if env["FAREHARVEST_REDIS_PASSWORD"] != "" {
		password = env["FAREHARVEST_REDIS_PASSWORD"]
	}

	if env["FAREHARVEST_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["FAREHARVEST_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	Client = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	err := Client.Ping(context.Background()).Err()
	if err != nil {
		return err
	}

	errChan := make(chan error, 10)
	go logQueueErrors(errChan)

	QueueConnection, err = rmq.OpenConnectionWithRedisClient("fareharvest", Client, errChan)
	if err != nil {
		return err
	}

	log.Info().Str("address", address).Int("database", database).Msg("Redis client setup")

	return nil
}

func logQueueErrors(errChan <-chan error) {
	for err := range errChan {
		switch err := err.(type) {
		case *rmq.HeartbeatError:
			if err.Count == rmq.HeartbeatErrorLimit {
				log.Error().Err(err).Msg("Queue heartbeat failed too many times")
			} else {
				log.Warn().Err(err).Msg("Queue heartbeat error")
			}
		default:
			log.Warn().Err(err).Msg("Queue error")
		}
	}
}
