package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travigo/fareharvest/pkg/schedule"
)

const checkpointExpiry = 7 * 24 * time.Hour

// Checkpoint remembers which descriptors of a run completed cleanly so an
// interrupted run can resume
type Checkpoint interface {
	Done(ctx context.Context, descriptorKey string) (bool, error)
	MarkDone(ctx context.Context, descriptorKey string) error
}

type RedisCheckpoint struct {
	Client *redis.Client
	Key    string
}

func NewRedisCheckpoint(client *redis.Client, generator schedule.Generator) *RedisCheckpoint {
	return &RedisCheckpoint{
		Client: client,
		Key: fmt.Sprintf(
			"fareharvest:checkpoint:%s:%s:%s",
			generator.OriginCode,
			generator.DestinationCode,
			generator.Reference.Format(schedule.DateFormat),
		),
	}
}

func (c *RedisCheckpoint) Done(ctx context.Context, descriptorKey string) (bool, error) {
	return c.Client.SIsMember(ctx, c.Key, descriptorKey).Result()
}

func (c *RedisCheckpoint) MarkDone(ctx context.Context, descriptorKey string) error {
	pipe := c.Client.TxPipeline()
	pipe.SAdd(ctx, c.Key, descriptorKey)
	pipe.Expire(ctx, c.Key, checkpointExpiry)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCheckpoint) Clear(ctx context.Context) error {
	return c.Client.Del(ctx, c.Key).Err()
}
