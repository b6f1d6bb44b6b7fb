package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fareharvest/pkg/ctdf"
)

const journeyCacheExpiry = 24 * time.Hour

// CachedStore remembers fingerprint lookups. Journeys never change once
// created so a cached hit cannot go stale; misses are not cached.
type CachedStore struct {
	Store
	Cache *cache.Cache[string]
}

func NewCachedStore(underlying Store, client *redis.Client) *CachedStore {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(journeyCacheExpiry))

	return &CachedStore{
		Store: underlying,
		Cache: cache.New[string](redisStore),
	}
}

func journeyCacheKey(fingerprint string) string {
	return fmt.Sprintf("fareharvest:journey:%s", fingerprint)
}

func (c *CachedStore) FindJourneyByFingerprint(ctx context.Context, fingerprint string) (*ctdf.Journey, error) {
	cacheValue, err := c.Cache.Get(ctx, journeyCacheKey(fingerprint))
	if err == nil {
		var journey *ctdf.Journey
		if err := json.Unmarshal([]byte(cacheValue), &journey); err == nil && journey != nil {
			return journey, nil
		}
	}

	journey, err := c.Store.FindJourneyByFingerprint(ctx, fingerprint)
	if err != nil || journey == nil {
		return journey, err
	}

	c.remember(ctx, journey)

	return journey, nil
}

func (c *CachedStore) CreateJourneyWithFare(ctx context.Context, journey *ctdf.Journey, fare *ctdf.Fare) (string, string, error) {
	journeyID, fareID, err := c.Store.CreateJourneyWithFare(ctx, journey, fare)
	if err != nil {
		return journeyID, fareID, err
	}

	cached := *journey
	cached.ID = journeyID
	cached.Fares = nil
	c.remember(ctx, &cached)

	return journeyID, fareID, nil
}

func (c *CachedStore) remember(ctx context.Context, journey *ctdf.Journey) {
	journeyJSON, err := json.Marshal(journey)
	if err != nil {
		return
	}

	if err := c.Cache.Set(ctx, journeyCacheKey(journey.Fingerprint), string(journeyJSON)); err != nil {
		log.Debug().Err(err).Str("fingerprint", journey.Fingerprint).Msg("Failed to cache journey")
	}
}
