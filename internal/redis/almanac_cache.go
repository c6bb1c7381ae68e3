package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

const (
	stateKeyPrefix = "almanac:state:"
	safePoolKey    = "almanac:pool:safe"
	swingPoolKey   = "almanac:pool:swing"
)

// cachedStateRepository is a cache-aside decorator over a StateRepository.
// The almanac is read-mostly and snapshot-based; a bounded-staleness cache is
// acceptable for every resolver read (see the pool TTL in MatchConfig).
type cachedStateRepository struct {
	client *redis.Client
	inner  storage.StateRepository
	ttl    time.Duration
}

// NewCachedStateRepository wraps inner with a Redis cache using the given TTL.
func NewCachedStateRepository(client *redis.Client, inner storage.StateRepository, ttl time.Duration) storage.StateRepository {
	return &cachedStateRepository{client: client, inner: inner, ttl: ttl}
}

// Create writes through and drops the cached pools, since a new snapshot can
// reclassify the state.
func (r *cachedStateRepository) Create(ctx context.Context, state *models.State) error {
	if err := r.inner.Create(ctx, state); err != nil {
		return err
	}
	if err := r.client.Del(ctx, stateKeyPrefix+state.Name, safePoolKey, swingPoolKey).Err(); err != nil {
		// 缓存失效失败不致命，TTL 到期后会自行修正
		log.Printf("almanac cache: failed to invalidate after snapshot for %s: %v", state.Name, err)
	}
	return nil
}

func (r *cachedStateRepository) GetCurrent(ctx context.Context, name string) (*models.State, error) {
	key := stateKeyPrefix + name
	val, err := r.client.Get(ctx, key).Result()
	if err == nil {
		var state models.State
		if jsonErr := json.Unmarshal([]byte(val), &state); jsonErr == nil {
			return &state, nil
		}
		// Corrupt entry; fall through to the source of truth.
	} else if err != redis.Nil {
		log.Printf("almanac cache: redis get failed for %s: %v", name, err)
	}

	state, err := r.inner.GetCurrent(ctx, name)
	if err != nil {
		return nil, err
	}
	r.put(ctx, key, state)
	return state, nil
}

func (r *cachedStateRepository) SafeStatePool(ctx context.Context) ([]models.StateRank, error) {
	return r.pool(ctx, safePoolKey, r.inner.SafeStatePool)
}

func (r *cachedStateRepository) SwingStatePool(ctx context.Context) ([]models.StateRank, error) {
	return r.pool(ctx, swingPoolKey, r.inner.SwingStatePool)
}

func (r *cachedStateRepository) pool(ctx context.Context, key string, load func(context.Context) ([]models.StateRank, error)) ([]models.StateRank, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == nil {
		var pool []models.StateRank
		if jsonErr := json.Unmarshal([]byte(val), &pool); jsonErr == nil {
			return pool, nil
		}
	} else if err != redis.Nil {
		log.Printf("almanac cache: redis get failed for %s: %v", key, err)
	}

	pool, err := load(ctx)
	if err != nil {
		return nil, err
	}
	r.put(ctx, key, pool)
	return pool, nil
}

func (r *cachedStateRepository) put(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("almanac cache: marshal failed for %s: %v", key, err)
		return
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		log.Printf("almanac cache: %v", fmt.Errorf("redis set failed for %s: %w", key, err))
	}
}
