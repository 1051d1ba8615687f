// Package cache keeps restaurant slugs in Redis so role routing does not hit
// the database on every sign-in.
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
)

// noSlug is cached for restaurants without a slug so misses are cached too.
const noSlug = "\x00"

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: client, TTL: ttl}
}

func (c *RedisCache) SlugKey(restaurantID uuid.UUID) string {
	return "restaurant:slug:" + restaurantID.String()
}

// GetSlug returns the cached slug. found is false on a cache miss.
func (c *RedisCache) GetSlug(ctx context.Context, restaurantID uuid.UUID) (slug string, found bool, err error) {
	val, err := c.Client.Get(ctx, c.SlugKey(restaurantID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if val == noSlug {
		return "", true, nil
	}
	return val, true, nil
}

func (c *RedisCache) SetSlug(ctx context.Context, restaurantID uuid.UUID, slug string) error {
	if slug == "" {
		slug = noSlug
	}
	return c.Client.Set(ctx, c.SlugKey(restaurantID), slug, c.TTL).Err()
}

// SlugStore reads slugs from the database.
// Satisfied by *database.Queries.
type SlugStore interface {
	GetRestaurantSlug(ctx context.Context, id uuid.UUID) (pgtype.Text, error)
}

// SlugResolver looks restaurant slugs up through the cache, falling back to
// the store. Cache is optional; a nil Cache always reads the store.
type SlugResolver struct {
	Store SlugStore
	Cache *RedisCache
}

func NewSlugResolver(store SlugStore, cache *RedisCache) *SlugResolver {
	return &SlugResolver{Store: store, Cache: cache}
}

// RestaurantSlug returns "" with no error when the restaurant has no slug or
// does not exist. Cache failures are logged and bypassed.
func (r *SlugResolver) RestaurantSlug(ctx context.Context, id uuid.UUID) (string, error) {
	if r.Cache != nil {
		slug, found, err := r.Cache.GetSlug(ctx, id)
		if err != nil {
			log.Printf("WARN: slug cache get %s: %v", id, err)
		} else if found {
			return slug, nil
		}
	}

	text, err := r.Store.GetRestaurantSlug(ctx, id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	slug := ""
	if err == nil && text.Valid {
		slug = text.String
	}

	if r.Cache != nil {
		if err := r.Cache.SetSlug(ctx, id, slug); err != nil {
			log.Printf("WARN: slug cache set %s: %v", id, err)
		}
	}
	return slug, nil
}
