package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedCatalog is a read-through cache in front of the CMS client. Cache
// failures fall back to the client and are only logged.
type CachedCatalog struct {
	next   infra.CatalogClientInterface
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ infra.CatalogClientInterface = (*CachedCatalog)(nil)

func NewCachedCatalog(next infra.CatalogClientInterface, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	return &CachedCatalog{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) GetPromotions(ctx context.Context, productRef string) ([]domain.Promotion, error) {
	return readThrough(ctx, c, "catalog:promotions:"+productRef, func() ([]domain.Promotion, error) {
		return c.next.GetPromotions(ctx, productRef)
	})
}

func (c *CachedCatalog) ListShowrooms(ctx context.Context) ([]domain.Showroom, error) {
	return readThrough(ctx, c, "catalog:showrooms", func() ([]domain.Showroom, error) {
		return c.next.ListShowrooms(ctx)
	})
}

// Warmup preloads promotions for the given products.
func (c *CachedCatalog) Warmup(ctx context.Context, productRefs []string) error {
	for _, ref := range productRefs {
		promos, err := c.next.GetPromotions(ctx, ref)
		if err != nil {
			c.logger.Warn("warm up promotions", zap.String("product_ref", ref), zap.Error(err))
			continue
		}
		c.store(ctx, "catalog:promotions:"+ref, promos)
	}
	return nil
}

func readThrough[T any](ctx context.Context, c *CachedCatalog, key string, load func() (T, error)) (T, error) {
	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if err := json.Unmarshal(cached, &v); err == nil {
			return v, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("catalog cache get", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.store(ctx, key, v)
	return v, nil
}

func (c *CachedCatalog) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	jitter := time.Duration(rand.Int63n(int64(c.ttl)/5 + 1))
	if err := c.client.Set(ctx, key, data, c.ttl+jitter).Err(); err != nil {
		c.logger.Warn("catalog cache set", zap.String("key", key), zap.Error(err))
	}
}
