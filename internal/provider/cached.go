package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const defaultCacheTTL = 5 * time.Minute

// CachedProvider layers a Redis read-through cache over another provider.
// A nil client degrades to a plain passthrough, and every cache failure
// falls back to the upstream fetch.
type CachedProvider struct {
	inner  SeriesProvider
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewCachedProvider(inner SeriesProvider, client *redis.Client, ttl time.Duration, tracer trace.Tracer) *CachedProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProvider{inner: inner, client: client, ttl: ttl, tracer: tracer}
}

func (c *CachedProvider) GetSeries(ctx context.Context, symbol, rng, interval string, minRows int) (*domain.Series, error) {
	if c.client == nil {
		return c.inner.GetSeries(ctx, symbol, rng, interval, minRows)
	}

	ctx, span := c.tracer.Start(ctx, "provider.cached-get-series")
	defer span.End()

	key := fmt.Sprintf("series:%s:%s:%s", symbol, rng, interval)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var series domain.Series
		if err := json.Unmarshal(raw, &series); err == nil && series.Len() >= minRows {
			return &series, nil
		}
	} else if err != redis.Nil {
		log.Printf("series cache read failed for %s: %v", key, err)
	}

	series, err := c.inner.GetSeries(ctx, symbol, rng, interval, minRows)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(series); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Printf("series cache write failed for %s: %v", key, err)
		}
	}
	return series, nil
}
