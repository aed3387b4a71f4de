package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sjsage522/gloomfloor/logger"
	"sjsage522/gloomfloor/services/cache"
)

// CachedEnricher serves enrichments from the cache and stores fresh ones.
// Cache failures are logged and otherwise ignored.
type CachedEnricher struct {
	Inner    Enricher
	CacheSvc cache.CacheService
	TTL      time.Duration
}

var _ Enricher = (*CachedEnricher)(nil)

// NewCachedEnricher wraps inner with a cache
func NewCachedEnricher(inner Enricher, cacheSvc cache.CacheService, ttl time.Duration) *CachedEnricher {
	return &CachedEnricher{Inner: inner, CacheSvc: cacheSvc, TTL: ttl}
}

func cacheKey(number string) string {
	return "rarity:" + number
}

// Enrich returns the cached enrichment for item, or asks Inner and caches the answer
func (c *CachedEnricher) Enrich(ctx context.Context, item Item) (Enrichment, error) {
	log := logger.ForCache()
	key := cacheKey(item.Number)

	data, err := c.CacheSvc.Get(key)
	switch {
	case err == nil:
		var cached Enrichment
		if jerr := json.Unmarshal(data, &cached); jerr == nil && cached.Traits != nil {
			log.Debug().Str("number", item.Number).Msg("Cache hit")
			return cached, nil
		}
		log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
	}

	enrichment, err := c.Inner.Enrich(ctx, item)
	if err != nil {
		return Enrichment{}, err
	}

	if data, err := json.Marshal(enrichment); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode enrichment")
	} else if err := c.CacheSvc.Set(key, data, c.TTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to store enrichment")
	}
	return enrichment, nil
}
