package internal

import (
	"context"

	"sjsage522/gloomfloor/config"
	"sjsage522/gloomfloor/internal/crawler"
	"sjsage522/gloomfloor/logger"
	"sjsage522/gloomfloor/services/cache"
	"sjsage522/gloomfloor/services/publisher"
)

// Dependencies holds all service dependencies of a run
type Dependencies struct {
	Browser   crawler.Browser
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// NewDependencies connects the browser and the optional cache and publisher.
// Cache and publisher stay nil when their address is not configured or the
// server does not answer.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	log := logger.Default
	deps := &Dependencies{}

	browser, err := crawler.NewRodBrowser(crawler.BrowserOptions{
		ControlURL:  cfg.BrowserControlURL,
		Bin:         cfg.BrowserBin,
		Headless:    cfg.BrowserHeadless,
		PageTimeout: cfg.PageTimeout,
	})
	if err != nil {
		return nil, err
	}
	deps.Browser = browser

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, running without cache")
		} else {
			deps.Cache = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	if cfg.RedisAddr != "" {
		rp := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := rp.Ping(); err != nil {
			rp.Close()
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, records will not be published")
		} else {
			deps.Publisher = rp
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	return deps, nil
}

// Enricher builds the enricher chain for the configured mode
func (d *Dependencies) Enricher(cfg *config.Config) crawler.Enricher {
	var enricher crawler.Enricher
	switch cfg.EnrichMode {
	case config.EnrichModeHTTP:
		enricher = crawler.NewStaticEnricher(d.Cache, cfg.BlockTime)
	default:
		enricher = crawler.NewPageEnricher(d.Browser)
	}

	if d.Cache != nil {
		enricher = crawler.NewCachedEnricher(enricher, d.Cache, cfg.CacheTTL)
	}
	return enricher
}

// Cleanup releases every dependency
func (d *Dependencies) Cleanup() {
	if d.Publisher != nil {
		d.Publisher.Close()
	}
	if d.Browser != nil {
		if err := d.Browser.Close(); err != nil {
			logger.Default.Warn().Err(err).Msg("Failed to close browser")
		}
	}
}
