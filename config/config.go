package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "sjsage522/gloomfloor/pkg/errors"
)

// Enrichment modes
const (
	EnrichModeBrowser = "browser"
	EnrichModeHTTP    = "http"
)

// Failure policies for the enrichment scheduler
const (
	FailurePolicyContinue = "continue"
	FailurePolicyHalt     = "halt"
)

// Config represents the application configuration
type Config struct {
	// Listing source
	ListingURL  string
	MinItems    int
	ScrollPause time.Duration
	MaxScrolls  int

	// Rarity source
	RarityBaseURL  string
	EnrichMode     string
	EnrichInterval time.Duration
	FailurePolicy  string
	PageTimeout    time.Duration

	// Browser configuration
	BrowserControlURL string
	BrowserHeadless   bool
	BrowserBin        string

	// Memcache configuration
	MemcacheAddr string
	CacheTTL     time.Duration
	BlockTime    time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Output
	OutputPath   string
	ErrorLogFile string
	SummaryLimit int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		ListingURL:           getEnv("LISTING_URL", "https://solanart.io/collections/gloompunk"),
		MinItems:             getEnvInt("MIN_ITEMS", 100),
		ScrollPause:          time.Duration(getEnvInt("SCROLL_PAUSE_MS", 1000)) * time.Millisecond,
		MaxScrolls:           getEnvInt("MAX_SCROLLS", 0),
		RarityBaseURL:        getEnv("RARITY_BASE_URL", "https://gloom-rarity-page.vercel.app/punk/"),
		EnrichMode:           strings.ToLower(getEnv("ENRICH_MODE", EnrichModeBrowser)),
		EnrichInterval:       time.Duration(getEnvInt("ENRICH_INTERVAL_MS", 0)) * time.Millisecond,
		FailurePolicy:        strings.ToLower(getEnv("FAILURE_POLICY", FailurePolicyContinue)),
		PageTimeout:          time.Duration(getEnvInt("PAGE_TIMEOUT_SECONDS", 0)) * time.Second,
		BrowserControlURL:    getEnv("BROWSER_CONTROL_URL", ""),
		BrowserHeadless:      getEnvBool("BROWSER_HEADLESS", true),
		BrowserBin:           getEnv("BROWSER_BIN", ""),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		CacheTTL:             time.Duration(getEnvInt("CACHE_TTL_SECONDS", 86400)) * time.Second,
		BlockTime:            time.Duration(getEnvInt("BLOCK_TIME_SECONDS", 300)) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "gloomfloor"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		OutputPath:           getEnv("OUTPUT_PATH", "./data/glooms.csv"),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", ""),
		SummaryLimit:         getEnvInt("SUMMARY_LIMIT", 10),
		Environment:          getEnv("GLOOM_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	if c.MinItems < 1 {
		return apperrors.NewConfiguration(fmt.Sprintf("MIN_ITEMS must be positive, got %d", c.MinItems), nil)
	}
	if _, err := url.ParseRequestURI(c.ListingURL); err != nil {
		return apperrors.NewConfiguration("invalid LISTING_URL", err)
	}
	if _, err := url.ParseRequestURI(c.RarityBaseURL); err != nil {
		return apperrors.NewConfiguration("invalid RARITY_BASE_URL", err)
	}
	switch c.EnrichMode {
	case EnrichModeBrowser, EnrichModeHTTP:
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown ENRICH_MODE %q", c.EnrichMode), nil)
	}
	switch c.FailurePolicy {
	case FailurePolicyContinue, FailurePolicyHalt:
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown FAILURE_POLICY %q", c.FailurePolicy), nil)
	}
	if c.MaxScrolls < 0 {
		return apperrors.NewConfiguration("MAX_SCROLLS must not be negative", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return apperrors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	if c.OutputPath == "" {
		return apperrors.NewConfiguration("OUTPUT_PATH must not be empty", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
