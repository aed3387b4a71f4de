package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/gloomfloor/helpers"
	"sjsage522/gloomfloor/internal/crawler"
	"sjsage522/gloomfloor/services/cache"
	"sjsage522/gloomfloor/services/publisher"
	"sjsage522/gloomfloor/services/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rarityPage mimics the server-rendered rarity page of one gloom
const rarityPage = `
<!DOCTYPE html>
<html>
<head><title>Gloom Punk #%[1]s</title></head>
<body>
  <div class="flex"><div class="self-end">Rank #%[2]s</div></div>
  <div class="bg-gray-900">
    <div class="text-lg"><span>Background: Purple</span></div>
    <div class="text-lg"><span>Hair: %[3]s</span></div>
    <div class="text-lg"><span>Face Accessory: None</span></div>
  </div>
</body>
</html>
`

// StubCollector hands out listing card texts as if scraped from the marketplace
type StubCollector struct {
	texts []string
}

var _ worker.Collector = (*StubCollector)(nil)

func (c *StubCollector) Collect(ctx context.Context, minimum int) ([]string, error) {
	return c.texts, nil
}

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

var _ cache.CacheService = (*MockCacheService)(nil)

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func newRarityServer(hits *atomic.Int32) *httptest.Server {
	ranks := map[string]string{"1234": "42", "77": "9001"}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		number := strings.TrimPrefix(r.URL.Path, "/gloompunk/")
		rank, ok := ranks[number]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, rarityPage, number, rank, "Hair "+number)
	}))
}

// TestIntegration runs a full collect, enrich, export pass against a local rarity server
func TestIntegration(t *testing.T) {
	var hits atomic.Int32
	server := newRarityServer(&hits)
	defer server.Close()

	ctx := context.Background()
	mockCache := &MockCacheService{cache: make(map[string][]byte)}

	enricher := crawler.NewCachedEnricher(crawler.NewStaticEnricher(mockCache, time.Second), mockCache, time.Hour)
	scheduler := crawler.NewScheduler(enricher)
	scheduler.Start(ctx)
	defer scheduler.Close()

	collector := &StubCollector{texts: []string{
		"#1234 Gloom PunkClub12.5",
		"#77 Gloom PunkClub3",
		"#404 Gloom PunkClub1.25",
		"Unlisted",
	}}

	var pub publisher.Publisher
	var redisPublisher *publisher.RedisPublisher
	if os.Getenv("CI") == "" {
		redisPublisher = publisher.NewRedisPublisher(ctx, "localhost:6379", 0, "test_gloomfloor_integration", 1, 100)
		if err := redisPublisher.Ping(); err == nil {
			pub = redisPublisher
		}
		defer redisPublisher.Close()
	}

	output := filepath.Join(t.TempDir(), "out", "glooms.csv")
	w := worker.NewWorker(collector, scheduler, pub, helpers.NewLogger(""), worker.Options{
		MinItems:      3,
		RarityBaseURL: server.URL + "/gloompunk/",
		OutputPath:    output,
		SummaryLimit:  10,
	})

	if pub != nil {
		client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
		defer client.Close()
		client.Del(ctx, redisPublisher.Stream(0))
	}

	report, err := w.Run(ctx)
	require.Error(t, err, "#404 has no rarity page")
	assert.ErrorIs(t, err, worker.ErrEnrichmentFailed)
	assert.Equal(t, 4, report.Collected)
	assert.Equal(t, 3, report.Parsed)
	assert.Equal(t, 2, report.Enriched)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, int32(3), hits.Load())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	rows := strings.Split(string(data), "\r\n")
	require.Len(t, rows, 4)
	assert.Equal(t, "number,price,rank,background,skin,hair,mouth,eyes,eyebrows,clothes,headAccessory,faceAccessory,glasses,url", rows[0])
	assert.Equal(t, `"1234","12.5","42","Purple",,"Hair 1234",,,,,,"None",,"`+server.URL+`/gloompunk/1234"`, rows[1])
	assert.Equal(t, `"77","3","9001","Purple",,"Hair 77",,,,,,"None",,"`+server.URL+`/gloompunk/77"`, rows[2])
	assert.Equal(t, `"404","1.25",,,,,,,,,,,,"`+server.URL+`/gloompunk/404"`, rows[3])

	if pub != nil {
		client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
		defer client.Close()

		entries, err := client.XRange(ctx, redisPublisher.Stream(0), "-", "+").Result()
		require.NoError(t, err)
		require.Len(t, entries, 3)

		decoded, err := base64.StdEncoding.DecodeString(entries[0].Values["gloom"].(string))
		require.NoError(t, err)
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(decoded, &rec))
		assert.Equal(t, "1234", rec["number"])
		assert.Equal(t, report.RunID, rec["run_id"])
	}

	// a second pass is served from the cache for everything that was enriched
	hits.Store(0)
	_, _ = worker.NewWorker(collector, scheduler, nil, helpers.NewLogger(""), worker.Options{
		MinItems:      3,
		RarityBaseURL: server.URL + "/gloompunk/",
		OutputPath:    output,
	}).Run(ctx)
	assert.Equal(t, int32(1), hits.Load())
}
