package publisher

import (
	"context"
	"encoding/base64"
	"math/rand"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sjsage522/gloomfloor/logger"
)

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks that Redis is reachable
func (p *RedisPublisher) Ping() error {
	return p.client.Ping(p.ctx).Err()
}

// Stream returns the stream name for shard n
func (p *RedisPublisher) Stream(n int) string {
	return p.streamPrefix + ":" + strconv.Itoa(n)
}

// Publish publishes a message to a Redis stream
// The message is base64 encoded before publishing
func (p *RedisPublisher) Publish(key string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	// with streamCount 10 the stream is one of <prefix>:0 ~ <prefix>:9
	stream := p.Stream(rand.Intn(p.streamCount))

	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Err()
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	for n := 0; n < p.streamCount; n++ {
		trimmed, err := p.client.XTrimMaxLen(p.ctx, p.Stream(n), int64(p.streamMaxLength)).Result()
		if err != nil {
			return err
		}
		if trimmed > 0 {
			logger.ForPublisher().Debug().Str("stream", p.Stream(n)).Int64("trimmed", trimmed).Msg("Stream trimmed")
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
