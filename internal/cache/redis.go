package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"talent-match/internal/config"
)

// EmbeddingCache caches candidate and query embeddings in Redis so that
// re-indexing an unchanged text or re-running a query does not pay for
// another embedding call.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// New connects to Redis and pings it once. Returns nil (no cache) when
// Addr is empty or the TTL is zero; embedding lookups then always miss.
func New(cfg config.RedisSettings, log *zap.Logger) (*EmbeddingCache, error) {
	if cfg.Addr == "" || cfg.EmbeddingTTL <= 0 {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("embedding cache connected", zap.String("addr", cfg.Addr))
	return &EmbeddingCache{
		client: client,
		ttl:    time.Duration(cfg.EmbeddingTTL) * time.Second,
		log:    log,
	}, nil
}

func embeddingKey(textHash string) string {
	return "talent:emb:" + textHash
}

// GetEmbedding reports (nil, false, nil) on a miss. Redis errors are returned
// so the caller can decide to fall through to the embedding API.
func (c *EmbeddingCache) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingKey(textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var emb []float32
	if err := json.Unmarshal(data, &emb); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.client.Del(ctx, embeddingKey(textHash))
		return nil, false, nil
	}
	return emb, true, nil
}

func (c *EmbeddingCache) SetEmbedding(ctx context.Context, textHash string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, embeddingKey(textHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *EmbeddingCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
