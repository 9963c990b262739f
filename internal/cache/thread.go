package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ThreadCachePrefix is the key prefix for per-article thread caches
	ThreadCachePrefix = "thread:article:"

	// ThreadCacheTTL bounds staleness for the anonymous read path. Writes
	// invalidate eagerly; the TTL is a backstop.
	ThreadCacheTTL = 60 * time.Second
)

// ThreadCache caches the serialized public thread response per article.
// Only the unidentified-viewer view is cached: identified viewers get their
// own vote state joined in and always read through to the database.
type ThreadCache interface {
	// Get returns the cached response body, or found=false on a miss.
	Get(ctx context.Context, articleID int64) (payload []byte, found bool, err error)

	// Set stores the serialized response with the standard TTL.
	Set(ctx context.Context, articleID int64, payload []byte) error

	// Invalidate drops the cached thread. Called after every comment, vote,
	// or moderation write touching the article.
	Invalidate(ctx context.Context, articleID int64) error
}

// RedisThreadCache implements ThreadCache on plain Redis strings.
type RedisThreadCache struct {
	client *redis.Client
}

// NewThreadCache creates a ThreadCache backed by Redis.
func NewThreadCache(client *redis.Client) ThreadCache {
	return &RedisThreadCache{client: client}
}

func threadKey(articleID int64) string {
	return fmt.Sprintf("%s%d", ThreadCachePrefix, articleID)
}

func (c *RedisThreadCache) Get(ctx context.Context, articleID int64) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, threadKey(articleID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get thread cache: %w", err)
	}
	return payload, true, nil
}

func (c *RedisThreadCache) Set(ctx context.Context, articleID int64, payload []byte) error {
	if err := c.client.Set(ctx, threadKey(articleID), payload, ThreadCacheTTL).Err(); err != nil {
		log.Printf("[ThreadCache] Set FAILED: article=%d err=%v", articleID, err)
		return fmt.Errorf("set thread cache: %w", err)
	}
	return nil
}

func (c *RedisThreadCache) Invalidate(ctx context.Context, articleID int64) error {
	if err := c.client.Del(ctx, threadKey(articleID)).Err(); err != nil {
		log.Printf("[ThreadCache] Invalidate FAILED: article=%d err=%v", articleID, err)
		return fmt.Errorf("invalidate thread cache: %w", err)
	}
	return nil
}
