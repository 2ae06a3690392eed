package scorecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentlink/matchengine/internal/match"
)

// DefaultHotCacheTTL bounds how long a score may be served from Redis
// without touching Postgres. Staleness flags flip in Postgres, so the hot
// tier must expire quickly enough that an invalidation is observed.
const DefaultHotCacheTTL = 60 * time.Second

// RedisScoreCache layers a read-through Redis hot cache over a backing
// ScoreRepository. Single-pair reads hit Redis first; every write and
// invalidation goes to the backing repository and drops the affected keys.
// List queries and the queue always pass through, as ordering lives in
// Postgres.
type RedisScoreCache struct {
	backing ScoreRepository
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRedisScoreCache wraps a repository with a Redis hot cache.
func NewRedisScoreCache(backing ScoreRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisScoreCache {
	if ttl <= 0 {
		ttl = DefaultHotCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisScoreCache{backing: backing, client: client, ttl: ttl, logger: logger}
}

// cacheKey builds the Redis key for a pair.
func cacheKey(studentID, listingID string) string {
	return "matchscore:" + studentID + ":" + listingID
}

// GetCachedScore reads the hot tier first and falls back to the backing
// repository, populating Redis on the way out. Redis failures degrade to the
// backing store and are logged, never surfaced.
func (c *RedisScoreCache) GetCachedScore(ctx context.Context, studentID, listingID string) (*CachedMatchScore, error) {
	key := cacheKey(studentID, listingID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		record := &CachedMatchScore{}
		if err := json.Unmarshal(payload, record); err == nil {
			return record, nil
		}
		// Corrupt entry: drop it and fall through to the backing store.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("redis score read failed, falling back", "error", err)
	}

	record, err := c.backing.GetCachedScore(ctx, studentID, listingID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, record)
	return record, nil
}

// store writes a record into the hot tier. Stale records are not cached so
// a read-through never hides a pending recomputation behind the TTL.
func (c *RedisScoreCache) store(ctx context.Context, key string, record *CachedMatchScore) {
	if record.IsStale {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("redis score write failed", "error", err)
	}
}

// GetStudentScores passes through to the backing repository.
func (c *RedisScoreCache) GetStudentScores(ctx context.Context, studentID string, opts StudentScoreOptions) ([]*CachedMatchScore, error) {
	return c.backing.GetStudentScores(ctx, studentID, opts)
}

// GetListingScores passes through to the backing repository.
func (c *RedisScoreCache) GetListingScores(ctx context.Context, listingID string, opts ListingScoreOptions) ([]*CachedMatchScore, error) {
	return c.backing.GetListingScores(ctx, listingID, opts)
}

// UpsertScore writes through and refreshes the hot key.
func (c *RedisScoreCache) UpsertScore(ctx context.Context, studentID, listingID, tenantID string, composite match.CompositeScore, computeDurationMs int64) (*UpsertOutcome, error) {
	outcome, err := c.backing.UpsertScore(ctx, studentID, listingID, tenantID, composite, computeDurationMs)
	if err != nil {
		return nil, err
	}
	if err := c.client.Del(ctx, cacheKey(studentID, listingID)).Err(); err != nil {
		c.logger.Warn("redis score evict failed", "error", err)
	}
	return outcome, nil
}

// InvalidateStudentScores invalidates in the backing store and evicts the
// student's hot keys.
func (c *RedisScoreCache) InvalidateStudentScores(ctx context.Context, studentID, reason string) (int, error) {
	marked, err := c.backing.InvalidateStudentScores(ctx, studentID, reason)
	if err != nil {
		return marked, err
	}
	c.evictPattern(ctx, "matchscore:"+studentID+":*")
	return marked, nil
}

// InvalidateListingScores invalidates in the backing store and evicts the
// listing's hot keys.
func (c *RedisScoreCache) InvalidateListingScores(ctx context.Context, listingID, reason string) (int, error) {
	marked, err := c.backing.InvalidateListingScores(ctx, listingID, reason)
	if err != nil {
		return marked, err
	}
	c.evictPattern(ctx, "matchscore:*:"+listingID)
	return marked, nil
}

// evictPattern scans and deletes matching hot keys. Best effort: the TTL
// bounds how long a missed eviction can linger.
func (c *RedisScoreCache) evictPattern(ctx context.Context, pattern string) {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("redis score evict failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis scan failed during eviction", "pattern", pattern, "error", err)
	}
}

// GetStaleScores passes through to the backing repository.
func (c *RedisScoreCache) GetStaleScores(ctx context.Context, limit int) ([]*QueueEntry, error) {
	return c.backing.GetStaleScores(ctx, limit)
}

// MarkProcessed passes through to the backing repository.
func (c *RedisScoreCache) MarkProcessed(ctx context.Context, studentID string, listingID *string) error {
	return c.backing.MarkProcessed(ctx, studentID, listingID)
}

// ScoreHistory passes through to the backing repository.
func (c *RedisScoreCache) ScoreHistory(ctx context.Context, studentID, listingID string, limit int) ([]*ScoreHistoryEntry, error) {
	return c.backing.ScoreHistory(ctx, studentID, listingID, limit)
}

// Ping verifies the Redis connection.
func (c *RedisScoreCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
