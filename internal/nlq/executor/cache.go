// internal/nlq/executor/cache.go

package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"querydesk/internal/common/logger"
	"querydesk/internal/common/metrics"
	"querydesk/internal/models"
)

const cacheKeyPrefix = "querydesk:result:"

// ResultCache is a read-through cache for aggregated query results, keyed by
// a fingerprint of the target tables and compiled predicates. All methods
// are safe on a nil receiver, which is how a disabled cache is represented.
type ResultCache struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, log logger.Logger, ttl time.Duration) *ResultCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResultCache{
		client: client,
		logger: log.With(map[string]interface{}{"component": "result_cache"}),
		ttl:    ttl,
	}
}

func (c *ResultCache) get(ctx context.Context, targets []string, predicates map[string][]models.FilterPredicate) (*models.QueryResult, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, cacheKey(targets, predicates)).Result()
	if err == redis.Nil {
		metrics.ResultCacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.ResultCacheHits.WithLabelValues("error").Inc()
		c.logger.WithError(err).Warn("result cache read failed", nil)
		return nil, false
	}

	var result models.QueryResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		metrics.ResultCacheHits.WithLabelValues("error").Inc()
		c.logger.WithError(err).Warn("result cache entry corrupt, ignoring", nil)
		return nil, false
	}
	metrics.ResultCacheHits.WithLabelValues("hit").Inc()
	return &result, true
}

func (c *ResultCache) put(ctx context.Context, targets []string, predicates map[string][]models.FilterPredicate, result *models.QueryResult) {
	if c == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.WithError(err).Warn("result cache marshal failed", nil)
		return
	}
	if err := c.client.Set(ctx, cacheKey(targets, predicates), payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("result cache write failed", nil)
	}
}

// cacheKey fingerprints the query shape. Predicate display strings carry the
// table, column, operator and rendered value, so two queries that compile to
// the same filters share a key regardless of the raw text.
func cacheKey(targets []string, predicates map[string][]models.FilterPredicate) string {
	var parts []string
	parts = append(parts, strings.Join(targets, ","))
	for _, table := range targets {
		for _, p := range predicates[table] {
			parts = append(parts, p.Display())
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
