// Package cache provides the scoring cache keyed by candidate identity.
package cache

import (
	"context"
	"crypto/md5" //nolint:gosec // key derivation only
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/types"
)

// scoreKeyPrefix namespaces scoring entries under the configured prefix
const scoreKeyPrefix = "score:"

// Backend is a string key/value store with expiry
type Backend interface {
	// Get returns the value for key; found is false on a miss
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key for ttl, overwriting any previous value
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ScoreCache stores validated scoring results so that identical candidates
// are not re-scored within the TTL. Backend failures degrade to misses.
type ScoreCache struct {
	backend Backend
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

// NewScoreCache creates a ScoreCache. A nil backend always misses.
func NewScoreCache(backend Backend, cfg config.CacheConfig, logger zerolog.Logger) *ScoreCache {
	return &ScoreCache{
		backend: backend,
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL(),
		timeout: cfg.Timeout(),
		logger:  logger.With().Str("component", "cache").Logger(),
	}
}

// Key returns the cache key for a candidate: prefix + "score:" + md5(title:url)
func (c *ScoreCache) Key(candidate types.RawCandidate) string {
	return c.prefix + scoreKeyPrefix + Fingerprint(candidate)
}

// Fingerprint is the hex md5 of "title:url"
func Fingerprint(candidate types.RawCandidate) string {
	sum := md5.Sum([]byte(candidate.Title + ":" + candidate.URL)) //nolint:gosec // not used for security
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for candidate. Errors, timeouts and corrupt
// payloads are logged and reported as a miss.
func (c *ScoreCache) Get(ctx context.Context, candidate types.RawCandidate) (*types.ScoringResult, bool) {
	if c == nil || c.backend == nil {
		return nil, false
	}

	key := c.Key(candidate)
	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	raw, found, err := c.backend.Get(opCtx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var result types.ScoringResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, treating as miss")
		return nil, false
	}

	c.logger.Debug().Str("key", key).Str("title", candidate.Title).Msg("cache hit")
	return &result, true
}

// Put stores result for candidate. Failures are logged and ignored.
func (c *ScoreCache) Put(ctx context.Context, candidate types.RawCandidate, result *types.ScoringResult) {
	if c == nil || c.backend == nil || result == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode scoring result for cache")
		return
	}

	key := c.Key(candidate)
	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.backend.Set(opCtx, key, string(payload), c.ttl); err != nil {
		// Log but don't fail - the score is already computed
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *ScoreCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
