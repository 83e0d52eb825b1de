package mergeability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// cacheKeyVersion is bumped whenever the cached payload schema changes, so
// entries written by an older layout are never read back.
const cacheKeyVersion = "v1"

// DefaultCacheTTL bounds how long a cached check result is served.
const DefaultCacheTTL = 6 * time.Hour

// ResultsStore caches check results for one merge request. Backend failures
// are logged and treated as a miss (read) or a no-op (write); they never
// reach the caller.
type ResultsStore struct {
	backend driven.CacheBackend
	mr      model.MergeRequest
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// NewResultsStore creates a ResultsStore bound to mr. A nil backend disables
// caching: every read misses and writes are dropped.
func NewResultsStore(backend driven.CacheBackend, mr model.MergeRequest, ttl time.Duration, logger *slog.Logger, metrics *Metrics) *ResultsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsStore{
		backend: backend,
		mr:      mr,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// Key returns the cache key of check's result for the bound merge request.
func (s *ResultsStore) Key(identity string, check Check) string {
	return fmt.Sprintf("mergeability:%s:mr:%d:%s:%s", cacheKeyVersion, s.mr.ID, identity, check.CacheKey())
}

// Read returns the cached result of check, if a valid one exists.
func (s *ResultsStore) Read(ctx context.Context, identity string, check Check) (model.CheckResult, bool) {
	if s.backend == nil {
		return model.CheckResult{}, false
	}

	key := s.Key(identity, check)

	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.metrics.cacheError("read")
		s.logger.WarnContext(ctx, "mergeability cache read failed",
			"key", key,
			"merge_request_id", s.mr.ID,
			"error", err,
		)
		return model.CheckResult{}, false
	}
	if !found {
		return model.CheckResult{}, false
	}

	entry, err := model.DecodeResultMap(data)
	if err != nil {
		s.metrics.cacheError("decode")
		s.logger.WarnContext(ctx, "mergeability cache entry undecodable", "key", key, "error", err)
		return model.CheckResult{}, false
	}

	result, ok := model.CheckResultFromMap(entry)
	if !ok {
		s.metrics.cacheError("decode")
		s.logger.WarnContext(ctx, "mergeability cache entry has no valid status", "key", key)
		return model.CheckResult{}, false
	}

	return result, true
}

// Write stores result as the cached outcome of check.
func (s *ResultsStore) Write(ctx context.Context, identity string, check Check, result model.CheckResult) {
	if s.backend == nil {
		return
	}

	key := s.Key(identity, check)

	data, err := json.Marshal(result.ToMap())
	if err != nil {
		s.metrics.cacheError("encode")
		s.logger.WarnContext(ctx, "mergeability cache entry unencodable", "key", key, "error", err)
		return
	}

	if err := s.backend.Set(ctx, key, data, s.ttl); err != nil {
		s.metrics.cacheError("write")
		s.logger.WarnContext(ctx, "mergeability cache write failed",
			"key", key,
			"merge_request_id", s.mr.ID,
			"error", err,
		)
	}
}
