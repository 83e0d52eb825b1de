package sqlite

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Counter names reported by QueryCounter.Snapshot.
const (
	CounterQueries  = "db_count"
	CounterWrites   = "db_write_count"
	CounterPrimary  = "db_primary_count"
	CounterReplica  = "db_replica_count"
	CounterDuration = "db_duration_s"
)

type connRole int

const (
	rolePrimary connRole = iota
	roleReplica
)

// Compile-time interface satisfaction check.
var _ driven.ResourceCounter = (*QueryCounter)(nil)

// QueryCounter attributes statements issued through DB to the context they
// were issued with. Work done with an untracked context is not counted.
type QueryCounter struct{}

// NewQueryCounter creates a QueryCounter.
func NewQueryCounter() *QueryCounter {
	return &QueryCounter{}
}

type statsKey struct{}

type queryStats struct {
	mu       sync.Mutex
	queries  int64
	writes   int64
	primary  int64
	replica  int64
	duration time.Duration
}

// Track returns ctx with a fresh set of counters attached, or ctx itself when
// it is already tracked.
func (c *QueryCounter) Track(ctx context.Context) context.Context {
	if statsFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, statsKey{}, &queryStats{})
}

// Snapshot returns the counters accumulated on ctx so far.
func (c *QueryCounter) Snapshot(ctx context.Context) map[string]float64 {
	stats := statsFrom(ctx)
	if stats == nil {
		return map[string]float64{}
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	return map[string]float64{
		CounterQueries:  float64(stats.queries),
		CounterWrites:   float64(stats.writes),
		CounterPrimary:  float64(stats.primary),
		CounterReplica:  float64(stats.replica),
		CounterDuration: stats.duration.Seconds(),
	}
}

func statsFrom(ctx context.Context) *queryStats {
	stats, _ := ctx.Value(statsKey{}).(*queryStats)
	return stats
}

func recordQuery(ctx context.Context, role connRole, write bool, elapsed time.Duration) {
	stats := statsFrom(ctx)
	if stats == nil {
		return
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	stats.queries++
	if write {
		stats.writes++
	}
	if role == rolePrimary {
		stats.primary++
	} else {
		stats.replica++
	}
	stats.duration += elapsed
}
