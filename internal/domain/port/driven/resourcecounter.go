package driven

import "context"

// ResourceCounter exposes per-request resource consumption counters (for
// example database queries issued so far).
type ResourceCounter interface {
	// Track returns a context that accumulates counters for work done with it.
	// Calling Track on an already tracked context returns it unchanged.
	Track(ctx context.Context) context.Context
	// Snapshot returns the current counter values for ctx, keyed by counter
	// name. An untracked context yields an empty map.
	Snapshot(ctx context.Context) map[string]float64
}
