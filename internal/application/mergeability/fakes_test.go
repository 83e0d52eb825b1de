package mergeability

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// --- Fake checks ---

// fakeBehavior describes what a fake check does and records how often it
// was instantiated and executed.
type fakeBehavior struct {
	identity  string
	skip      bool
	cacheable bool
	fail      bool
	reason    string
	err       error
	onExecute func(ctx context.Context)

	instantiated int
	executed     int
}

type fakeCheck struct {
	behavior *fakeBehavior
	mr       model.MergeRequest
	params   Params
}

func (c *fakeCheck) Skip() bool       { return c.behavior.skip }
func (c *fakeCheck) Cacheable() bool  { return c.behavior.cacheable }
func (c *fakeCheck) CacheKey() string { return c.mr.HeadSHA }

func (c *fakeCheck) Execute(ctx context.Context) (model.CheckResult, error) {
	c.behavior.executed++
	if c.behavior.onExecute != nil {
		c.behavior.onExecute(ctx)
	}
	if c.behavior.err != nil {
		return model.CheckResult{}, c.behavior.err
	}
	payload := map[string]any{model.PayloadIdentifier: c.behavior.identity}
	if c.behavior.fail {
		payload[model.PayloadReason] = c.behavior.reason
		return model.FailedResult(payload), nil
	}
	return model.SuccessResult(payload), nil
}

// newFakeRegistry registers every behavior under its identity.
func newFakeRegistry(behaviors ...*fakeBehavior) *Registry {
	r := NewRegistry()
	for _, behavior := range behaviors {
		_ = r.Register(behavior.identity, func(mr model.MergeRequest, params Params) Check {
			behavior.instantiated++
			return &fakeCheck{behavior: behavior, mr: mr, params: params}
		})
	}
	return r
}

func identitiesOf(behaviors ...*fakeBehavior) []string {
	out := make([]string, 0, len(behaviors))
	for _, s := range behaviors {
		out = append(out, s.identity)
	}
	return out
}

// --- Fake cache backend ---

type memoryCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	gets    int
	sets    int
	lastTTL time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets++
	c.lastTTL = ttl
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

var errCacheDown = errors.New("cache unavailable")

// --- Fake log sink, gate and counter ---

type recordingSink struct {
	records []map[string]any
}

func (s *recordingSink) Emit(_ context.Context, record map[string]any) {
	s.records = append(s.records, record)
}

type staticGate struct {
	enabled bool
	err     error
	calls   int
}

func (g *staticGate) IsEnabled(_ context.Context, _ string, _ string) (bool, error) {
	g.calls++
	return g.enabled, g.err
}

// fakeCounter exposes mutable counters; checks bump them from onExecute.
type fakeCounter struct {
	values map[string]float64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{values: map[string]float64{"db_count": 0, "db_write_count": 0}}
}

func (c *fakeCounter) Track(ctx context.Context) context.Context { return ctx }

func (c *fakeCounter) Snapshot(_ context.Context) map[string]float64 {
	return maps.Clone(c.values)
}

// --- Fixtures ---

func testMR() model.MergeRequest {
	return model.MergeRequest{
		ID:           42,
		ProjectID:    7,
		RepoFullName: "octocat/hello-world",
		Number:       12,
		State:        model.MRStateOpen,
		HeadSHA:      "abc123",
		UpdatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Settings:     model.DefaultRepoSettings("octocat/hello-world"),
	}
}
