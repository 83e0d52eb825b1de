// Package mergeability runs an ordered list of mergeability checks against a
// merge request. Checks may be skipped, served from a result cache, or
// executed; the run stops at the first failure unless every check is
// requested, and all timing observations are flushed as one log record.
package mergeability

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// Sentinel errors returned before any check is run.
var (
	// ErrNoChecks indicates Execute was called with an empty check list.
	ErrNoChecks = errors.New("no mergeability checks given")

	// ErrUnknownCheck indicates a check identity has no registered factory.
	ErrUnknownCheck = errors.New("unknown mergeability check")

	// ErrDuplicateCheck indicates a check identity was registered twice.
	ErrDuplicateCheck = errors.New("mergeability check already registered")
)

// Check is one pluggable unit of mergeability validation, bound to a merge
// request and a parameter bag when it is instantiated.
type Check interface {
	// Skip reports whether the check does not apply. Skipped checks produce no
	// result, no cache traffic and no observations.
	Skip() bool
	// Cacheable reports whether the result may be memoized for the current
	// merge request state.
	Cacheable() bool
	// CacheKey fingerprints the state a cached result depends on. It is only
	// consulted when Cacheable returns true.
	CacheKey() string
	// Execute evaluates the check. A failed verdict is a normal result; an
	// error means the check could not be evaluated and aborts the run.
	Execute(ctx context.Context) (model.CheckResult, error)
}

// Factory instantiates a check bound to a merge request and parameters.
type Factory func(mr model.MergeRequest, params Params) Check

// CheckError wraps an unexpected error raised while executing a check.
type CheckError struct {
	Identity string
	Err      error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("execute check %s: %v", e.Identity, e.Err)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// Params is the caller-supplied parameter bag handed to every check.
type Params map[string]any

// Bool returns the boolean value of key. Strings are parsed with
// strconv.ParseBool; anything else, including a missing key, is false.
func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return false
	}
}

// Registry maps check identities to factories. Identities are stable across
// restarts: they prefix cache keys and metric names.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under identity. Returns ErrDuplicateCheck if the
// identity is already taken.
func (r *Registry) Register(identity string, factory Factory) error {
	if _, ok := r.factories[identity]; ok {
		return fmt.Errorf("register %s: %w", identity, ErrDuplicateCheck)
	}
	r.factories[identity] = factory
	r.order = append(r.order, identity)
	return nil
}

// Lookup returns the factory registered under identity.
func (r *Registry) Lookup(identity string) (Factory, error) {
	factory, ok := r.factories[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheck, identity)
	}
	return factory, nil
}

// Identities returns the registered identities in registration order.
func (r *Registry) Identities() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
