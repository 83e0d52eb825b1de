package application

import (
	"context"
	"fmt"
	"slices"

	"github.com/ericfisherdev/mergecheck/internal/application/mergeability"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// RunRequest describes one mergeability run requested by a caller.
type RunRequest struct {
	// Checks lists check identities in run order. Nil uses the configured
	// defaults; an empty non-nil list is rejected with ErrNoChecks.
	Checks     []string
	Params     mergeability.Params
	ExecuteAll bool
}

// MergeabilityService answers "can this merge request be merged" for tracked
// merge requests by running the configured mergeability checks.
type MergeabilityService struct {
	mrStore       driven.MergeRequestStore
	deps          mergeability.Deps
	defaultChecks []string
}

// NewMergeabilityService creates a MergeabilityService. An empty
// defaultChecks falls back to the built-in check order.
func NewMergeabilityService(mrStore driven.MergeRequestStore, deps mergeability.Deps, defaultChecks []string) *MergeabilityService {
	if len(defaultChecks) == 0 {
		defaultChecks = mergeability.DefaultChecks()
	}
	return &MergeabilityService{
		mrStore:       mrStore,
		deps:          deps,
		defaultChecks: slices.Clone(defaultChecks),
	}
}

// DefaultChecks returns the check order used when a request names none.
func (s *MergeabilityService) DefaultChecks() []string {
	return slices.Clone(s.defaultChecks)
}

// Run loads the merge request identified by repoFullName and number and runs
// the requested checks against it. Resource counters are tracked for the
// whole run so the run record can attribute database work to each check.
func (s *MergeabilityService) Run(ctx context.Context, repoFullName string, number int, req RunRequest) (*mergeability.RunResult, error) {
	if s.deps.Counter != nil {
		ctx = s.deps.Counter.Track(ctx)
	}

	mr, err := s.mrStore.GetByNumber(ctx, repoFullName, number)
	if err != nil {
		return nil, fmt.Errorf("load merge request %s#%d: %w", repoFullName, number, err)
	}

	checks := req.Checks
	if checks == nil {
		checks = s.defaultChecks
	}

	runner := mergeability.NewRunChecksService(ctx, *mr, req.Params, s.deps)
	return runner.Execute(ctx, checks, req.ExecuteAll)
}
