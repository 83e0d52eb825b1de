package driven

import (
	"context"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// FeatureGate decides whether a named feature is active for a repository.
type FeatureGate interface {
	IsEnabled(ctx context.Context, name string, repoFullName string) (bool, error)
}

// FeatureGateStore manages stored feature gate values. A repository-scoped
// value overrides the global one; an absent gate is disabled.
type FeatureGateStore interface {
	FeatureGate
	Set(ctx context.Context, gate model.FeatureGate) error
	ListAll(ctx context.Context) ([]model.FeatureGate, error)
}
