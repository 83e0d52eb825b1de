package driven

import (
	"context"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// CheckStore defines the driven port for CI check run persistence.
// Uses full replacement strategy: all check runs for a merge request are replaced atomically.
type CheckStore interface {
	// ReplaceCheckRunsForMR deletes all existing check runs for the given merge
	// request and inserts the provided runs atomically in a transaction.
	ReplaceCheckRunsForMR(ctx context.Context, mrID int64, runs []model.CheckRun) error
	// GetCheckRunsByMR returns all check runs for the given merge request, ordered by name.
	GetCheckRunsByMR(ctx context.Context, mrID int64) ([]model.CheckRun, error)
}
