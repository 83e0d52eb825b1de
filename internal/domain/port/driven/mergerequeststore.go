package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// ErrMergeRequestNotFound indicates the requested merge request is not tracked.
var ErrMergeRequestNotFound = errors.New("merge request not found")

// MergeRequestStore defines the driven port for merge request persistence.
// Read methods return merge requests with the owning repository's settings
// snapshot populated (defaults when none are stored).
type MergeRequestStore interface {
	// Upsert inserts or updates a merge request keyed by (repo, number) and
	// returns its database ID.
	Upsert(ctx context.Context, mr model.MergeRequest) (int64, error)
	// GetByNumber returns ErrMergeRequestNotFound if the merge request does not exist.
	GetByNumber(ctx context.Context, repoFullName string, number int) (*model.MergeRequest, error)
	ListByRepository(ctx context.Context, repoFullName string) ([]model.MergeRequest, error)
	// Delete returns ErrMergeRequestNotFound if the merge request does not exist.
	Delete(ctx context.Context, repoFullName string, number int) error
}
