package driven

import (
	"context"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// GitHubClient defines the driven port for reading merge request state from
// the GitHub API. The sync service is its only consumer.
type GitHubClient interface {
	// FetchPullRequests returns pull requests for the repository in the given
	// state ("open", "closed" or "all"), mapped onto merge requests.
	FetchPullRequests(ctx context.Context, repoFullName string, state string) ([]model.MergeRequest, error)
	// FetchMergeableStatus returns GitHub's mergeable verdict for a single PR.
	FetchMergeableStatus(ctx context.Context, repoFullName string, number int) (model.MergeableStatus, error)
	FetchReviews(ctx context.Context, repoFullName string, number int) ([]model.Review, error)
	// FetchCheckRuns returns all check runs for the given ref (commit SHA or branch).
	FetchCheckRuns(ctx context.Context, repoFullName string, ref string) ([]model.CheckRun, error)
	// FetchCombinedStatus returns the combined commit status for the given ref,
	// or nil if no statuses are configured.
	FetchCombinedStatus(ctx context.Context, repoFullName string, ref string) (*model.CombinedStatus, error)
	// FetchRequiredStatusChecks returns the required status check contexts for
	// the branch's protection rules. Returns nil if unprotected.
	FetchRequiredStatusChecks(ctx context.Context, repoFullName string, branch string) ([]string, error)
}
