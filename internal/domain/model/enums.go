package model

// MRState represents the state of a merge request.
type MRState string

const (
	MRStateOpen   MRState = "open"
	MRStateClosed MRState = "closed"
	MRStateMerged MRState = "merged"
)

// ReviewState represents the state of a review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateCommented        ReviewState = "commented"
	ReviewStatePending          ReviewState = "pending"
	ReviewStateDismissed        ReviewState = "dismissed"
)

// CIStatus represents the combined state of the CI checks on a head commit.
type CIStatus string

const (
	CIStatusPassing CIStatus = "passing"
	CIStatusFailing CIStatus = "failing"
	CIStatusPending CIStatus = "pending"
	CIStatusUnknown CIStatus = "unknown"
)

// MergeableStatus is GitHub's tri-state answer to "does this merge cleanly".
type MergeableStatus string

const (
	MergeableMergeable  MergeableStatus = "mergeable"
	MergeableConflicted MergeableStatus = "conflicted"
	MergeableUnknown    MergeableStatus = "unknown"
)

// CheckStatus is the verdict of a single mergeability check.
type CheckStatus string

const (
	CheckStatusSuccess CheckStatus = "success"
	CheckStatusFailed  CheckStatus = "failed"
)

// Valid reports whether s is one of the known check statuses.
func (s CheckStatus) Valid() bool {
	return s == CheckStatusSuccess || s == CheckStatusFailed
}
