package model

import "time"

// Review represents a review submitted on a merge request.
type Review struct {
	ID            int64
	MRID          int64
	ReviewerLogin string
	State         ReviewState
	CommitID      string // SHA of the commit this review targets.
	SubmittedAt   time.Time
}

// LatestReviewStates reduces a review history to the most recent decisive
// state per reviewer. Commented and pending reviews do not override an
// earlier approval or change request; a dismissal clears it.
func LatestReviewStates(reviews []Review) map[string]ReviewState {
	latest := make(map[string]Review, len(reviews))
	for _, r := range reviews {
		switch r.State {
		case ReviewStateApproved, ReviewStateChangesRequested, ReviewStateDismissed:
		default:
			continue
		}
		prev, ok := latest[r.ReviewerLogin]
		if !ok || !r.SubmittedAt.Before(prev.SubmittedAt) {
			latest[r.ReviewerLogin] = r
		}
	}

	states := make(map[string]ReviewState, len(latest))
	for login, r := range latest {
		if r.State == ReviewStateDismissed {
			continue
		}
		states[login] = r.State
	}
	return states
}
