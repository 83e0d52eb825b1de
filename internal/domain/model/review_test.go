package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatestReviewStates(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	reviews := []Review{
		{ReviewerLogin: "alice", State: ReviewStateChangesRequested, SubmittedAt: t0},
		{ReviewerLogin: "alice", State: ReviewStateApproved, SubmittedAt: t0.Add(time.Hour)},
		{ReviewerLogin: "alice", State: ReviewStateCommented, SubmittedAt: t0.Add(2 * time.Hour)},
		{ReviewerLogin: "bob", State: ReviewStateApproved, SubmittedAt: t0},
		{ReviewerLogin: "bob", State: ReviewStateDismissed, SubmittedAt: t0.Add(time.Hour)},
		{ReviewerLogin: "carol", State: ReviewStateCommented, SubmittedAt: t0},
		{ReviewerLogin: "dave", State: ReviewStateChangesRequested, SubmittedAt: t0},
	}

	got := LatestReviewStates(reviews)

	assert.Equal(t, map[string]ReviewState{
		"alice": ReviewStateApproved,
		"dave":  ReviewStateChangesRequested,
	}, got)
}

func TestLatestReviewStates_Empty(t *testing.T) {
	assert.Empty(t, LatestReviewStates(nil))
}
