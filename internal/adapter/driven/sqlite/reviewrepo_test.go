package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

func TestReviewRepo_ReplaceAndGetReviews(t *testing.T) {
	db := setupTestDB(t)
	mrID := insertTestMR(t, db)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	earlier := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	later := time.Date(2026, 1, 20, 14, 0, 0, 0, time.UTC)

	reviews := []model.Review{
		{
			ID:            1001,
			MRID:          mrID,
			ReviewerLogin: "alice",
			State:         model.ReviewStateApproved,
			CommitID:      "abc123",
			SubmittedAt:   later,
		},
		{
			ID:            1002,
			MRID:          mrID,
			ReviewerLogin: "bob",
			State:         model.ReviewStateChangesRequested,
			CommitID:      "def456",
			SubmittedAt:   earlier,
		},
	}

	require.NoError(t, repo.ReplaceReviewsForMR(ctx, mrID, reviews))

	got, err := repo.GetReviewsByMR(ctx, mrID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by submitted_at: bob (earlier) first
	assert.Equal(t, int64(1002), got[0].ID)
	assert.Equal(t, "bob", got[0].ReviewerLogin)
	assert.Equal(t, model.ReviewStateChangesRequested, got[0].State)
	assert.Equal(t, "def456", got[0].CommitID)
	assert.Equal(t, mrID, got[0].MRID)
	assert.Equal(t, earlier, got[0].SubmittedAt)

	assert.Equal(t, int64(1001), got[1].ID)
	assert.Equal(t, model.ReviewStateApproved, got[1].State)
}

func TestReviewRepo_ReplaceRemovesStaleReviews(t *testing.T) {
	db := setupTestDB(t)
	mrID := insertTestMR(t, db)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	submitted := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ReplaceReviewsForMR(ctx, mrID, []model.Review{
		{ID: 1, MRID: mrID, ReviewerLogin: "alice", State: model.ReviewStateApproved, SubmittedAt: submitted},
		{ID: 2, MRID: mrID, ReviewerLogin: "bob", State: model.ReviewStateCommented, SubmittedAt: submitted},
	}))

	require.NoError(t, repo.ReplaceReviewsForMR(ctx, mrID, []model.Review{
		{ID: 1, MRID: mrID, ReviewerLogin: "alice", State: model.ReviewStateDismissed, SubmittedAt: submitted},
	}))

	got, err := repo.GetReviewsByMR(ctx, mrID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ReviewStateDismissed, got[0].State)

	require.NoError(t, repo.ReplaceReviewsForMR(ctx, mrID, nil))
	got, err = repo.GetReviewsByMR(ctx, mrID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReviewRepo_UnknownMergeRequest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)

	err := repo.ReplaceReviewsForMR(context.Background(), 999, []model.Review{
		{ID: 1, ReviewerLogin: "alice", State: model.ReviewStateApproved, SubmittedAt: time.Now().UTC()},
	})
	assert.Error(t, err, "foreign key to merge_requests must be enforced")
}
