package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// addTestRepo inserts a repository required for foreign key constraints in merge request tests.
func addTestRepo(t *testing.T, db *DB, fullName string) {
	t.Helper()
	parts := splitFullName(fullName)
	repoRepo := NewRepoRepo(db)
	err := repoRepo.Add(context.Background(), model.Repository{
		FullName: fullName,
		Owner:    parts[0],
		Name:     parts[1],
		AddedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

// splitFullName splits "owner/name" into ["owner", "name"].
func splitFullName(fullName string) [2]string {
	for i, c := range fullName {
		if c == '/' {
			return [2]string{fullName[:i], fullName[i+1:]}
		}
	}
	return [2]string{fullName, ""}
}

func makeMR(repoFullName string, number int, title string) model.MergeRequest {
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	return model.MergeRequest{
		Number:          number,
		RepoFullName:    repoFullName,
		Title:           title,
		Author:          "testuser",
		State:           model.MRStateOpen,
		URL:             fmt.Sprintf("https://github.com/%s/pull/%d", repoFullName, number),
		Branch:          "feature-branch",
		BaseBranch:      "main",
		HeadSHA:         "abc123",
		MergeableStatus: model.MergeableMergeable,
		CIStatus:        model.CIStatusPassing,
		OpenedAt:        now,
		UpdatedAt:       now,
	}
}

// insertTestMR adds the repository and one merge request and returns the merge request ID.
func insertTestMR(t *testing.T, db *DB) int64 {
	t.Helper()
	addTestRepo(t, db, "octocat/hello-world")
	id, err := NewMergeRequestRepo(db).Upsert(context.Background(), makeMR("octocat/hello-world", 1, "Add README"))
	require.NoError(t, err)
	return id
}

func TestMergeRequestRepo_Upsert_Insert(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, "octocat/hello-world")
	mrRepo := NewMergeRequestRepo(db)
	ctx := context.Background()

	id, err := mrRepo.Upsert(ctx, makeMR("octocat/hello-world", 1, "Add README"))
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := mrRepo.GetByNumber(ctx, "octocat/hello-world", 1)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.Positive(t, got.ProjectID, "project ID comes from the owning repository")
	assert.Equal(t, 1, got.Number)
	assert.Equal(t, "Add README", got.Title)
	assert.Equal(t, "testuser", got.Author)
	assert.Equal(t, model.MRStateOpen, got.State)
	assert.Equal(t, model.MergeableMergeable, got.MergeableStatus)
	assert.Equal(t, model.CIStatusPassing, got.CIStatus)
	assert.Equal(t, "abc123", got.HeadSHA)
	assert.True(t, got.UpdatedAt.Equal(time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)))
	assert.False(t, got.IsDraft)
}

func TestMergeRequestRepo_Upsert_UpdateKeepsID(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, "octocat/hello-world")
	mrRepo := NewMergeRequestRepo(db)
	ctx := context.Background()

	mr := makeMR("octocat/hello-world", 1, "Original")
	first, err := mrRepo.Upsert(ctx, mr)
	require.NoError(t, err)

	mr.Title = "Updated"
	mr.IsDraft = true
	mr.MergeableStatus = model.MergeableConflicted
	second, err := mrRepo.Upsert(ctx, mr)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	got, err := mrRepo.GetByNumber(ctx, "octocat/hello-world", 1)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)
	assert.True(t, got.IsDraft)
	assert.Equal(t, model.MergeableConflicted, got.MergeableStatus)
}

func TestMergeRequestRepo_Upsert_DefaultsEmptyStatuses(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, "octocat/hello-world")
	mrRepo := NewMergeRequestRepo(db)
	ctx := context.Background()

	mr := makeMR("octocat/hello-world", 1, "No status yet")
	mr.MergeableStatus = ""
	mr.CIStatus = ""
	_, err := mrRepo.Upsert(ctx, mr)
	require.NoError(t, err)

	got, err := mrRepo.GetByNumber(ctx, "octocat/hello-world", 1)
	require.NoError(t, err)
	assert.Equal(t, model.MergeableUnknown, got.MergeableStatus)
	assert.Equal(t, model.CIStatusUnknown, got.CIStatus)
}

func TestMergeRequestRepo_Upsert_UnknownRepository(t *testing.T) {
	db := setupTestDB(t)
	mrRepo := NewMergeRequestRepo(db)

	_, err := mrRepo.Upsert(context.Background(), makeMR("ghost/repo", 1, "Orphan"))
	assert.Error(t, err, "foreign key to repositories must be enforced")
}

func TestMergeRequestRepo_SettingsSnapshot(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, "octocat/hello-world")
	mrRepo := NewMergeRequestRepo(db)
	settingsRepo := NewRepoSettingsRepo(db)
	ctx := context.Background()

	_, err := mrRepo.Upsert(ctx, makeMR("octocat/hello-world", 1, "Add README"))
	require.NoError(t, err)

	got, err := mrRepo.GetByNumber(ctx, "octocat/hello-world", 1)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRepoSettings("octocat/hello-world"), got.Settings)

	require.NoError(t, settingsRepo.SetSettings(ctx, model.RepoSettings{
		RepoFullName:            "octocat/hello-world",
		RequiredApprovals:       3,
		RequireCIPass:           false,
		BlockOnRequestedChanges: true,
	}))

	got, err = mrRepo.GetByNumber(ctx, "octocat/hello-world", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Settings.RequiredApprovals)
	assert.False(t, got.Settings.RequireCIPass)
	assert.True(t, got.Settings.BlockOnRequestedChanges)
}

func TestMergeRequestRepo_GetByNumber_NotFound(t *testing.T) {
	db := setupTestDB(t)
	mrRepo := NewMergeRequestRepo(db)

	got, err := mrRepo.GetByNumber(context.Background(), "octocat/hello-world", 999)
	assert.ErrorIs(t, err, driven.ErrMergeRequestNotFound)
	assert.Nil(t, got)
}

func TestMergeRequestRepo_ListByRepository(t *testing.T) {
	db := setupTestDB(t)
	addTestRepo(t, db, "octocat/hello-world")
	addTestRepo(t, db, "octocat/other")
	mrRepo := NewMergeRequestRepo(db)
	ctx := context.Background()

	for _, n := range []int{3, 1, 2} {
		_, err := mrRepo.Upsert(ctx, makeMR("octocat/hello-world", n, "MR"))
		require.NoError(t, err)
	}
	_, err := mrRepo.Upsert(ctx, makeMR("octocat/other", 1, "Other"))
	require.NoError(t, err)

	mrs, err := mrRepo.ListByRepository(ctx, "octocat/hello-world")
	require.NoError(t, err)
	require.Len(t, mrs, 3)
	assert.Equal(t, 1, mrs[0].Number)
	assert.Equal(t, 2, mrs[1].Number)
	assert.Equal(t, 3, mrs[2].Number)
}

func TestMergeRequestRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	mrID := insertTestMR(t, db)
	mrRepo := NewMergeRequestRepo(db)
	reviewRepo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, reviewRepo.ReplaceReviewsForMR(ctx, mrID, []model.Review{
		{ID: 1, MRID: mrID, ReviewerLogin: "alice", State: model.ReviewStateApproved, SubmittedAt: time.Now().UTC()},
	}))

	require.NoError(t, mrRepo.Delete(ctx, "octocat/hello-world", 1))

	_, err := mrRepo.GetByNumber(ctx, "octocat/hello-world", 1)
	assert.ErrorIs(t, err, driven.ErrMergeRequestNotFound)

	reviews, err := reviewRepo.GetReviewsByMR(ctx, mrID)
	require.NoError(t, err)
	assert.Empty(t, reviews, "reviews must cascade with the merge request")

	assert.ErrorIs(t, mrRepo.Delete(ctx, "octocat/hello-world", 1), driven.ErrMergeRequestNotFound)
}
