package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

func TestFeatureGateRepo_AbsentGateIsDisabled(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeatureGateRepo(db)

	enabled, err := repo.IsEnabled(context.Background(), "mergeability_checks_logger", "octocat/hello-world")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestFeatureGateRepo_Resolution(t *testing.T) {
	const gate = "mergeability_checks_logger"

	tests := []struct {
		name   string
		gates  []model.FeatureGate
		repo   string
		expect bool
	}{
		{
			name:   "global on",
			gates:  []model.FeatureGate{{Name: gate, RepoFullName: model.GlobalScope, Enabled: true}},
			repo:   "octocat/hello-world",
			expect: true,
		},
		{
			name: "repo override off wins over global on",
			gates: []model.FeatureGate{
				{Name: gate, RepoFullName: model.GlobalScope, Enabled: true},
				{Name: gate, RepoFullName: "octocat/hello-world", Enabled: false},
			},
			repo:   "octocat/hello-world",
			expect: false,
		},
		{
			name: "repo override on wins over global off",
			gates: []model.FeatureGate{
				{Name: gate, RepoFullName: model.GlobalScope, Enabled: false},
				{Name: gate, RepoFullName: "octocat/hello-world", Enabled: true},
			},
			repo:   "octocat/hello-world",
			expect: true,
		},
		{
			name:   "other repository override does not apply",
			gates:  []model.FeatureGate{{Name: gate, RepoFullName: "octocat/other", Enabled: true}},
			repo:   "octocat/hello-world",
			expect: false,
		},
		{
			name:   "other gate does not apply",
			gates:  []model.FeatureGate{{Name: "something_else", Enabled: true}},
			repo:   "octocat/hello-world",
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewFeatureGateRepo(db)
			ctx := context.Background()

			for _, g := range tt.gates {
				require.NoError(t, repo.Set(ctx, g))
			}

			enabled, err := repo.IsEnabled(ctx, gate, tt.repo)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, enabled)
		})
	}
}

func TestFeatureGateRepo_SetOverwritesAndLists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeatureGateRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, model.FeatureGate{Name: "b", Enabled: true}))
	require.NoError(t, repo.Set(ctx, model.FeatureGate{Name: "a", RepoFullName: "octocat/hello-world", Enabled: true}))
	require.NoError(t, repo.Set(ctx, model.FeatureGate{Name: "a", Enabled: true}))
	require.NoError(t, repo.Set(ctx, model.FeatureGate{Name: "a", Enabled: false}))

	gates, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, gates, 3)

	assert.Equal(t, "a", gates[0].Name)
	assert.Equal(t, model.GlobalScope, gates[0].RepoFullName)
	assert.False(t, gates[0].Enabled)
	assert.False(t, gates[0].UpdatedAt.IsZero())

	assert.Equal(t, "a", gates[1].Name)
	assert.Equal(t, "octocat/hello-world", gates[1].RepoFullName)
	assert.Equal(t, "b", gates[2].Name)
}
