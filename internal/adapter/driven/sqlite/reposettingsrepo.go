package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoSettingsStore = (*RepoSettingsRepo)(nil)

// RepoSettingsRepo is the SQLite implementation of the RepoSettingsStore port interface.
type RepoSettingsRepo struct {
	db *DB
}

// NewRepoSettingsRepo creates a new RepoSettingsRepo backed by the given DB.
func NewRepoSettingsRepo(db *DB) *RepoSettingsRepo {
	return &RepoSettingsRepo{db: db}
}

// GetSettings retrieves per-repository settings. Returns (nil, nil) if no
// settings exist for the repository; callers should apply defaults.
func (r *RepoSettingsRepo) GetSettings(ctx context.Context, repoFullName string) (*model.RepoSettings, error) {
	const query = `
		SELECT repo_full_name, required_approvals, require_ci_pass, block_on_requested_changes
		FROM repo_settings
		WHERE repo_full_name = ?
	`

	var s model.RepoSettings
	var requireCI, blockOnChanges int

	err := r.db.queryRow(ctx, query, repoFullName).Scan(
		&s.RepoFullName, &s.RequiredApprovals, &requireCI, &blockOnChanges,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings for %s: %w", repoFullName, err)
	}

	s.RequireCIPass = requireCI != 0
	s.BlockOnRequestedChanges = blockOnChanges != 0

	return &s, nil
}

// SetSettings inserts or updates per-repository settings. On conflict every
// requirement is replaced.
func (r *RepoSettingsRepo) SetSettings(ctx context.Context, settings model.RepoSettings) error {
	const query = `
		INSERT INTO repo_settings (repo_full_name, required_approvals, require_ci_pass, block_on_requested_changes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_full_name) DO UPDATE SET
			required_approvals = excluded.required_approvals,
			require_ci_pass = excluded.require_ci_pass,
			block_on_requested_changes = excluded.block_on_requested_changes
	`

	_, err := r.db.exec(ctx, query,
		settings.RepoFullName, settings.RequiredApprovals,
		boolToInt(settings.RequireCIPass), boolToInt(settings.BlockOnRequestedChanges),
	)
	if err != nil {
		return fmt.Errorf("set settings for %s: %w", settings.RepoFullName, err)
	}

	return nil
}
