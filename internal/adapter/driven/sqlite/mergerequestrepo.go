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
var _ driven.MergeRequestStore = (*MergeRequestRepo)(nil)

// MergeRequestRepo is the SQLite implementation of the MergeRequestStore port interface.
type MergeRequestRepo struct {
	db *DB
}

// NewMergeRequestRepo creates a new MergeRequestRepo backed by the given DB.
func NewMergeRequestRepo(db *DB) *MergeRequestRepo {
	return &MergeRequestRepo{db: db}
}

// selectMergeRequests joins the owning repository (project ID) and its
// settings, falling back to the defaults when no settings row exists.
const selectMergeRequests = `
	SELECT mr.id, repo.id, mr.repo_full_name, mr.number, mr.title, mr.author, mr.state,
	       mr.is_draft, mr.url, mr.branch, mr.base_branch, mr.head_sha,
	       mr.mergeable_status, mr.ci_status, mr.opened_at, mr.updated_at,
	       COALESCE(s.required_approvals, ?),
	       COALESCE(s.require_ci_pass, ?),
	       COALESCE(s.block_on_requested_changes, ?)
	FROM merge_requests mr
	JOIN repositories repo ON repo.full_name = mr.repo_full_name
	LEFT JOIN repo_settings s ON s.repo_full_name = mr.repo_full_name
`

// defaultSettingArgs binds the COALESCE fallbacks of selectMergeRequests.
func defaultSettingArgs(args ...any) []any {
	return append([]any{
		model.DefaultRequiredApprovals,
		boolToInt(model.DefaultRequireCIPass),
		boolToInt(model.DefaultBlockOnRequestedChanges),
	}, args...)
}

// Upsert inserts or updates a merge request keyed by repository and number and
// returns its ID. The ID is stable across updates, so reviews and check runs
// stay attached.
func (r *MergeRequestRepo) Upsert(ctx context.Context, mr model.MergeRequest) (int64, error) {
	const query = `
		INSERT INTO merge_requests (
			repo_full_name, number, title, author, state, is_draft, url, branch,
			base_branch, head_sha, mergeable_status, ci_status, opened_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_full_name, number) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			state = excluded.state,
			is_draft = excluded.is_draft,
			url = excluded.url,
			branch = excluded.branch,
			base_branch = excluded.base_branch,
			head_sha = excluded.head_sha,
			mergeable_status = excluded.mergeable_status,
			ci_status = excluded.ci_status,
			opened_at = excluded.opened_at,
			updated_at = excluded.updated_at
		RETURNING id
	`

	mergeable := mr.MergeableStatus
	if mergeable == "" {
		mergeable = model.MergeableUnknown
	}
	ci := mr.CIStatus
	if ci == "" {
		ci = model.CIStatusUnknown
	}

	var id int64
	err := r.db.writeQueryRow(ctx, query,
		mr.RepoFullName, mr.Number, mr.Title, mr.Author, string(mr.State), boolToInt(mr.IsDraft),
		mr.URL, mr.Branch, mr.BaseBranch, mr.HeadSHA, string(mergeable), string(ci),
		mr.OpenedAt.UTC(), mr.UpdatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert merge request %s#%d: %w", mr.RepoFullName, mr.Number, err)
	}

	return id, nil
}

// GetByNumber retrieves a single merge request by repository and number.
func (r *MergeRequestRepo) GetByNumber(ctx context.Context, repoFullName string, number int) (*model.MergeRequest, error) {
	const query = selectMergeRequests + `WHERE mr.repo_full_name = ? AND mr.number = ?`

	mr, err := scanMergeRequest(r.db.queryRow(ctx, query, defaultSettingArgs(repoFullName, number)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get merge request %s#%d: %w", repoFullName, number, driven.ErrMergeRequestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get merge request %s#%d: %w", repoFullName, number, err)
	}

	return mr, nil
}

// ListByRepository returns all merge requests for the given repository, ordered by number.
func (r *MergeRequestRepo) ListByRepository(ctx context.Context, repoFullName string) ([]model.MergeRequest, error) {
	const query = selectMergeRequests + `WHERE mr.repo_full_name = ? ORDER BY mr.number`

	rows, err := r.db.query(ctx, query, defaultSettingArgs(repoFullName)...)
	if err != nil {
		return nil, fmt.Errorf("query merge requests: %w", err)
	}
	defer rows.Close()

	var mrs []model.MergeRequest
	for rows.Next() {
		mr, err := scanMergeRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan merge request: %w", err)
		}
		mrs = append(mrs, *mr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate merge requests: %w", err)
	}

	return mrs, nil
}

// Delete removes a merge request by repository and number. Its reviews and
// check runs are removed by foreign key cascade.
func (r *MergeRequestRepo) Delete(ctx context.Context, repoFullName string, number int) error {
	const query = `DELETE FROM merge_requests WHERE repo_full_name = ? AND number = ?`

	result, err := r.db.exec(ctx, query, repoFullName, number)
	if err != nil {
		return fmt.Errorf("delete merge request %s#%d: %w", repoFullName, number, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete merge request %s#%d: %w", repoFullName, number, driven.ErrMergeRequestNotFound)
	}

	return nil
}

func scanMergeRequest(s scanner) (*model.MergeRequest, error) {
	var mr model.MergeRequest
	var state, mergeable, ci string
	var isDraft, requireCI, blockOnChanges int
	var openedAt, updatedAt string

	err := s.Scan(
		&mr.ID, &mr.ProjectID, &mr.RepoFullName, &mr.Number, &mr.Title, &mr.Author, &state,
		&isDraft, &mr.URL, &mr.Branch, &mr.BaseBranch, &mr.HeadSHA,
		&mergeable, &ci, &openedAt, &updatedAt,
		&mr.Settings.RequiredApprovals, &requireCI, &blockOnChanges,
	)
	if err != nil {
		return nil, err
	}

	mr.State = model.MRState(state)
	mr.IsDraft = isDraft != 0
	mr.MergeableStatus = model.MergeableStatus(mergeable)
	mr.CIStatus = model.CIStatus(ci)
	mr.Settings.RepoFullName = mr.RepoFullName
	mr.Settings.RequireCIPass = requireCI != 0
	mr.Settings.BlockOnRequestedChanges = blockOnChanges != 0

	mr.OpenedAt, err = parseTime(openedAt)
	if err != nil {
		return nil, fmt.Errorf("parse opened_at: %w", err)
	}

	mr.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &mr, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
