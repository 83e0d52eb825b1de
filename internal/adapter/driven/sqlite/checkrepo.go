package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CheckStore = (*CheckRepo)(nil)

// CheckRepo is the SQLite implementation of the CheckStore port interface.
type CheckRepo struct {
	db *DB
}

// NewCheckRepo creates a new CheckRepo backed by the given DB.
func NewCheckRepo(db *DB) *CheckRepo {
	return &CheckRepo{db: db}
}

// ReplaceCheckRunsForMR atomically replaces all check runs for a merge request.
// It deletes existing runs and inserts the provided runs in a single transaction.
func (r *CheckRepo) ReplaceCheckRunsForMR(ctx context.Context, mrID int64, runs []model.CheckRun) error {
	const deleteQuery = `DELETE FROM check_runs WHERE mr_id = ?`
	const insertQuery = `
		INSERT INTO check_runs (id, mr_id, name, status, conclusion, is_required, details_url, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.db.inTx(ctx, func(t txn) error {
		if _, err := t.exec(ctx, deleteQuery, mrID); err != nil {
			return fmt.Errorf("delete check runs for merge request %d: %w", mrID, err)
		}

		for _, run := range runs {
			var startedAt, completedAt any
			if !run.StartedAt.IsZero() {
				startedAt = run.StartedAt.UTC()
			}
			if !run.CompletedAt.IsZero() {
				completedAt = run.CompletedAt.UTC()
			}

			if _, err := t.exec(ctx, insertQuery,
				run.ID, mrID, run.Name, run.Status, run.Conclusion,
				boolToInt(run.IsRequired), run.DetailsURL, startedAt, completedAt,
			); err != nil {
				return fmt.Errorf("insert check run %d for merge request %d: %w", run.ID, mrID, err)
			}
		}

		return nil
	})
}

// GetCheckRunsByMR returns all check runs for the given merge request, ordered by name.
func (r *CheckRepo) GetCheckRunsByMR(ctx context.Context, mrID int64) ([]model.CheckRun, error) {
	const query = `
		SELECT id, mr_id, name, status, conclusion, is_required, details_url, started_at, completed_at
		FROM check_runs
		WHERE mr_id = ?
		ORDER BY name
	`

	rows, err := r.db.query(ctx, query, mrID)
	if err != nil {
		return nil, fmt.Errorf("query check runs for merge request %d: %w", mrID, err)
	}
	defer rows.Close()

	var runs []model.CheckRun
	for rows.Next() {
		run, err := scanCheckRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check runs: %w", err)
	}

	return runs, nil
}

func scanCheckRun(s scanner) (*model.CheckRun, error) {
	var run model.CheckRun
	var isRequired int
	var startedAt, completedAt sql.NullString

	err := s.Scan(
		&run.ID, &run.MRID, &run.Name, &run.Status, &run.Conclusion,
		&isRequired, &run.DetailsURL, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.IsRequired = isRequired != 0

	if startedAt.Valid {
		run.StartedAt, err = parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
	}

	if completedAt.Valid {
		run.CompletedAt, err = parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
	}

	return &run, nil
}
