package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReviewStore = (*ReviewRepo)(nil)

// ReviewRepo is the SQLite implementation of the ReviewStore port interface.
type ReviewRepo struct {
	db *DB
}

// NewReviewRepo creates a new ReviewRepo backed by the given DB.
func NewReviewRepo(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// ReplaceReviewsForMR atomically replaces the review history of a merge
// request. Reviews are keyed by their GitHub ID.
func (r *ReviewRepo) ReplaceReviewsForMR(ctx context.Context, mrID int64, reviews []model.Review) error {
	const deleteQuery = `DELETE FROM reviews WHERE mr_id = ?`
	const insertQuery = `
		INSERT INTO reviews (id, mr_id, reviewer_login, state, commit_id, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mr_id = excluded.mr_id,
			reviewer_login = excluded.reviewer_login,
			state = excluded.state,
			commit_id = excluded.commit_id,
			submitted_at = excluded.submitted_at
	`

	return r.db.inTx(ctx, func(t txn) error {
		if _, err := t.exec(ctx, deleteQuery, mrID); err != nil {
			return fmt.Errorf("delete reviews for merge request %d: %w", mrID, err)
		}

		for _, review := range reviews {
			if _, err := t.exec(ctx, insertQuery,
				review.ID, mrID, review.ReviewerLogin, string(review.State),
				review.CommitID, review.SubmittedAt.UTC(),
			); err != nil {
				return fmt.Errorf("insert review %d for merge request %d: %w", review.ID, mrID, err)
			}
		}

		return nil
	})
}

// GetReviewsByMR returns all reviews for the given merge request, ordered by submitted_at.
func (r *ReviewRepo) GetReviewsByMR(ctx context.Context, mrID int64) ([]model.Review, error) {
	const query = `
		SELECT id, mr_id, reviewer_login, state, commit_id, submitted_at
		FROM reviews
		WHERE mr_id = ?
		ORDER BY submitted_at, id
	`

	rows, err := r.db.query(ctx, query, mrID)
	if err != nil {
		return nil, fmt.Errorf("query reviews for merge request %d: %w", mrID, err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}

func scanReview(s scanner) (*model.Review, error) {
	var review model.Review
	var state string
	var submittedAt string

	err := s.Scan(
		&review.ID, &review.MRID, &review.ReviewerLogin, &state,
		&review.CommitID, &submittedAt,
	)
	if err != nil {
		return nil, err
	}

	review.State = model.ReviewState(state)

	review.SubmittedAt, err = parseTime(submittedAt)
	if err != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", err)
	}

	return &review, nil
}
