package driven

import (
	"context"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
)

// ReviewStore defines the driven port for persisting merge request reviews.
type ReviewStore interface {
	// ReplaceReviewsForMR atomically replaces the review history of a merge request.
	ReplaceReviewsForMR(ctx context.Context, mrID int64, reviews []model.Review) error
	// GetReviewsByMR returns reviews ordered by submission time.
	GetReviewsByMR(ctx context.Context, mrID int64) ([]model.Review, error)
}
