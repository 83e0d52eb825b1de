package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/mergecheck/internal/domain/model"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FeatureGateStore = (*FeatureGateRepo)(nil)

// FeatureGateRepo is the SQLite implementation of the FeatureGateStore port interface.
type FeatureGateRepo struct {
	db *DB
}

// NewFeatureGateRepo creates a new FeatureGateRepo backed by the given DB.
func NewFeatureGateRepo(db *DB) *FeatureGateRepo {
	return &FeatureGateRepo{db: db}
}

// IsEnabled resolves name for repoFullName. A row scoped to the repository
// wins over the global row; a gate with neither is disabled.
func (r *FeatureGateRepo) IsEnabled(ctx context.Context, name string, repoFullName string) (bool, error) {
	const query = `
		SELECT enabled
		FROM feature_gates
		WHERE name = ? AND repo_full_name IN (?, '')
		ORDER BY repo_full_name = '' ASC
		LIMIT 1
	`

	var enabled int
	err := r.db.queryRow(ctx, query, name, repoFullName).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get feature gate %q for %q: %w", name, repoFullName, err)
	}

	return enabled != 0, nil
}

// Set stores the value of a gate for its scope, replacing any previous value.
func (r *FeatureGateRepo) Set(ctx context.Context, gate model.FeatureGate) error {
	const query = `
		INSERT INTO feature_gates (name, repo_full_name, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name, repo_full_name) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	updatedAt := gate.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.exec(ctx, query, gate.Name, gate.RepoFullName, boolToInt(gate.Enabled), updatedAt.UTC())
	if err != nil {
		return fmt.Errorf("set feature gate %q for %q: %w", gate.Name, gate.RepoFullName, err)
	}

	return nil
}

// ListAll returns every stored gate value ordered by name, global value first.
func (r *FeatureGateRepo) ListAll(ctx context.Context) ([]model.FeatureGate, error) {
	const query = `
		SELECT name, repo_full_name, enabled, updated_at
		FROM feature_gates
		ORDER BY name, repo_full_name
	`

	rows, err := r.db.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list feature gates: %w", err)
	}
	defer rows.Close()

	var gates []model.FeatureGate
	for rows.Next() {
		var gate model.FeatureGate
		var enabled int
		var updatedAt string

		if err := rows.Scan(&gate.Name, &gate.RepoFullName, &enabled, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan feature gate: %w", err)
		}

		gate.Enabled = enabled != 0
		gate.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}

		gates = append(gates, gate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature gates: %w", err)
	}

	return gates, nil
}
