package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveEvaluation persists one evaluator submission. Submitting the same token
// twice replaces the previous payload.
func (r *Repository) SaveEvaluation(row *EvaluationRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO evaluations (token, doi, evaluator_name, evaluator_role, expertise_weight, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			doi = excluded.doi,
			evaluator_name = excluded.evaluator_name,
			evaluator_role = excluded.evaluator_role,
			expertise_weight = excluded.expertise_weight,
			payload = excluded.payload
	`, row.Token, row.DOI, row.EvaluatorName, row.EvaluatorRole, row.ExpertiseWeight, row.Payload, row.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	return nil
}

// GetEvaluation loads one submission by token; nil when absent.
func (r *Repository) GetEvaluation(token string) (*EvaluationRow, error) {
	var row EvaluationRow
	err := r.db.QueryRow(`
		SELECT token, doi, evaluator_name, evaluator_role, expertise_weight, payload, created_at
		FROM evaluations
		WHERE token = ?
	`, token).Scan(
		&row.Token, &row.DOI, &row.EvaluatorName, &row.EvaluatorRole,
		&row.ExpertiseWeight, &row.Payload, &row.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation: %w", err)
	}

	return &row, nil
}

// ListByDOI returns all submissions for one paper, oldest first.
func (r *Repository) ListByDOI(doi string) ([]*EvaluationRow, error) {
	rows, err := r.db.Query(`
		SELECT token, doi, evaluator_name, evaluator_role, expertise_weight, payload, created_at
		FROM evaluations
		WHERE doi = ?
		ORDER BY created_at ASC
	`, doi)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

// ListAll returns every stored submission, oldest first.
func (r *Repository) ListAll() ([]*EvaluationRow, error) {
	rows, err := r.db.Query(`
		SELECT token, doi, evaluator_name, evaluator_role, expertise_weight, payload, created_at
		FROM evaluations
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

// ListDOIs returns the distinct papers with their evaluation counts.
func (r *Repository) ListDOIs() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT doi, COUNT(*) FROM evaluations
		WHERE doi IS NOT NULL AND doi != ''
		GROUP BY doi
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query DOIs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var doi string
		var n int
		if err := rows.Scan(&doi, &n); err != nil {
			return nil, fmt.Errorf("failed to scan DOI row: %w", err)
		}
		counts[doi] = n
	}

	return counts, rows.Err()
}

// SaveSnapshot persists a corpus aggregation result. Snapshots are append
// only; a new aggregation writes a new row rather than updating an old one.
func (r *Repository) SaveSnapshot(snapshot *AggregateSnapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO aggregate_snapshots (id, paper_set_version, component, view_type, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snapshot.ID, snapshot.PaperSetVersion, snapshot.Component, snapshot.ViewType, snapshot.Report, snapshot.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// LatestSnapshot returns the most recent snapshot for a component and view;
// nil when none exists.
func (r *Repository) LatestSnapshot(component, viewType string) (*AggregateSnapshot, error) {
	var snapshot AggregateSnapshot
	err := r.db.QueryRow(`
		SELECT id, paper_set_version, component, view_type, report, created_at
		FROM aggregate_snapshots
		WHERE component = ? AND view_type = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, component, viewType).Scan(
		&snapshot.ID, &snapshot.PaperSetVersion, &snapshot.Component,
		&snapshot.ViewType, &snapshot.Report, &snapshot.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	return &snapshot, nil
}

// PruneSnapshots deletes snapshots older than the retention window and
// returns how many were removed.
func (r *Repository) PruneSnapshots(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := r.db.Exec(`DELETE FROM aggregate_snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	return result.RowsAffected()
}

func scanEvaluations(rows *sql.Rows) ([]*EvaluationRow, error) {
	var out []*EvaluationRow
	for rows.Next() {
		var row EvaluationRow
		if err := rows.Scan(
			&row.Token, &row.DOI, &row.EvaluatorName, &row.EvaluatorRole,
			&row.ExpertiseWeight, &row.Payload, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation row: %w", err)
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}
