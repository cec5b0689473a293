package store

import (
	"time"

	"github.com/google/uuid"
)

// EvaluationRow is one persisted evaluator submission
type EvaluationRow struct {
	Token           string    `json:"token" db:"token"`
	DOI             string    `json:"doi" db:"doi"`
	EvaluatorName   string    `json:"evaluator_name" db:"evaluator_name"`
	EvaluatorRole   string    `json:"evaluator_role" db:"evaluator_role"`
	ExpertiseWeight float64   `json:"expertise_weight" db:"expertise_weight"`
	Payload         string    `json:"-" db:"payload"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// AggregateSnapshot is one persisted corpus aggregation result
type AggregateSnapshot struct {
	ID              string    `json:"id" db:"id"`
	PaperSetVersion string    `json:"paper_set_version" db:"paper_set_version"`
	Component       string    `json:"component" db:"component"`
	ViewType        string    `json:"view_type" db:"view_type"`
	Report          string    `json:"report" db:"report"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// NewAggregateSnapshot creates a snapshot row with a generated ID
func NewAggregateSnapshot(paperSetVersion, component, viewType, report string) *AggregateSnapshot {
	return &AggregateSnapshot{
		ID:              uuid.New().String(),
		PaperSetVersion: paperSetVersion,
		Component:       component,
		ViewType:        viewType,
		Report:          report,
		CreatedAt:       time.Now(),
	}
}
