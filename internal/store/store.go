package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rcount/internal/fuzzy"
)

var ErrNotFound = errors.New("not found")

// DecisionSystem is a saved decision-system definition.
type DecisionSystem struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Definition  fuzzy.DecisionConfig `json:"definition"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type SystemFilter struct {
	// Name matches systems whose name contains it, case-insensitively.
	Name   string
	Limit  int
	Offset int
}

// Evaluation records one compute call against a saved system. Exactly one
// of OutputValue and ErrorCode is set.
type Evaluation struct {
	ID          uuid.UUID          `json:"id"`
	SystemID    uuid.UUID          `json:"system_id"`
	Inputs      map[string]float64 `json:"inputs"`
	OutputValue *float64           `json:"output_value,omitempty"`
	OutputName  string             `json:"output_name,omitempty"`
	ErrorCode   string             `json:"error_code,omitempty"`
	Error       string             `json:"error,omitempty"`
	DurationMs  float64            `json:"duration_ms"`
	CreatedAt   time.Time          `json:"created_at"`
}

type Stats struct {
	TotalSystems      int     `json:"total_systems"`
	TotalEvaluations  int     `json:"total_evaluations"`
	FailedEvaluations int     `json:"failed_evaluations"`
	AvgDurationMs     float64 `json:"avg_duration_ms"`
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func listLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

type Store interface {
	// Systems
	CreateSystem(ctx context.Context, sys *DecisionSystem) error
	GetSystem(ctx context.Context, id uuid.UUID) (*DecisionSystem, error)
	ListSystems(ctx context.Context, filter SystemFilter) ([]*DecisionSystem, error)
	DeleteSystem(ctx context.Context, id uuid.UUID) error

	// Evaluations
	CreateEvaluation(ctx context.Context, e *Evaluation) error
	ListEvaluations(ctx context.Context, systemID uuid.UUID, limit int) ([]*Evaluation, error)

	GetStats(ctx context.Context) (*Stats, error)

	Close() error
}
