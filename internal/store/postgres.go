package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS decision_systems (
			id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			definition  JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS decision_evaluations (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			system_id    UUID NOT NULL REFERENCES decision_systems(id) ON DELETE CASCADE,
			inputs       JSONB NOT NULL,
			output_value DOUBLE PRECISION,
			output_name  TEXT,
			error_code   TEXT,
			error        TEXT,
			duration_ms  DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_decision_evaluations_system
			ON decision_evaluations (system_id, created_at DESC);`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const systemColumns = `id, name, description, definition, created_at, updated_at`

func (s *PostgresStore) CreateSystem(ctx context.Context, sys *DecisionSystem) error {
	definitionJSON, err := json.Marshal(sys.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO decision_systems (name, description, definition)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		sys.Name, sys.Description, definitionJSON,
	).Scan(&sys.ID, &sys.CreatedAt, &sys.UpdatedAt)
}

func (s *PostgresStore) GetSystem(ctx context.Context, id uuid.UUID) (*DecisionSystem, error) {
	sys, err := scanSystem(s.pool.QueryRow(ctx, `
		SELECT `+systemColumns+`
		FROM decision_systems WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sys, err
}

func (s *PostgresStore) ListSystems(ctx context.Context, filter SystemFilter) ([]*DecisionSystem, error) {
	query := `SELECT ` + systemColumns + ` FROM decision_systems WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Name != "" {
		n++
		query += fmt.Sprintf(" AND name ILIKE $%d", n)
		args = append(args, "%"+filter.Name+"%")
	}

	query += " ORDER BY created_at DESC"

	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var systems []*DecisionSystem
	for rows.Next() {
		sys, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, sys)
	}
	return systems, rows.Err()
}

func (s *PostgresStore) DeleteSystem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM decision_systems WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateEvaluation(ctx context.Context, e *Evaluation) error {
	inputsJSON, err := json.Marshal(e.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO decision_evaluations (system_id, inputs, output_value, output_name, error_code, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		e.SystemID, inputsJSON, e.OutputValue, e.OutputName, e.ErrorCode, e.Error, e.DurationMs,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, systemID uuid.UUID, limit int) ([]*Evaluation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, system_id, inputs, output_value, output_name, error_code, error, duration_ms, created_at
		FROM decision_evaluations WHERE system_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, systemID, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []*Evaluation
	for rows.Next() {
		e := &Evaluation{}
		var inputsJSON []byte
		var outputName, errorCode, evalError sql.NullString
		if err := rows.Scan(&e.ID, &e.SystemID, &inputsJSON, &e.OutputValue,
			&outputName, &errorCode, &evalError, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OutputName = outputName.String
		e.ErrorCode = errorCode.String
		e.Error = evalError.String
		if inputsJSON != nil {
			_ = json.Unmarshal(inputsJSON, &e.Inputs)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM decision_systems),
			COUNT(*),
			COALESCE(SUM(CASE WHEN error_code IS NOT NULL AND error_code <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM decision_evaluations`,
	).Scan(&stats.TotalSystems, &stats.TotalEvaluations, &stats.FailedEvaluations, &stats.AvgDurationMs)
	return stats, err
}

func scanSystem(row pgx.Row) (*DecisionSystem, error) {
	sys := &DecisionSystem{}
	var definitionJSON []byte
	if err := row.Scan(&sys.ID, &sys.Name, &sys.Description, &definitionJSON, &sys.CreatedAt, &sys.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(definitionJSON, &sys.Definition); err != nil {
		return nil, fmt.Errorf("decode definition of %s: %w", sys.ID, err)
	}
	return sys, nil
}
