package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps decision systems in a local database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates it.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS decision_systems (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			definition  TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS decision_evaluations (
			id           TEXT PRIMARY KEY,
			system_id    TEXT NOT NULL REFERENCES decision_systems(id) ON DELETE CASCADE,
			inputs       TEXT NOT NULL,
			output_value REAL,
			output_name  TEXT NOT NULL DEFAULT '',
			error_code   TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			duration_ms  REAL NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_decision_evaluations_system
			ON decision_evaluations (system_id, created_at DESC);`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// timeLayout has fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (s *SQLiteStore) CreateSystem(ctx context.Context, sys *DecisionSystem) error {
	definitionJSON, err := json.Marshal(sys.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	now := time.Now().UTC()
	id := uuid.New()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_systems (id, name, description, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), sys.Name, sys.Description, string(definitionJSON), formatTime(now), formatTime(now))
	if err != nil {
		return err
	}
	sys.ID = id
	sys.CreatedAt = now
	sys.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetSystem(ctx context.Context, id uuid.UUID) (*DecisionSystem, error) {
	sys, err := scanSQLiteSystem(s.db.QueryRowContext(ctx, `
		SELECT `+systemColumns+`
		FROM decision_systems WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sys, err
}

func (s *SQLiteStore) ListSystems(ctx context.Context, filter SystemFilter) ([]*DecisionSystem, error) {
	query := `SELECT ` + systemColumns + ` FROM decision_systems WHERE 1=1`
	args := []any{}

	if filter.Name != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+filter.Name+"%")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, listLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var systems []*DecisionSystem
	for rows.Next() {
		sys, err := scanSQLiteSystem(rows)
		if err != nil {
			return nil, err
		}
		systems = append(systems, sys)
	}
	return systems, rows.Err()
}

func (s *SQLiteStore) DeleteSystem(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decision_systems WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateEvaluation(ctx context.Context, e *Evaluation) error {
	inputsJSON, err := json.Marshal(e.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	now := time.Now().UTC()
	id := uuid.New()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_evaluations (id, system_id, inputs, output_value, output_name, error_code, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), e.SystemID.String(), string(inputsJSON), e.OutputValue,
		e.OutputName, e.ErrorCode, e.Error, e.DurationMs, formatTime(now))
	if err != nil {
		return err
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, systemID uuid.UUID, limit int) ([]*Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, system_id, inputs, output_value, output_name, error_code, error, duration_ms, created_at
		FROM decision_evaluations WHERE system_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, systemID.String(), listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []*Evaluation
	for rows.Next() {
		e := &Evaluation{}
		var id, sysID, inputsJSON, createdAt string
		var output sql.NullFloat64
		if err := rows.Scan(&id, &sysID, &inputsJSON, &output,
			&e.OutputName, &e.ErrorCode, &e.Error, &e.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if e.SystemID, err = uuid.Parse(sysID); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if output.Valid {
			v := output.Float64
			e.OutputValue = &v
		}
		_ = json.Unmarshal([]byte(inputsJSON), &e.Inputs)
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM decision_systems),
			COUNT(*),
			COALESCE(SUM(CASE WHEN error_code <> '' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM decision_evaluations`,
	).Scan(&stats.TotalSystems, &stats.TotalEvaluations, &stats.FailedEvaluations, &stats.AvgDurationMs)
	return stats, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSystem(row rowScanner) (*DecisionSystem, error) {
	sys := &DecisionSystem{}
	var id, definitionJSON, createdAt, updatedAt string
	if err := row.Scan(&id, &sys.Name, &sys.Description, &definitionJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if sys.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if sys.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sys.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(definitionJSON), &sys.Definition); err != nil {
		return nil, fmt.Errorf("decode definition of %s: %w", sys.ID, err)
	}
	return sys, nil
}
