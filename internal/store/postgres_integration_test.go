//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE decision_evaluations CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE decision_systems CASCADE")
		s.Close()
	})

	return s
}

func TestPostgresCreateAndGetSystem(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	sys := &DecisionSystem{Name: "Integration", Description: "round-trip", Definition: sampleDefinition()}
	if err := s.CreateSystem(ctx, sys); err != nil {
		t.Fatalf("CreateSystem failed: %v", err)
	}
	if sys.ID == uuid.Nil {
		t.Fatal("expected non-nil system ID after create")
	}

	got, err := s.GetSystem(ctx, sys.ID)
	if err != nil {
		t.Fatalf("GetSystem failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected system, got nil")
	}
	if got.Name != sys.Name {
		t.Errorf("expected name %q, got %q", sys.Name, got.Name)
	}
	if len(got.Definition.Rules) != 1 {
		t.Errorf("expected 1 rule, got %d", len(got.Definition.Rules))
	}

	missing, err := s.GetSystem(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetSystem(missing) failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing system")
	}
}

func TestPostgresListSystemsFilter(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"Supplier A", "supplier B", "Candidate"} {
		if err := s.CreateSystem(ctx, &DecisionSystem{Name: name, Definition: sampleDefinition()}); err != nil {
			t.Fatalf("CreateSystem failed: %v", err)
		}
	}

	systems, err := s.ListSystems(ctx, SystemFilter{Name: "SUPPLIER"})
	if err != nil {
		t.Fatalf("ListSystems failed: %v", err)
	}
	if len(systems) != 2 {
		t.Errorf("expected 2 systems, got %d", len(systems))
	}
}

func TestPostgresEvaluationsAndStats(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	sys := &DecisionSystem{Name: "Stats", Definition: sampleDefinition()}
	if err := s.CreateSystem(ctx, sys); err != nil {
		t.Fatalf("CreateSystem failed: %v", err)
	}
	evals := []*Evaluation{
		{SystemID: sys.ID, Inputs: map[string]float64{"kualitas": 90}, OutputValue: floatPtr(70), OutputName: "hasil", DurationMs: 1},
		{SystemID: sys.ID, Inputs: map[string]float64{}, ErrorCode: "missing_input", Error: "missing input", DurationMs: 3},
	}
	for _, e := range evals {
		if err := s.CreateEvaluation(ctx, e); err != nil {
			t.Fatalf("CreateEvaluation failed: %v", err)
		}
	}

	got, err := s.ListEvaluations(ctx, sys.ID, 10)
	if err != nil {
		t.Fatalf("ListEvaluations failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(got))
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalSystems != 1 || stats.TotalEvaluations != 2 || stats.FailedEvaluations != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AvgDurationMs != 2 {
		t.Errorf("expected avg duration 2, got %f", stats.AvgDurationMs)
	}

	if err := s.DeleteSystem(ctx, sys.ID); err != nil {
		t.Fatalf("DeleteSystem failed: %v", err)
	}
	if err := s.DeleteSystem(ctx, sys.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
