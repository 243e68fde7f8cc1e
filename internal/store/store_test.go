package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/rcount/internal/fuzzy"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "data", "rcount.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDefinition() fuzzy.DecisionConfig {
	return fuzzy.DecisionConfig{
		Criteria: []fuzzy.VariableConfig{{
			Name:  "kualitas",
			Range: []float64{0, 100},
			Memberships: map[string]fuzzy.MembershipSpec{
				"rendah": {Kind: "trimf", Params: []float64{0, 0, 50}},
				"tinggi": {Kind: "trimf", Params: []float64{50, 100, 100}},
			},
		}},
		Rules: []fuzzy.RuleConfig{{
			Antecedents: [][]string{{"kualitas", "tinggi"}},
			Consequent:  []string{"hasil", "tinggi"},
		}},
		Method: "centroid",
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, 25, listLimit(25))
	assert.Equal(t, maxListLimit, listLimit(maxListLimit+1))
}

func TestSQLiteSystemRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	sys := &DecisionSystem{Name: "Supplier ranking", Description: "quality only", Definition: sampleDefinition()}
	require.NoError(t, s.CreateSystem(ctx, sys))
	assert.NotEqual(t, uuid.Nil, sys.ID)
	assert.False(t, sys.CreatedAt.IsZero())

	got, err := s.GetSystem(ctx, sys.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sys.Name, got.Name)
	assert.Equal(t, sys.Description, got.Description)
	assert.Equal(t, sys.Definition, got.Definition)
	assert.True(t, sys.CreatedAt.Equal(got.CreatedAt))

	missing, err := s.GetSystem(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteListSystems(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, name := range []string{"Supplier A", "supplier B", "Candidate"} {
		require.NoError(t, s.CreateSystem(ctx, &DecisionSystem{Name: name, Definition: sampleDefinition()}))
	}

	all, err := s.ListSystems(ctx, SystemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Candidate", all[0].Name, "newest first")

	filtered, err := s.ListSystems(ctx, SystemFilter{Name: "supplier"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	page, err := s.ListSystems(ctx, SystemFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "supplier B", page[0].Name)
}

func TestSQLiteEvaluationsAndStats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	sys := &DecisionSystem{Name: "Supplier", Definition: sampleDefinition()}
	require.NoError(t, s.CreateSystem(ctx, sys))

	ok := &Evaluation{
		SystemID:    sys.ID,
		Inputs:      map[string]float64{"kualitas": 90},
		OutputValue: floatPtr(76.5),
		OutputName:  "hasil",
		DurationMs:  2,
	}
	require.NoError(t, s.CreateEvaluation(ctx, ok))
	failed := &Evaluation{
		SystemID:   sys.ID,
		Inputs:     map[string]float64{},
		ErrorCode:  "missing_input",
		Error:      "missing input: kualitas",
		DurationMs: 4,
	}
	require.NoError(t, s.CreateEvaluation(ctx, failed))

	evals, err := s.ListEvaluations(ctx, sys.ID, 0)
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.Equal(t, failed.ID, evals[0].ID)
	assert.Nil(t, evals[0].OutputValue)
	assert.Equal(t, "missing_input", evals[0].ErrorCode)
	require.NotNil(t, evals[1].OutputValue)
	assert.Equal(t, 76.5, *evals[1].OutputValue)
	assert.Equal(t, map[string]float64{"kualitas": 90}, evals[1].Inputs)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{TotalSystems: 1, TotalEvaluations: 2, FailedEvaluations: 1, AvgDurationMs: 3}, stats)
}

func TestSQLiteDeleteSystemCascades(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	sys := &DecisionSystem{Name: "Temp", Definition: sampleDefinition()}
	require.NoError(t, s.CreateSystem(ctx, sys))
	require.NoError(t, s.CreateEvaluation(ctx, &Evaluation{SystemID: sys.ID, Inputs: map[string]float64{"kualitas": 1}}))

	require.NoError(t, s.DeleteSystem(ctx, sys.ID))
	assert.ErrorIs(t, s.DeleteSystem(ctx, sys.ID), ErrNotFound)

	evals, err := s.ListEvaluations(ctx, sys.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, evals)
}
