package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/events"
	"github.com/MikeSquared-Agency/rcount/internal/store"
)

// Mocks
type mockStore struct {
	mu          sync.Mutex
	systems     map[uuid.UUID]*store.DecisionSystem
	evaluations []*store.Evaluation
}

func newMockStore() *mockStore {
	return &mockStore{systems: make(map[uuid.UUID]*store.DecisionSystem)}
}

func (m *mockStore) CreateSystem(_ context.Context, sys *store.DecisionSystem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sys.ID = uuid.New()
	sys.CreatedAt = time.Now()
	sys.UpdatedAt = sys.CreatedAt
	m.systems[sys.ID] = sys
	return nil
}

func (m *mockStore) GetSystem(_ context.Context, id uuid.UUID) (*store.DecisionSystem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systems[id], nil
}

func (m *mockStore) ListSystems(_ context.Context, f store.SystemFilter) ([]*store.DecisionSystem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.DecisionSystem
	for _, s := range m.systems {
		if f.Name == "" || strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) DeleteSystem(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.systems[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.systems, id)
	return nil
}

func (m *mockStore) CreateEvaluation(_ context.Context, e *store.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.evaluations = append(m.evaluations, e)
	return nil
}

func (m *mockStore) ListEvaluations(_ context.Context, systemID uuid.UUID, _ int) ([]*store.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Evaluation
	for _, e := range m.evaluations {
		if e.SystemID == systemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) GetStats(_ context.Context) (*store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &store.Stats{TotalSystems: len(m.systems), TotalEvaluations: len(m.evaluations)}, nil
}

func (m *mockStore) Close() error { return nil }

type recordingClient struct {
	mu       sync.Mutex
	subjects []string
}

func (c *recordingClient) Publish(subject string, _ interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

func (c *recordingClient) Close()                                          {}

func (c *recordingClient) published() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subjects...)
}

const qualityPriceSystem = `{
	"criteria": [
		{"name": "kualitas", "range": [0, 100], "memberships": {
			"rendah": ["trimf", [0, 0, 50]],
			"tinggi": ["trimf", [50, 100, 100]]
		}},
		{"name": "harga", "range": [0, 100], "memberships": {
			"rendah": ["trimf", [0, 0, 50]],
			"tinggi": ["trimf", [50, 100, 100]]
		}}
	],
	"rules": [
		{"antecedents": [["kualitas", "tinggi"], ["harga", "rendah"]], "consequent": ["hasil", "tinggi"]}
	]
}`

type testEnv struct {
	router http.Handler
	store  *mockStore
	events *recordingClient
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	return setupTestRouterWithStore(t, newMockStore())
}

func setupTestRouterWithStore(t *testing.T, ms *mockStore) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.Server.AdminToken = "test-token"
	cfg.Server.RateLimitPerMinute = 0
	cfg.KNN.CVFolds = 3

	rc := &recordingClient{}
	env := &testEnv{store: ms, events: rc}
	var s store.Store
	if ms != nil {
		s = ms
	}
	env.router = NewRouter(s, events.NewPublisher(rc, logger), cfg, logger)
	return env
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	assert.False(t, body.Success)
	return body
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do("GET", "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestMetricsRouter(t *testing.T) {
	router := NewMetricsRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFuzzyCalculate(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do("POST", "/api/fuzzy/calculate", `{"input_values":[80,20],"weights":[3,1]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Value       float64   `json:"value"`
		Category    string    `json:"category"`
		WeightsUsed []float64 `json:"weights_used"`
	}
	decodeData(t, w, &res)
	assert.InDelta(t, 65.0, res.Value, 1e-9)
	assert.Equal(t, "sedang", res.Category)
	assert.Equal(t, []float64{0.75, 0.25}, res.WeightsUsed)
}

func TestFuzzyCalculateRejectsBadInput(t *testing.T) {
	env := setupTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/fuzzy/calculate", `{"input_values":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/fuzzy/calculate", `{"input_values":[10],"weights":[-1]}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/fuzzy/calculate", `not json`).Code)
}

func TestFuzzyInference(t *testing.T) {
	env := setupTestRouter(t)

	body := strings.TrimSuffix(strings.TrimSpace(qualityPriceSystem), "}") + `, "inputs": {"kualitas": 90, "harga": 10}}`
	w := env.do("POST", "/api/fuzzy/inference", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		OutputValue float64 `json:"output_value"`
		OutputName  string  `json:"output_name"`
		Method      string  `json:"method"`
	}
	decodeData(t, w, &res)
	assert.Greater(t, res.OutputValue, 60.0)
	assert.Equal(t, "hasil", res.OutputName)
	assert.Equal(t, "centroid", res.Method)
	assert.Equal(t, []string{events.SubjectAdhocComputed}, env.events.published())
}

func TestFuzzyInferenceErrors(t *testing.T) {
	env := setupTestRouter(t)
	withInputs := func(def, inputs string) string {
		return strings.TrimSuffix(strings.TrimSpace(def), "}") + `, "inputs": ` + inputs + `}`
	}

	t.Run("missing input", func(t *testing.T) {
		w := env.do("POST", "/api/fuzzy/inference", withInputs(qualityPriceSystem, `{"harga": 10}`))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeErr(t, w)
		assert.Equal(t, "missing_input", body.Code)
		assert.Equal(t, "kualitas", body.Variable)
	})

	t.Run("unknown kind", func(t *testing.T) {
		def := strings.Replace(qualityPriceSystem, `"trimf", [50, 100, 100]`, `"sigmf", [50, 100]`, 1)
		w := env.do("POST", "/api/fuzzy/inference", withInputs(def, `{"kualitas": 1, "harga": 1}`))
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeErr(t, w)
		assert.Equal(t, "unknown_kind", body.Code)
		assert.Equal(t, "kualitas", body.Variable)
		assert.Equal(t, "tinggi", body.Label)
	})

	t.Run("no inputs", func(t *testing.T) {
		w := env.do("POST", "/api/fuzzy/inference", qualityPriceSystem)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestKNNCalculate(t *testing.T) {
	env := setupTestRouter(t)

	body := `{
		"train_data": [[0,0],[0,1],[1,0],[10,10],[10,11],[11,10]],
		"train_labels": [1, 1, 1, 2, 2, 2],
		"test_data": [[0.5,0.5],[10.5,10.5]],
		"k": 3
	}`
	w := env.do("POST", "/api/knn/calculate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		TrainingMetrics struct {
			Accuracy float64 `json:"accuracy"`
			K        int     `json:"k"`
			Metric   string  `json:"metric"`
		} `json:"training_metrics"`
		Predictions []struct {
			Prediction    json.RawMessage    `json:"prediction"`
			Confidence    float64            `json:"confidence"`
			Probabilities map[string]float64 `json:"probabilities"`
		} `json:"predictions"`
		TotalPredictions int `json:"total_predictions"`
	}
	decodeData(t, w, &res)
	assert.Equal(t, 1.0, res.TrainingMetrics.Accuracy)
	assert.Equal(t, 3, res.TrainingMetrics.K)
	assert.Equal(t, "euclidean", res.TrainingMetrics.Metric)
	require.Equal(t, 2, res.TotalPredictions)
	assert.Equal(t, "1", string(res.Predictions[0].Prediction))
	assert.Equal(t, "2", string(res.Predictions[1].Prediction))
	assert.Equal(t, map[string]float64{"1": 1, "2": 0}, res.Predictions[0].Probabilities)
	assert.Equal(t, []string{events.SubjectKNNCalculated}, env.events.published())
}

func TestKNNCalculateStringLabels(t *testing.T) {
	env := setupTestRouter(t)

	body := `{
		"train_data": [[0,0],[0,1],[1,0],[10,10],[10,11],[11,10]],
		"train_labels": ["layak","layak","layak","tidak","tidak","tidak"],
		"test_data": [[11,11]],
		"metric": "manhattan",
		"weights": "distance"
	}`
	w := env.do("POST", "/api/knn/calculate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"prediction":"tidak"`)
}

func TestKNNCalculateErrors(t *testing.T) {
	env := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"label mismatch", `{"train_data":[[0],[1]],"train_labels":["a"],"test_data":[[0]]}`},
		{"unknown metric", `{"train_data":[[0],[1]],"train_labels":["a","b"],"test_data":[[0]],"k":1,"metric":"cosine"}`},
		{"k too large", `{"train_data":[[0],[1]],"train_labels":["a","b"],"test_data":[[0]],"k":5}`},
		{"zero k", `{"train_data":[[0],[1]],"train_labels":["a","b"],"test_data":[[0]],"k":0}`},
		{"ragged", `{"train_data":[[0,1],[1]],"train_labels":["a","b"],"test_data":[[0]],"k":1}`},
		{"bad label", `{"train_data":[[0],[1]],"train_labels":[true,false],"test_data":[[0]],"k":1}`},
		{"missing train data", `{"train_labels":["a"],"test_data":[[0]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do("POST", "/api/knn/calculate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestKNNFindOptimalK(t *testing.T) {
	env := setupTestRouter(t)

	body := `{
		"train_data": [[0,0],[0,1],[1,0],[10,10],[10,11],[11,10]],
		"train_labels": ["a","a","a","b","b","b"],
		"k_range": [1, 3]
	}`
	w := env.do("POST", "/api/knn/find-optimal-k", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		OptimalK  int     `json:"optimal_k"`
		Accuracy  float64 `json:"optimal_accuracy"`
		AllScores []struct {
			K int `json:"k"`
		} `json:"all_scores"`
	}
	decodeData(t, w, &res)
	assert.Equal(t, 1, res.OptimalK)
	assert.Equal(t, 1.0, res.Accuracy)
	assert.Len(t, res.AllScores, 3)
	assert.Equal(t, []string{events.SubjectKNNOptimalK}, env.events.published())

	w = env.do("POST", "/api/knn/find-optimal-k", strings.Replace(body, "[1, 3]", "[4, 2]", 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("POST", "/api/knn/find-optimal-k", strings.Replace(body, "[1, 3]", "[1, 2147483647]", 1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, w, &res)
	assert.Equal(t, 1, res.OptimalK)
	assert.Len(t, res.AllScores, 6)
}

func TestSavedSystemLifecycle(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do("POST", "/api/fuzzy/systems", `{"name":"Supplier","description":"quality and price","definition":`+qualityPriceSystem+`}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created store.DecisionSystem
	decodeData(t, w, &created)
	require.NotEqual(t, uuid.Nil, created.ID)
	path := "/api/fuzzy/systems/" + created.ID.String()

	w = env.do("GET", "/api/fuzzy/systems?name=supp", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.DecisionSystem
	decodeData(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Supplier", list[0].Name)

	w = env.do("GET", path, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", path+"/compute", `{"inputs":{"kualitas":90,"harga":10}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do("POST", path+"/compute", `{"inputs":{"kualitas":90}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do("GET", path+"/evaluations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var evals []store.Evaluation
	decodeData(t, w, &evals)
	require.Len(t, evals, 2)
	require.NotNil(t, evals[0].OutputValue)
	assert.Greater(t, *evals[0].OutputValue, 60.0)
	assert.Equal(t, "missing_input", evals[1].ErrorCode)
	assert.Nil(t, evals[1].OutputValue)

	assert.Equal(t, http.StatusUnauthorized, env.do("DELETE", path, "").Code)
	assert.Equal(t, http.StatusNoContent, env.do("DELETE", path, "", "Authorization", "Bearer test-token").Code)
	assert.Equal(t, http.StatusNotFound, env.do("DELETE", path, "", "Authorization", "Bearer test-token").Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", path, "").Code)

	id := created.ID.String()
	assert.Equal(t, []string{
		events.SubjectSystemCreated(id),
		events.SubjectSystemComputed(id),
		events.SubjectSystemComputed(id),
		events.SubjectSystemDeleted(id),
	}, env.events.published())
}

func TestCreateSystemValidatesDefinition(t *testing.T) {
	env := setupTestRouter(t)

	def := strings.Replace(qualityPriceSystem, `["hasil", "tinggi"]`, `["hasil", "luar biasa"]`, 1)
	w := env.do("POST", "/api/fuzzy/systems", `{"name":"Broken","definition":`+def+`}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_consequent", decodeErr(t, w).Code)

	w = env.do("POST", "/api/fuzzy/systems", `{"name":"  ","definition":`+qualityPriceSystem+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.store.systems)
}

func TestSystemRoutesRejectBadIDs(t *testing.T) {
	env := setupTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/fuzzy/systems/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", "/api/fuzzy/systems/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusNotFound, env.do("POST", "/api/fuzzy/systems/"+uuid.NewString()+"/compute", `{"inputs":{}}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/fuzzy/systems?limit=-1", "").Code)
}

func TestSystemRoutesWithoutStore(t *testing.T) {
	env := setupTestRouterWithStore(t, nil)

	assert.Equal(t, http.StatusServiceUnavailable, env.do("GET", "/api/fuzzy/systems", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do("POST", "/api/fuzzy/systems", `{}`).Code)
	assert.Equal(t, http.StatusOK, env.do("POST", "/api/fuzzy/calculate", `{"input_values":[50]}`).Code)
}

func TestStatsRequiresAdminToken(t *testing.T) {
	env := setupTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/stats", "").Code)

	w := env.do("GET", "/api/stats", "", "Authorization", "Bearer test-token")
	require.Equal(t, http.StatusOK, w.Code)
	var stats store.Stats
	decodeData(t, w, &stats)
	assert.Equal(t, 0, stats.TotalSystems)
}
