package events

import "time"

type SystemEvent struct {
	SystemID string    `json:"system_id"`
	Name     string    `json:"name,omitempty"`
	At       time.Time `json:"at"`
}

// ComputedEvent reports a fuzzy inference. SystemID is empty for ad-hoc
// requests; exactly one of OutputValue and ErrorCode is set.
type ComputedEvent struct {
	SystemID    string             `json:"system_id,omitempty"`
	Inputs      map[string]float64 `json:"inputs"`
	OutputValue *float64           `json:"output_value,omitempty"`
	OutputName  string             `json:"output_name,omitempty"`
	Method      string             `json:"method,omitempty"`
	ErrorCode   string             `json:"error_code,omitempty"`
	DurationMs  float64            `json:"duration_ms"`
	At          time.Time          `json:"at"`
}

type KNNCalculatedEvent struct {
	K           int       `json:"k"`
	Metric      string    `json:"metric"`
	Samples     int       `json:"n_samples"`
	Predictions int       `json:"total_predictions"`
	Accuracy    float64   `json:"accuracy"`
	At          time.Time `json:"at"`
}

type KNNOptimalKEvent struct {
	OptimalK int       `json:"optimal_k"`
	Accuracy float64   `json:"optimal_accuracy"`
	KMin     int       `json:"k_min"`
	KMax     int       `json:"k_max"`
	At       time.Time `json:"at"`
}
