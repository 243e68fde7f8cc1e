package fuzzy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultOutputName is the consequent variable created when a decision
// configuration does not declare one.
const DefaultOutputName = "hasil"

// MembershipSpec is the configuration form of a membership function,
// serialized as a two element array: ["trimf", [0, 0, 50]].
type MembershipSpec struct {
	Kind   string
	Params []float64
}

func (m MembershipSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{m.Kind, m.Params})
}

func (m *MembershipSpec) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("membership must be [kind, params]: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("membership must be [kind, params], got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &m.Kind); err != nil {
		return fmt.Errorf("membership kind: %w", err)
	}
	if err := json.Unmarshal(raw[1], &m.Params); err != nil {
		return fmt.Errorf("membership params: %w", err)
	}
	return nil
}

func (m MembershipSpec) MarshalYAML() (any, error) {
	return []any{m.Kind, m.Params}, nil
}

func (m *MembershipSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: membership must be [kind, params]", node.Line)
	}
	if err := node.Content[0].Decode(&m.Kind); err != nil {
		return fmt.Errorf("line %d: membership kind: %w", node.Line, err)
	}
	if err := node.Content[1].Decode(&m.Params); err != nil {
		return fmt.Errorf("line %d: membership params: %w", node.Line, err)
	}
	return nil
}

// VariableConfig declares a linguistic variable: a criterion when used as
// input, or the output override.
type VariableConfig struct {
	Name        string                    `json:"name" yaml:"name"`
	Range       []float64                 `json:"range" yaml:"range"`
	Step        float64                   `json:"step,omitempty" yaml:"step,omitempty"`
	Memberships map[string]MembershipSpec `json:"memberships" yaml:"memberships"`
}

// RuleConfig declares one rule:
// {antecedents: [[variable, label], ...], consequent: [output, label], operator: AND|OR}.
type RuleConfig struct {
	Antecedents [][]string `json:"antecedents" yaml:"antecedents"`
	Consequent  []string   `json:"consequent" yaml:"consequent"`
	Operator    string     `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// DecisionConfig is the declarative description of a whole decision
// system.
type DecisionConfig struct {
	Criteria []VariableConfig `json:"criteria" yaml:"criteria"`
	Output   *VariableConfig  `json:"output,omitempty" yaml:"output,omitempty"`
	Rules    []RuleConfig     `json:"rules" yaml:"rules"`
	Method   string           `json:"method,omitempty" yaml:"method,omitempty"`
}

// DefaultOutput is the three label output used unless overridden.
func DefaultOutput() VariableConfig {
	return VariableConfig{
		Name:  DefaultOutputName,
		Range: []float64{0, 100},
		Memberships: map[string]MembershipSpec{
			"rendah": {Kind: string(KindTriangular), Params: []float64{0, 0, 50}},
			"sedang": {Kind: string(KindTriangular), Params: []float64{25, 50, 75}},
			"tinggi": {Kind: string(KindTriangular), Params: []float64{50, 100, 100}},
		},
	}
}

// NewVariableFromConfig builds a variable and defines its labels in sorted
// order.
func NewVariableFromConfig(c VariableConfig) (*Variable, error) {
	if len(c.Range) != 2 {
		return nil, invalidParam(c.Name, "", "range must be [min, max], got %d values", len(c.Range))
	}
	v, err := NewVariable(c.Name, c.Range[0], c.Range[1], c.Step)
	if err != nil {
		return nil, err
	}
	if len(c.Memberships) == 0 {
		return nil, invalidParam(c.Name, "", "at least one membership is required")
	}

	labels := make([]string, 0, len(c.Memberships))
	for label := range c.Memberships {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		spec := c.Memberships[label]
		mf, err := NewMembership(spec.Kind, spec.Params)
		if err != nil {
			return nil, withContext(err, v.Name(), label)
		}
		if err := v.Define(label, mf); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// NewDecisionSystem assembles and builds a System from cfg: criteria become
// inputs, the output is cfg.Output or DefaultOutput, rules are added in
// order.
func NewDecisionSystem(cfg DecisionConfig, opts ...Option) (*System, error) {
	sys := NewSystem(opts...)
	if cfg.Method != "" {
		m, err := ParseMethod(cfg.Method)
		if err != nil {
			return nil, err
		}
		if err := sys.SetMethod(m); err != nil {
			return nil, err
		}
	}

	for _, c := range cfg.Criteria {
		if c.Step == 0 {
			c.Step = sys.defaultStep
		}
		v, err := NewVariableFromConfig(c)
		if err != nil {
			return nil, err
		}
		if err := sys.AddInput(v); err != nil {
			return nil, err
		}
	}

	outCfg := DefaultOutput()
	if cfg.Output != nil {
		outCfg = *cfg.Output
	}
	if outCfg.Step == 0 {
		outCfg.Step = sys.defaultStep
	}
	out, err := NewVariableFromConfig(outCfg)
	if err != nil {
		return nil, err
	}
	if err := sys.AddOutput(out); err != nil {
		return nil, err
	}

	for i, rc := range cfg.Rules {
		props, op, consequent, err := parseRule(rc)
		if err != nil {
			return nil, withDetail(err, fmt.Sprintf("rule %d", i))
		}
		if _, err := sys.DefineRule(props, op, consequent); err != nil {
			return nil, withDetail(err, fmt.Sprintf("rule %d", i))
		}
	}

	if err := sys.Build(); err != nil {
		return nil, err
	}
	return sys, nil
}

// Evaluate builds a fresh system from cfg and computes it once.
func Evaluate(cfg DecisionConfig, inputs map[string]float64, opts ...Option) (*Result, error) {
	sys, err := NewDecisionSystem(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return sys.Compute(inputs)
}

// parseRule resolves the consequent label only; the output variable name in
// the consequent pair is informational.
func parseRule(rc RuleConfig) ([]Proposition, Operator, string, error) {
	op, err := ParseOperator(rc.Operator)
	if err != nil {
		return nil, "", "", err
	}
	props := make([]Proposition, 0, len(rc.Antecedents))
	for _, a := range rc.Antecedents {
		if len(a) != 2 {
			return nil, "", "", invalidParam("", "", "antecedent must be [variable, label], got %v", a)
		}
		props = append(props, Is(a[0], a[1]))
	}

	var consequent string
	switch len(rc.Consequent) {
	case 1:
		consequent = rc.Consequent[0]
	case 2:
		consequent = rc.Consequent[1]
	default:
		return nil, "", "", invalidParam("", "", "consequent must be [output, label], got %v", rc.Consequent)
	}
	return props, op, consequent, nil
}

func withContext(err error, variable, label string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	out := *fe
	if out.Variable == "" {
		out.Variable = variable
	}
	if out.Label == "" {
		out.Label = label
	}
	return &out
}

func withDetail(err error, detail string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	out := *fe
	if out.Detail == "" {
		out.Detail = detail
	} else {
		out.Detail = detail + ": " + out.Detail
	}
	return &out
}
