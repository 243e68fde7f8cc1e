package fuzzy

import (
	"fmt"
	"math"
)

// DefaultMaxUniversePoints bounds the output discretization so one Compute
// stays O(rules × points) with a known ceiling.
const DefaultMaxUniversePoints = 100000

// Activation reports how strongly one rule fired during Compute.
type Activation struct {
	Rule       string  `json:"rule"`
	Consequent string  `json:"consequent"`
	Strength   float64 `json:"strength"`
}

// Result is the outcome of one Compute call.
type Result struct {
	OutputValue float64                       `json:"output_value"`
	OutputName  string                        `json:"output_name"`
	Method      Method                        `json:"method"`
	Inputs      map[string]float64            `json:"inputs"`
	Activations []Activation                  `json:"activations"`
	Memberships map[string]map[string]float64 `json:"memberships"`
}

// System owns the input variables, the single output variable and the
// ordered rule set. Configure it with AddInput, AddOutput and AddRule, then
// call Build once; after that it only answers Compute.
type System struct {
	inputs      map[string]*Variable
	inputOrder  []string
	output      *Variable
	rules       []*Rule
	method      Method
	maxUniverse int
	defaultStep float64

	built       bool
	universe    []float64
	consequents map[string][]float64
}

// Option configures a System.
type Option func(*System)

// WithMethod sets the defuzzification method. Invalid methods are reported
// by Build.
func WithMethod(m Method) Option {
	return func(s *System) { s.method = m }
}

// WithMaxUniversePoints caps the number of output universe points.
func WithMaxUniversePoints(n int) Option {
	return func(s *System) {
		if n > 0 {
			s.maxUniverse = n
		}
	}
}

// WithDefaultStep sets the discretization step used by NewDecisionSystem
// for variables that do not declare one.
func WithDefaultStep(step float64) Option {
	return func(s *System) {
		if step > 0 {
			s.defaultStep = step
		}
	}
}

func NewSystem(opts ...Option) *System {
	s := &System{
		inputs:      make(map[string]*Variable),
		method:      Centroid,
		maxUniverse: DefaultMaxUniversePoints,
		defaultStep: DefaultStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddInput registers an antecedent variable. Adding a variable under an
// existing name replaces it.
func (s *System) AddInput(v *Variable) error {
	if v == nil {
		return invalidParam("", "", "input variable is nil")
	}
	if s.built {
		return &Error{Kind: ErrSystemFrozen, Variable: v.Name()}
	}
	if _, ok := s.inputs[v.Name()]; !ok {
		s.inputOrder = append(s.inputOrder, v.Name())
	}
	s.inputs[v.Name()] = v
	return nil
}

// AddOutput sets the consequent variable, replacing any previous one.
func (s *System) AddOutput(v *Variable) error {
	if v == nil {
		return invalidParam("", "", "output variable is nil")
	}
	if s.built {
		return &Error{Kind: ErrSystemFrozen, Variable: v.Name()}
	}
	if v.Size() > s.maxUniverse {
		return invalidParam(v.Name(), "", "universe has %d points, limit is %d", v.Size(), s.maxUniverse)
	}
	s.output = v
	return nil
}

// SetMethod changes the defuzzification method before Build.
func (s *System) SetMethod(m Method) error {
	if s.built {
		return &Error{Kind: ErrSystemFrozen}
	}
	s.method = m
	return nil
}

// AddRule appends a rule built by NewRule. The rule is checked again
// against the current variables.
func (s *System) AddRule(r *Rule) error {
	if s.built {
		return &Error{Kind: ErrSystemFrozen}
	}
	if r == nil || r.antecedent == nil {
		return &Error{Kind: ErrEmptyAntecedent}
	}
	if _, err := s.NewRule(r.antecedent.Propositions(), r.operator, r.consequent); err != nil {
		return err
	}
	s.rules = append(s.rules, r)
	return nil
}

// DefineRule is NewRule followed by AddRule.
func (s *System) DefineRule(props []Proposition, op Operator, consequent string) (*Rule, error) {
	r, err := s.NewRule(props, op, consequent)
	if err != nil {
		return nil, err
	}
	if err := s.AddRule(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *System) Input(name string) (*Variable, bool) {
	v, ok := s.inputs[name]
	return v, ok
}

func (s *System) Inputs() []*Variable {
	out := make([]*Variable, 0, len(s.inputOrder))
	for _, name := range s.inputOrder {
		out = append(out, s.inputs[name])
	}
	return out
}

func (s *System) Output() *Variable { return s.output }
func (s *System) Rules() []*Rule     { return append([]*Rule(nil), s.rules...) }
func (s *System) Method() Method     { return s.method }
func (s *System) Built() bool        { return s.built }

// Build freezes the system and samples every consequent over the output
// universe once.
func (s *System) Build() error {
	if s.built {
		return &Error{Kind: ErrSystemFrozen, Detail: "already built"}
	}
	if s.output == nil {
		return &Error{Kind: ErrNoOutput}
	}
	if len(s.rules) == 0 {
		return &Error{Kind: ErrEmptyRuleSet}
	}
	method, err := ParseMethod(string(s.method))
	if err != nil {
		return err
	}
	s.method = method
	// Variables may have been replaced since the rules were added.
	for _, r := range s.rules {
		if _, err := s.NewRule(r.antecedent.Propositions(), r.operator, r.consequent); err != nil {
			return err
		}
	}

	s.universe = s.output.Universe()
	s.consequents = make(map[string][]float64)
	for _, r := range s.rules {
		if _, ok := s.consequents[r.consequent]; ok {
			continue
		}
		mf, _ := s.output.Membership(r.consequent)
		s.consequents[r.consequent] = Degrees(mf, s.universe)
	}
	s.built = true
	return nil
}

// Compute runs fuzzification, implication, aggregation and
// defuzzification for one set of crisp inputs. Every variable referenced by
// a rule must be present in inputs; the check happens before any rule fires.
func (s *System) Compute(inputs map[string]float64) (*Result, error) {
	if !s.built {
		return nil, &Error{Kind: ErrNotBuilt}
	}
	for _, r := range s.rules {
		for _, p := range r.antecedent.Propositions() {
			x, ok := inputs[p.Variable]
			if !ok {
				return nil, &Error{Kind: ErrMissingInput, Variable: p.Variable}
			}
			if !finite(x) {
				return nil, invalidParam(p.Variable, "", "input must be finite, got %v", x)
			}
		}
	}

	activations := make([]Activation, len(s.rules))
	profile := make([]float64, len(s.universe))
	for i, r := range s.rules {
		strength, err := s.FireStrength(r, inputs)
		if err != nil {
			return nil, err
		}
		activations[i] = Activation{Rule: r.String(), Consequent: r.consequent, Strength: strength}
		if strength == 0 {
			continue
		}
		for j, mu := range s.consequents[r.consequent] {
			profile[j] = math.Max(profile[j], math.Min(strength, mu))
		}
	}

	value, err := Defuzzify(s.method, s.universe, profile)
	if err != nil {
		return nil, err
	}

	echo := make(map[string]float64, len(inputs))
	for k, v := range inputs {
		echo[k] = v
	}
	return &Result{
		OutputValue: value,
		OutputName:  s.output.Name(),
		Method:      s.method,
		Inputs:      echo,
		Activations: activations,
		Memberships: s.fuzzify(inputs),
	}, nil
}

// fuzzify reports every label's degree for each supplied input variable.
func (s *System) fuzzify(inputs map[string]float64) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, name := range s.inputOrder {
		x, ok := inputs[name]
		if !ok {
			continue
		}
		v := s.inputs[name]
		degrees := make(map[string]float64, len(v.labels))
		for _, label := range v.labels {
			degrees[label] = v.sets[label].Degree(v.Clip(x))
		}
		out[name] = degrees
	}
	return out
}

func (s *System) String() string {
	out := "<none>"
	if s.output != nil {
		out = s.output.Name()
	}
	return fmt.Sprintf("fuzzy.System{inputs: %v, output: %s, rules: %d, method: %s}", s.inputOrder, out, len(s.rules), s.method)
}
