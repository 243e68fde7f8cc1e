package fuzzy

import (
	"math"
	"strings"
)

// DefaultStep is the universe discretization used when none is given.
const DefaultStep = 1.0

// Variable is a linguistic variable: a named, closed numeric range
// partitioned into labeled fuzzy sets.
type Variable struct {
	name   string
	min    float64
	max    float64
	step   float64
	labels []string
	sets   map[string]MembershipFunction
}

// NewVariable creates a variable over [min, max] discretized with step.
// A step of zero selects DefaultStep.
func NewVariable(name string, min, max, step float64) (*Variable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidParam("", "", "variable name is required")
	}
	if !finite(min) || !finite(max) {
		return nil, invalidParam(name, "", "range bounds must be finite")
	}
	if min >= max {
		return nil, invalidParam(name, "", "range min %g must be below max %g", min, max)
	}
	if step == 0 {
		step = DefaultStep
	}
	if !finite(step) || step <= 0 {
		return nil, invalidParam(name, "", "step must be > 0, got %g", step)
	}
	return &Variable{
		name: name,
		min:  min,
		max:  max,
		step: step,
		sets: make(map[string]MembershipFunction),
	}, nil
}

func (v *Variable) Name() string              { return v.name }
func (v *Variable) Range() (min, max float64) { return v.min, v.max }
func (v *Variable) Step() float64             { return v.step }
func (v *Variable) Labels() []string          { return append([]string(nil), v.labels...) }

func (v *Variable) Has(label string) bool {
	_, ok := v.sets[label]
	return ok
}

func (v *Variable) Membership(label string) (MembershipFunction, bool) {
	mf, ok := v.sets[label]
	return mf, ok
}

// Define attaches mf to label. Redefining a label replaces the previous
// function and keeps the label's original position.
func (v *Variable) Define(label string, mf MembershipFunction) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return invalidParam(v.name, "", "label is required")
	}
	if mf == nil {
		return invalidParam(v.name, label, "membership function is required")
	}
	if _, ok := v.sets[label]; !ok {
		v.labels = append(v.labels, label)
	}
	v.sets[label] = mf
	return nil
}

// DegreeOf evaluates label's membership function directly at x.
func (v *Variable) DegreeOf(label string, x float64) (float64, error) {
	mf, ok := v.sets[label]
	if !ok {
		return 0, &Error{Kind: ErrUnknownLabel, Variable: v.name, Label: label}
	}
	return mf.Degree(x), nil
}

// Clip bounds x to the variable's range.
func (v *Variable) Clip(x float64) float64 {
	return math.Min(math.Max(x, v.min), v.max)
}

// Size is the number of points in the discretized universe. Counts that
// do not fit in an int saturate at math.MaxInt.
func (v *Variable) Size() int {
	n := math.Floor((v.max-v.min)/v.step+1e-9) + 1
	if math.IsNaN(n) || n >= math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

// Universe returns min, min+step, ... up to and including max.
func (v *Variable) Universe() []float64 {
	n := v.Size()
	pts := make([]float64, n)
	for i := range pts {
		pts[i] = v.min + float64(i)*v.step
	}
	return pts
}
