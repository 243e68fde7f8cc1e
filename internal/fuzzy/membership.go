// Package fuzzy implements a Mamdani-style fuzzy inference engine:
// membership functions, linguistic variables, rules built from antecedent
// expressions, and a system that fuzzifies crisp inputs, fires rules,
// aggregates the clipped consequents and defuzzifies to one crisp value.
//
// A System is mutable while it is being configured and frozen by Build.
// A built System holds no per-call state, so Compute may be called from
// several goroutines at once.
package fuzzy

import (
	"fmt"
	"math"
	"strings"
)

// Kind names a membership function shape in configuration.
type Kind string

const (
	KindTriangular  Kind = "trimf"
	KindTrapezoidal Kind = "trapmf"
	KindGaussian    Kind = "gaussmf"
)

// MembershipFunction maps a point of a universe to a degree in [0,1].
// The set of implementations is closed: Triangular, Trapezoidal, Gaussian.
type MembershipFunction interface {
	Kind() Kind
	Degree(x float64) float64
	Params() []float64
	sealed()
}

// Triangular is 0 outside [A,C], 1 at B, linear in between.
type Triangular struct {
	A, B, C float64
}

// Trapezoidal is 0 outside [A,D], 1 on [B,C], linear on the shoulders.
type Trapezoidal struct {
	A, B, C, D float64
}

// Gaussian is exp(-(x-Mean)^2 / (2*Sigma^2)).
type Gaussian struct {
	Mean, Sigma float64
}

func NewTriangular(a, b, c float64) (Triangular, error) {
	if err := checkPoints(KindTriangular, a, b, c); err != nil {
		return Triangular{}, err
	}
	return Triangular{A: a, B: b, C: c}, nil
}

func NewTrapezoidal(a, b, c, d float64) (Trapezoidal, error) {
	if err := checkPoints(KindTrapezoidal, a, b, c, d); err != nil {
		return Trapezoidal{}, err
	}
	return Trapezoidal{A: a, B: b, C: c, D: d}, nil
}

func NewGaussian(mean, sigma float64) (Gaussian, error) {
	if !finite(mean) || !finite(sigma) {
		return Gaussian{}, invalidParam("", "", "gaussmf parameters must be finite")
	}
	if sigma <= 0 {
		return Gaussian{}, invalidParam("", "", "gaussmf sigma must be > 0, got %g", sigma)
	}
	return Gaussian{Mean: mean, Sigma: sigma}, nil
}

// NewMembership builds a membership function from its configuration form,
// e.g. ("trimf", [0, 50, 100]). Unknown kinds are rejected here rather than
// at evaluation time.
func NewMembership(kind string, params []float64) (MembershipFunction, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	switch k {
	case KindTriangular:
		if len(params) != 3 {
			return nil, invalidParam("", "", "trimf needs 3 parameters, got %d", len(params))
		}
		return NewTriangular(params[0], params[1], params[2])
	case KindTrapezoidal:
		if len(params) != 4 {
			return nil, invalidParam("", "", "trapmf needs 4 parameters, got %d", len(params))
		}
		return NewTrapezoidal(params[0], params[1], params[2], params[3])
	case KindGaussian:
		if len(params) != 2 {
			return nil, invalidParam("", "", "gaussmf needs 2 parameters [mean, sigma], got %d", len(params))
		}
		return NewGaussian(params[0], params[1])
	default:
		return nil, &Error{Kind: ErrUnknownKind, Detail: fmt.Sprintf("%q", kind)}
	}
}

func (Triangular) Kind() Kind  { return KindTriangular }
func (Trapezoidal) Kind() Kind { return KindTrapezoidal }
func (Gaussian) Kind() Kind    { return KindGaussian }

func (t Triangular) Params() []float64  { return []float64{t.A, t.B, t.C} }
func (t Trapezoidal) Params() []float64 { return []float64{t.A, t.B, t.C, t.D} }
func (g Gaussian) Params() []float64    { return []float64{g.Mean, g.Sigma} }

func (Triangular) sealed()  {}
func (Trapezoidal) sealed() {}
func (Gaussian) sealed()    {}

func (t Triangular) Degree(x float64) float64 {
	switch {
	case x < t.A || x > t.C:
		return 0
	case x == t.B:
		return 1
	case x < t.B:
		return clamp01((x - t.A) / (t.B - t.A))
	default:
		return clamp01((t.C - x) / (t.C - t.B))
	}
}

func (t Trapezoidal) Degree(x float64) float64 {
	switch {
	case x < t.A || x > t.D:
		return 0
	case x >= t.B && x <= t.C:
		return 1
	case x < t.B:
		return clamp01((x - t.A) / (t.B - t.A))
	default:
		return clamp01((t.D - x) / (t.D - t.C))
	}
}

func (g Gaussian) Degree(x float64) float64 {
	d := x - g.Mean
	return clamp01(math.Exp(-(d * d) / (2 * g.Sigma * g.Sigma)))
}

// Degree returns the degree of x in mf.
func Degree(mf MembershipFunction, x float64) float64 {
	return mf.Degree(x)
}

// Degrees is the vectorized form of Degree.
func Degrees(mf MembershipFunction, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = mf.Degree(x)
	}
	return out
}

func checkPoints(kind Kind, pts ...float64) error {
	for i, p := range pts {
		if !finite(p) {
			return invalidParam("", "", "%s parameters must be finite", kind)
		}
		if i > 0 && p < pts[i-1] {
			return invalidParam("", "", "%s parameters must be non-decreasing, got %v", kind, pts)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
