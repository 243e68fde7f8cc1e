package fuzzy

import (
	"math"
	"strings"
)

// Method selects how an aggregate profile is reduced to one crisp value.
type Method string

const (
	Centroid          Method = "centroid"
	Bisector          Method = "bisector"
	MeanOfMaximum     Method = "mom"
	SmallestOfMaximum Method = "som"
	LargestOfMaximum  Method = "lom"
)

// maxTolerance decides which universe points attain the profile maximum.
const maxTolerance = 1e-12

// ParseMethod accepts the method names above in any case. An empty string
// selects Centroid.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return Centroid, nil
	case Centroid, Bisector, MeanOfMaximum, SmallestOfMaximum, LargestOfMaximum:
		return m, nil
	default:
		return "", invalidParam("", "", "unknown defuzzification method %q", s)
	}
}

// Defuzzify reduces profile, sampled at universe, to one crisp value. An
// all-zero profile has no defined value and fails with ErrDegenerateOutput.
func Defuzzify(method Method, universe, profile []float64) (float64, error) {
	if len(universe) == 0 || len(universe) != len(profile) {
		return 0, invalidParam("", "", "profile has %d points for a universe of %d", len(profile), len(universe))
	}
	switch method {
	case Centroid:
		return centroid(universe, profile)
	case Bisector:
		return bisector(universe, profile)
	case MeanOfMaximum, SmallestOfMaximum, LargestOfMaximum:
		return ofMaximum(method, universe, profile)
	default:
		return 0, invalidParam("", "", "unknown defuzzification method %q", method)
	}
}

func centroid(universe, profile []float64) (float64, error) {
	var num, den float64
	for i, mu := range profile {
		num += universe[i] * mu
		den += mu
	}
	if den == 0 {
		return 0, &Error{Kind: ErrDegenerateOutput, Detail: "no rule fired above zero"}
	}
	return num / den, nil
}

// bisector finds the point splitting the trapezoid-rule area under the
// profile into equal halves, interpolating inside the crossing segment.
func bisector(universe, profile []float64) (float64, error) {
	if len(profile) == 1 {
		if profile[0] == 0 {
			return 0, &Error{Kind: ErrDegenerateOutput, Detail: "no rule fired above zero"}
		}
		return universe[0], nil
	}

	segments := make([]float64, len(profile)-1)
	var total float64
	for i := range segments {
		segments[i] = (universe[i+1] - universe[i]) * (profile[i] + profile[i+1]) / 2
		total += segments[i]
	}
	if total == 0 {
		return 0, &Error{Kind: ErrDegenerateOutput, Detail: "no rule fired above zero"}
	}

	half := total / 2
	var acc float64
	for i, area := range segments {
		if acc+area >= half {
			if area == 0 {
				return universe[i], nil
			}
			frac := (half - acc) / area
			return universe[i] + frac*(universe[i+1]-universe[i]), nil
		}
		acc += area
	}
	return universe[len(universe)-1], nil
}

func ofMaximum(method Method, universe, profile []float64) (float64, error) {
	peak := 0.0
	for _, mu := range profile {
		peak = math.Max(peak, mu)
	}
	if peak == 0 {
		return 0, &Error{Kind: ErrDegenerateOutput, Detail: "no rule fired above zero"}
	}

	var first, last, sum float64
	n := 0
	for i, mu := range profile {
		if peak-mu > maxTolerance {
			continue
		}
		if n == 0 {
			first = universe[i]
		}
		last = universe[i]
		sum += universe[i]
		n++
	}

	switch method {
	case SmallestOfMaximum:
		return first, nil
	case LargestOfMaximum:
		return last, nil
	default:
		return sum / float64(n), nil
	}
}
