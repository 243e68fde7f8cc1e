package fuzzy

import (
	"fmt"
	"math"
	"strings"
)

// Operator combines the propositions of one rule.
type Operator string

const (
	And Operator = "AND" // minimum of degrees
	Or  Operator = "OR"  // maximum of degrees
)

// ParseOperator accepts "AND"/"OR" in any case. An empty string is AND.
func ParseOperator(s string) (Operator, error) {
	switch Operator(strings.ToUpper(strings.TrimSpace(s))) {
	case "", And:
		return And, nil
	case Or:
		return Or, nil
	default:
		return "", invalidParam("", "", "operator must be AND or OR, got %q", s)
	}
}

func (o Operator) combine(a, b float64) float64 {
	if o == Or {
		return math.Max(a, b)
	}
	return math.Min(a, b)
}

// Proposition is the atomic condition "Variable is Label".
type Proposition struct {
	Variable string `json:"variable" yaml:"variable"`
	Label    string `json:"label" yaml:"label"`
}

// Is builds a proposition.
func Is(variable, label string) Proposition {
	return Proposition{Variable: variable, Label: label}
}

func (p Proposition) String() string { return p.Variable + " is " + p.Label }

// DegreeFunc resolves the degree of one proposition.
type DegreeFunc func(Proposition) (float64, error)

// Expression is an antecedent: a binary tree of propositions joined by
// AND/OR connectives.
type Expression interface {
	Evaluate(degree DegreeFunc) (float64, error)
	Propositions() []Proposition
	String() string
}

func (p Proposition) Evaluate(degree DegreeFunc) (float64, error) { return degree(p) }
func (p Proposition) Propositions() []Proposition                  { return []Proposition{p} }

type connective struct {
	op          Operator
	left, right Expression
}

func (c connective) Evaluate(degree DegreeFunc) (float64, error) {
	l, err := c.left.Evaluate(degree)
	if err != nil {
		return 0, err
	}
	r, err := c.right.Evaluate(degree)
	if err != nil {
		return 0, err
	}
	return c.op.combine(l, r), nil
}

func (c connective) Propositions() []Proposition {
	return append(c.left.Propositions(), c.right.Propositions()...)
}

func (c connective) String() string {
	return fmt.Sprintf("(%s %s %s)", c.left, c.op, c.right)
}

// AndOf joins props left to right with AND. One proposition is returned as
// is; none yields nil.
func AndOf(props ...Proposition) Expression { return fold(And, props) }

// OrOf joins props left to right with OR.
func OrOf(props ...Proposition) Expression { return fold(Or, props) }

func fold(op Operator, props []Proposition) Expression {
	if len(props) == 0 {
		return nil
	}
	var expr Expression = props[0]
	for _, p := range props[1:] {
		expr = connective{op: op, left: expr, right: p}
	}
	return expr
}

// Rule is "IF antecedent THEN output is consequent".
type Rule struct {
	antecedent Expression
	operator   Operator
	consequent string
}

func (r *Rule) Antecedent() Expression { return r.antecedent }
func (r *Rule) Operator() Operator     { return r.operator }
func (r *Rule) Consequent() string     { return r.consequent }

func (r *Rule) String() string {
	return fmt.Sprintf("IF %s THEN %s", r.antecedent, r.consequent)
}

// NewRule validates props against the system's input variables and the
// consequent against its output variable. The output must be added first.
func (s *System) NewRule(props []Proposition, op Operator, consequent string) (*Rule, error) {
	if len(props) == 0 {
		return nil, &Error{Kind: ErrEmptyAntecedent}
	}
	if op != And && op != Or {
		return nil, invalidParam("", "", "operator must be AND or OR, got %q", op)
	}
	for _, p := range props {
		v, ok := s.inputs[p.Variable]
		if !ok {
			return nil, &Error{Kind: ErrUnknownVariable, Variable: p.Variable}
		}
		if !v.Has(p.Label) {
			return nil, &Error{Kind: ErrUnknownLabel, Variable: p.Variable, Label: p.Label}
		}
	}
	if s.output == nil {
		return nil, &Error{Kind: ErrNoOutput}
	}
	if !s.output.Has(consequent) {
		return nil, &Error{Kind: ErrUnknownConsequent, Variable: s.output.Name(), Label: consequent}
	}

	var expr Expression
	if op == Or {
		expr = OrOf(props...)
	} else {
		expr = AndOf(props...)
	}
	return &Rule{antecedent: expr, operator: op, consequent: consequent}, nil
}

// FireStrength computes the degree to which rule's antecedent holds for the
// crisp inputs. Inputs are clipped to their variable's range.
func (s *System) FireStrength(rule *Rule, inputs map[string]float64) (float64, error) {
	return rule.antecedent.Evaluate(func(p Proposition) (float64, error) {
		v, ok := s.inputs[p.Variable]
		if !ok {
			return 0, &Error{Kind: ErrUnknownVariable, Variable: p.Variable}
		}
		x, ok := inputs[p.Variable]
		if !ok {
			return 0, &Error{Kind: ErrMissingInput, Variable: p.Variable}
		}
		return v.DegreeOf(p.Label, v.Clip(x))
	})
}
