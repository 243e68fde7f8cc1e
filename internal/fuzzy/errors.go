package fuzzy

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrUnknownKind       = errors.New("unknown membership function kind")
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrUnknownLabel      = errors.New("unknown label")
	ErrUnknownConsequent = errors.New("unknown consequent")
	ErrEmptyAntecedent   = errors.New("empty antecedent")
	ErrEmptyRuleSet      = errors.New("no rules defined")
	ErrNoOutput          = errors.New("no output variable defined")
	ErrMissingInput      = errors.New("missing input")
	ErrNotBuilt          = errors.New("system not built")
	ErrSystemFrozen      = errors.New("system frozen")
	ErrDegenerateOutput  = errors.New("degenerate output")
)

// Error carries the offending variable and label alongside one of the
// sentinel errors above. errors.Is matches against Kind.
type Error struct {
	Kind     error
	Variable string
	Label    string
	Detail   string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.Variable != "" && e.Label != "":
		msg += fmt.Sprintf(": %s=%s", e.Variable, e.Label)
	case e.Variable != "":
		msg += ": " + e.Variable
	case e.Label != "":
		msg += ": " + e.Label
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

// Code returns a stable snake_case identifier for the error kind, used by
// transports when reporting failures.
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return ""
}

var errorCodes = []struct {
	kind error
	code string
}{
	{ErrInvalidParameter, "invalid_parameter"},
	{ErrUnknownKind, "unknown_kind"},
	{ErrUnknownVariable, "unknown_variable"},
	{ErrUnknownLabel, "unknown_label"},
	{ErrUnknownConsequent, "unknown_consequent"},
	{ErrEmptyAntecedent, "empty_antecedent"},
	{ErrEmptyRuleSet, "empty_rule_set"},
	{ErrNoOutput, "no_output"},
	{ErrMissingInput, "missing_input"},
	{ErrNotBuilt, "not_built"},
	{ErrSystemFrozen, "system_frozen"},
	{ErrDegenerateOutput, "degenerate_output"},
}

func invalidParam(variable, label, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidParameter, Variable: variable, Label: label, Detail: fmt.Sprintf(format, args...)}
}
