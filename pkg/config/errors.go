package config

import "fmt"

// ValidationError reports one problem found in a loaded Config, with
// enough context to point a user at the offending field.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found by Validate, rather than
// failing on the first one, so a user can fix a config file in one pass.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	s := fmt.Sprintf("%d configuration error(s):\n", len(e))
	for _, ve := range e {
		s += "  - " + ve.Error() + "\n"
	}
	return s
}
