// Package validate checks inputs before they reach the pricing core or
// storage.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/price-research/internal/model"
)

// InvalidObservationError lists the field-level problems found in one
// observation.
type InvalidObservationError struct {
	Index    int
	ID       string
	Problems []string
}

func (e *InvalidObservationError) Error() string {
	ref := e.ID
	if ref == "" {
		ref = fmt.Sprintf("#%d", e.Index+1)
	}
	return fmt.Sprintf("validate: invalid observation %s: %s", ref, strings.Join(e.Problems, "; "))
}

// Observation checks a single observation: positive price, enumerated
// source type, and a collection date that is set and not after today.
func Observation(o model.Observation, today time.Time) error {
	if problems := observationProblems(o, today); len(problems) > 0 {
		return &InvalidObservationError{ID: o.ID, Problems: problems}
	}
	return nil
}

func observationProblems(o model.Observation, today time.Time) []string {
	var problems []string

	if !o.Price.IsPositive() {
		problems = append(problems, "price must be greater than zero")
	}
	if !o.SourceType.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown source type %q", o.SourceType))
	}
	if strings.TrimSpace(o.SourceLabel) == "" {
		problems = append(problems, "source label is required")
	}
	switch {
	case o.CollectedDate.IsZero():
		problems = append(problems, "collected date is required")
	case o.CollectedDate.After(model.DateOf(today)):
		problems = append(problems, fmt.Sprintf("collected date %s is in the future", o.CollectedDate))
	}
	return problems
}

// Observations validates each observation and rejects duplicate IDs. It
// returns the first invalid observation found.
func Observations(observations []model.Observation, today time.Time) error {
	seen := make(map[string]bool, len(observations))
	for i, o := range observations {
		if problems := observationProblems(o, today); len(problems) > 0 {
			return &InvalidObservationError{Index: i, ID: o.ID, Problems: problems}
		}
		if o.ID == "" {
			continue
		}
		if seen[o.ID] {
			return &InvalidObservationError{Index: i, ID: o.ID, Problems: []string{"duplicate id"}}
		}
		seen[o.ID] = true
	}
	return nil
}
