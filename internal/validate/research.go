package validate

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/price-research/internal/model"
)

var (
	// ErrInvalid marks input rejected by this package.
	ErrInvalid = eris.New("validate: invalid input")

	// ErrEvaluationRequired is returned when a research is completed without
	// a stored evaluation.
	ErrEvaluationRequired = eris.New("validate: research must be evaluated before completion")
)

// Is lets errors.Is match InvalidObservationError against ErrInvalid.
func (e *InvalidObservationError) Is(target error) bool {
	return target == ErrInvalid
}

var minAdjustment = decimal.NewFromInt(-100)

// Research checks a research before it is created.
func Research(r *model.Research) error {
	var errs []string

	if strings.TrimSpace(r.Description) == "" {
		errs = append(errs, "description is required")
	}
	if strings.TrimSpace(r.ResponsibleAgent) == "" {
		errs = append(errs, "responsible agent is required")
	}
	if !r.Status.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", r.Status))
	}
	if !r.ContractType.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown contract type %q", r.ContractType))
	}
	errs = append(errs, common(r.Method, r.AdjustmentPercent, r.CatalogCode)...)

	return joined(errs)
}

// ResearchUpdate checks the fields set in u.
func ResearchUpdate(u *model.ResearchUpdate) error {
	var errs []string

	if u.Description != nil && strings.TrimSpace(*u.Description) == "" {
		errs = append(errs, "description cannot be empty")
	}
	if u.ResponsibleAgent != nil && strings.TrimSpace(*u.ResponsibleAgent) == "" {
		errs = append(errs, "responsible agent cannot be empty")
	}
	if u.Status != nil && !u.Status.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", *u.Status))
	}
	if u.ContractType != nil && !u.ContractType.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown contract type %q", *u.ContractType))
	}
	if u.Method != nil && !u.Method.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown method %q", *u.Method))
	}
	if u.AdjustmentPercent != nil && !u.AdjustmentPercent.GreaterThan(minAdjustment) {
		errs = append(errs, "adjustment percent must be greater than -100")
	}
	if u.CatalogCode != nil && *u.CatalogCode < 0 {
		errs = append(errs, "catalog code cannot be negative")
	}

	return joined(errs)
}

// Transition checks a status change. Any status may move to archived;
// completing requires a stored evaluation.
func Transition(from, to model.ResearchStatus, evaluated bool) error {
	if !to.IsValid() {
		return eris.Wrapf(ErrInvalid, "unknown status %q", to)
	}
	if to == model.ResearchStatusCompleted && from != to && !evaluated {
		return ErrEvaluationRequired
	}
	return nil
}

// Supplier checks a supplier and normalizes its tax ID in place.
func Supplier(s *model.Supplier) error {
	var errs []string

	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, "name is required")
	}
	if id, problem := normalizeTaxID(s.TaxID); problem != "" {
		errs = append(errs, problem)
	} else {
		s.TaxID = id
	}
	if s.Email != "" {
		if _, err := mail.ParseAddress(s.Email); err != nil {
			errs = append(errs, fmt.Sprintf("invalid email %q", s.Email))
		}
	}

	return joined(errs)
}

func common(method model.EstimationMethod, adjustment decimal.Decimal, catalogCode int64) []string {
	var errs []string
	if method != "" && !method.IsValid() {
		errs = append(errs, fmt.Sprintf("unknown method %q", method))
	}
	if !adjustment.GreaterThan(minAdjustment) {
		errs = append(errs, "adjustment percent must be greater than -100")
	}
	if catalogCode < 0 {
		errs = append(errs, "catalog code cannot be negative")
	}
	return errs
}

func joined(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return eris.Wrap(ErrInvalid, strings.Join(errs, "; "))
}
