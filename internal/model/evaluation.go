package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// EstimationMethod is the statistic used as the basis for the estimated price.
type EstimationMethod string

const (
	MethodAverage EstimationMethod = "average"
	MethodMedian  EstimationMethod = "median"
	MethodLowest  EstimationMethod = "lowest"
)

// IsValid reports whether m is a known method.
func (m EstimationMethod) IsValid() bool {
	return m == MethodAverage || m == MethodMedian || m == MethodLowest
}

// Exclusion reasons reported in EvaluationResult.ExcludedObservations.
const (
	ReasonStale      = "stale"
	ReasonTooLow     = "inexecutable/too low"
	ReasonOverpriced = "overpriced"
	ReasonDeselected = "deselected by analyst"
)

// EvaluationInput is constructed per evaluation request.
type EvaluationInput struct {
	Description  string        `json:"description" yaml:"description"`
	Observations []Observation `json:"observations" yaml:"observations"`

	// Deselected lists observation IDs the analyst removed from the calculation.
	Deselected []string `json:"deselected,omitempty" yaml:"deselected,omitempty"`
}

// Thresholds is the outlier and compliance policy applied to an evaluation.
type Thresholds struct {
	LowThreshold     decimal.Decimal `json:"low_threshold" yaml:"low_threshold"`
	HighThreshold    decimal.Decimal `json:"high_threshold" yaml:"high_threshold"`
	StalenessMonths  int             `json:"staleness_months" yaml:"staleness_months"`
	DiversityMinimum int             `json:"diversity_minimum" yaml:"diversity_minimum"`
	MinValidPrices   int             `json:"min_valid_prices" yaml:"min_valid_prices"`
}

// EvaluationResult is the derived price estimate and compliance assessment.
type EvaluationResult struct {
	ValidObservationIDs  []string          `json:"valid_observation_ids"`
	ExcludedObservations map[string]string `json:"excluded_observations"`
	Mean                 decimal.Decimal   `json:"mean"`
	Median               decimal.Decimal   `json:"median"`
	Lowest               decimal.Decimal   `json:"lowest"`
	EstimatedPrice       decimal.Decimal   `json:"estimated_price"`
	Method               EstimationMethod  `json:"method"`
	AdjustmentPercent    decimal.Decimal   `json:"adjustment_percent"`
	ComplianceIssues     []string          `json:"compliance_issues"`
	CalculationDetails   string            `json:"calculation_details"`
	Thresholds           Thresholds        `json:"thresholds"`
	EvaluatedAt          time.Time         `json:"evaluated_at"`
}

// Compliant reports whether no compliance issue was found.
func (r *EvaluationResult) Compliant() bool {
	return len(r.ComplianceIssues) == 0
}

// Deselected returns the IDs the analyst removed from the calculation,
// sorted.
func (r *EvaluationResult) Deselected() []string {
	var ids []string
	for id, reason := range r.ExcludedObservations {
		if reason == ReasonDeselected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// StoredEvaluation is a finalized result persisted for a research.
type StoredEvaluation struct {
	ResearchID string           `json:"research_id"`
	Result     EvaluationResult `json:"result"`
	SavedAt    time.Time        `json:"saved_at"`
}
