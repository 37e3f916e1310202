package pricing

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/model"
)

type options struct {
	thresholds model.Thresholds
	asOf       time.Time
}

// Option customizes an evaluation.
type Option func(*options)

// WithThresholds overrides the outlier and compliance policy. Zero-valued
// fields keep their defaults.
func WithThresholds(th model.Thresholds) Option {
	return func(o *options) { o.thresholds = th }
}

// AsOf sets the reference time for the staleness rule. Defaults to now.
func AsOf(t time.Time) Option {
	return func(o *options) { o.asOf = t }
}

// Evaluate filters the observations, estimates a price with method and
// adjustmentPercent, and assesses compliance. Observations listed in
// input.Deselected are excluded before filtering. It returns
// ErrInsufficientData when no observation is left to estimate from.
//
// Evaluate has no hidden state: identical arguments yield identical results.
func Evaluate(input model.EvaluationInput, method model.EstimationMethod, adjustmentPercent decimal.Decimal, opts ...Option) (*model.EvaluationResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	th := WithDefaults(o.thresholds)
	if err := ValidateThresholds(th); err != nil {
		return nil, err
	}
	if !method.IsValid() {
		return nil, eris.Wrapf(ErrUnknownMethod, "method %q", method)
	}
	if err := checkAdjustment(adjustmentPercent); err != nil {
		return nil, err
	}
	asOf := o.asOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	deselected := make(map[string]bool, len(input.Deselected))
	for _, id := range input.Deselected {
		deselected[id] = true
	}
	selected := make([]model.Observation, 0, len(input.Observations))
	for _, obs := range input.Observations {
		if !deselected[obs.ID] {
			selected = append(selected, obs)
		}
	}
	if len(selected) == 0 {
		return nil, eris.Wrapf(ErrInsufficientData, "%d observation(s), %d deselected", len(input.Observations), len(input.Observations)-len(selected))
	}

	filtered := Filter(selected, th, asOf)
	prices := filtered.ValidPrices()
	summary, err := Summarize(prices)
	if err != nil {
		return nil, eris.Wrap(ErrInsufficientData, err.Error())
	}
	estimated, err := Estimate(prices, method, adjustmentPercent)
	if err != nil {
		return nil, err
	}

	reasons := make(map[string]string, len(input.Observations))
	for _, ex := range filtered.Excluded {
		reasons[ex.Observation.ID] = ex.Reason
	}
	full := Partition{Valid: filtered.Valid, ProvisionalMedian: filtered.ProvisionalMedian}
	for _, obs := range input.Observations {
		if deselected[obs.ID] {
			reasons[obs.ID] = model.ReasonDeselected
		}
		if r, ok := reasons[obs.ID]; ok {
			full.Excluded = append(full.Excluded, Exclusion{Observation: obs, Reason: r})
		}
	}

	validIDs := make([]string, len(filtered.Valid))
	for i, obs := range filtered.Valid {
		validIDs[i] = obs.ID
	}

	result := &model.EvaluationResult{
		ValidObservationIDs:  validIDs,
		ExcludedObservations: reasons,
		Mean:                 summary.Mean,
		Median:               summary.Median,
		Lowest:               summary.Min,
		EstimatedPrice:       estimated,
		Method:               method,
		AdjustmentPercent:    adjustmentPercent,
		ComplianceIssues:     Assess(full, th),
		Thresholds:           th,
		EvaluatedAt:          asOf,
	}
	result.CalculationDetails = describe(full, summary, result, asOf)

	zap.L().Debug("pricing: evaluation computed",
		zap.Int("observations", len(input.Observations)),
		zap.Int("valid", len(validIDs)),
		zap.Int("excluded", len(reasons)),
		zap.String("method", string(method)),
		zap.String("estimated_price", estimated.StringFixed(2)),
		zap.Int("compliance_issues", len(result.ComplianceIssues)),
	)

	return result, nil
}
