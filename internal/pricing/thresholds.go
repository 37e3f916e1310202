package pricing

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/price-research/internal/model"
)

// Default policy values. These were never stated as regulatory fact; they
// are the configurable defaults of this service.
const (
	DefaultLowThreshold     = 0.5
	DefaultHighThreshold    = 2.0
	DefaultStalenessMonths  = 12
	DefaultDiversityMinimum = 2
	DefaultMinValidPrices   = 3
)

// DefaultThresholds returns the default outlier and compliance policy.
func DefaultThresholds() model.Thresholds {
	return model.Thresholds{
		LowThreshold:     decimal.NewFromFloat(DefaultLowThreshold),
		HighThreshold:    decimal.NewFromFloat(DefaultHighThreshold),
		StalenessMonths:  DefaultStalenessMonths,
		DiversityMinimum: DefaultDiversityMinimum,
		MinValidPrices:   DefaultMinValidPrices,
	}
}

// WithDefaults fills zero-valued fields of th from DefaultThresholds.
// A negative StalenessMonths disables the staleness rule.
func WithDefaults(th model.Thresholds) model.Thresholds {
	def := DefaultThresholds()
	if th.LowThreshold.IsZero() {
		th.LowThreshold = def.LowThreshold
	}
	if th.HighThreshold.IsZero() {
		th.HighThreshold = def.HighThreshold
	}
	if th.StalenessMonths == 0 {
		th.StalenessMonths = def.StalenessMonths
	}
	if th.DiversityMinimum == 0 {
		th.DiversityMinimum = def.DiversityMinimum
	}
	if th.MinValidPrices == 0 {
		th.MinValidPrices = def.MinValidPrices
	}
	return th
}

// ValidateThresholds checks that a policy is internally consistent.
func ValidateThresholds(th model.Thresholds) error {
	var errs []string

	if th.LowThreshold.IsNegative() || th.LowThreshold.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "low_threshold must be between 0 and 1")
	}
	if th.HighThreshold.LessThan(decimal.NewFromInt(1)) {
		errs = append(errs, "high_threshold must be >= 1")
	}
	if th.DiversityMinimum < 1 {
		errs = append(errs, "diversity_minimum must be >= 1")
	}
	if th.MinValidPrices < 1 {
		errs = append(errs, "min_valid_prices must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrInvalidThresholds, strings.Join(errs, "; "))
	}
	return nil
}
