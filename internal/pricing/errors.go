package pricing

import "github.com/rotisserie/eris"

var (
	// ErrInsufficientData is returned when no valid observation remains to
	// estimate from. Callers must show a "cannot estimate" state rather than
	// a number.
	ErrInsufficientData = eris.New("pricing: insufficient data")

	// ErrEmptySample is returned by the statistics functions for empty input.
	ErrEmptySample = eris.New("pricing: empty sample")

	// ErrUnknownMethod is returned for an estimation method outside
	// average, median and lowest.
	ErrUnknownMethod = eris.New("pricing: unknown estimation method")

	// ErrInvalidAdjustment is returned for an adjustment of -100% or less,
	// which would make the estimated price zero or negative.
	ErrInvalidAdjustment = eris.New("pricing: adjustment must be greater than -100%")

	// ErrInvalidThresholds is returned when the outlier policy is inconsistent.
	ErrInvalidThresholds = eris.New("pricing: invalid thresholds")
)
