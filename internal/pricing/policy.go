package pricing

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/price-research/internal/model"
)

var hundred = decimal.NewFromInt(100)

// BasePrice selects the statistic for method. A single price is returned
// as-is whatever the method.
func BasePrice(prices []decimal.Decimal, method model.EstimationMethod) (decimal.Decimal, error) {
	if !method.IsValid() {
		return decimal.Zero, eris.Wrapf(ErrUnknownMethod, "method %q", method)
	}
	if len(prices) == 0 {
		return decimal.Zero, ErrInsufficientData
	}
	if len(prices) == 1 {
		return prices[0], nil
	}

	s, err := Summarize(prices)
	if err != nil {
		return decimal.Zero, err
	}
	switch method {
	case model.MethodAverage:
		return s.Mean, nil
	case model.MethodMedian:
		return s.Median, nil
	default:
		return s.Min, nil
	}
}

// Estimate applies method and a signed adjustment percentage to the valid
// prices: base × (1 + adjustment/100), rounded to cents. The adjustment must
// be greater than -100.
func Estimate(prices []decimal.Decimal, method model.EstimationMethod, adjustmentPercent decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAdjustment(adjustmentPercent); err != nil {
		return decimal.Zero, err
	}
	base, err := BasePrice(prices, method)
	if err != nil {
		return decimal.Zero, err
	}
	return Adjust(base, adjustmentPercent), nil
}

// Adjust scales base by (1 + pct/100) and rounds to two decimal places.
func Adjust(base, pct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(pct.Div(hundred))
	return base.Mul(factor).Round(2)
}

func checkAdjustment(pct decimal.Decimal) error {
	if !pct.GreaterThan(hundred.Neg()) {
		return eris.Wrapf(ErrInvalidAdjustment, "got %s%%", pct)
	}
	return nil
}
