// Package pricing implements price estimation and IN 65/2021 compliance
// evaluation over a set of collected price observations.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Summary holds aggregate statistics over a non-empty sample of prices.
type Summary struct {
	Count  int             `json:"count"`
	Mean   decimal.Decimal `json:"mean"`
	Median decimal.Decimal `json:"median"`
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
}

// Summarize computes mean, median, min and max. The input is not modified
// and its order does not affect the result. An empty sample returns
// ErrEmptySample since mean and median are undefined.
func Summarize(prices []decimal.Decimal) (Summary, error) {
	if len(prices) == 0 {
		return Summary{}, ErrEmptySample
	}

	sorted := sortedCopy(prices)
	sum := decimal.Zero
	for _, p := range sorted {
		sum = sum.Add(p)
	}

	return Summary{
		Count:  len(sorted),
		Mean:   sum.Div(decimal.NewFromInt(int64(len(sorted)))),
		Median: medianOfSorted(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}, nil
}

// Median returns the median of prices. Even-sized samples yield the average
// of the two central values.
func Median(prices []decimal.Decimal) (decimal.Decimal, error) {
	if len(prices) == 0 {
		return decimal.Zero, ErrEmptySample
	}
	return medianOfSorted(sortedCopy(prices)), nil
}

func medianOfSorted(sorted []decimal.Decimal) decimal.Decimal {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(two)
}

func sortedCopy(prices []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(prices))
	copy(out, prices)
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}
