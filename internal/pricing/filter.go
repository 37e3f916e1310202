package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/price-research/internal/model"
)

// Exclusion is an observation removed from the calculation and why.
type Exclusion struct {
	Observation model.Observation
	Reason      string

	index int
}

// Partition splits observations into those retained for calculation and
// those excluded. Both slices preserve input order.
type Partition struct {
	Valid    []model.Observation
	Excluded []Exclusion

	// ProvisionalMedian is the median over every filtered observation.
	ProvisionalMedian decimal.Decimal
}

// ValidPrices returns the prices of the retained observations.
func (p Partition) ValidPrices() []decimal.Decimal {
	out := make([]decimal.Decimal, len(p.Valid))
	for i, o := range p.Valid {
		out[i] = o.Price
	}
	return out
}

// Filter partitions observations by the outlier and staleness rules of th,
// evaluated as of asOf. Rules apply in order (too low, overpriced, stale)
// and the first match is the reported reason. Filter never excludes every
// observation: if all would go, the one closest to the provisional median
// is kept. An empty input yields an empty partition.
func Filter(observations []model.Observation, th model.Thresholds, asOf time.Time) Partition {
	if len(observations) == 0 {
		return Partition{}
	}

	prices := make([]decimal.Decimal, len(observations))
	for i, o := range observations {
		prices[i] = o.Price
	}
	median, _ := Median(prices)

	lowBound := th.LowThreshold.Mul(median)
	highBound := th.HighThreshold.Mul(median)

	var cutoff model.Date
	if th.StalenessMonths > 0 {
		cutoff = model.DateOf(model.DateOf(asOf).Time().AddDate(0, -th.StalenessMonths, 0))
	}

	part := Partition{ProvisionalMedian: median}
	for i, o := range observations {
		reason := ""
		switch {
		case o.Price.LessThan(lowBound):
			reason = model.ReasonTooLow
		case o.Price.GreaterThan(highBound):
			reason = model.ReasonOverpriced
		case !cutoff.IsZero() && o.CollectedDate.Before(cutoff):
			reason = model.ReasonStale
		}
		if reason == "" {
			part.Valid = append(part.Valid, o)
			continue
		}
		part.Excluded = append(part.Excluded, Exclusion{Observation: o, Reason: reason, index: i})
	}

	if len(part.Valid) == 0 {
		keep := closestTo(observations, median)
		part.Valid = []model.Observation{observations[keep]}
		remaining := make([]Exclusion, 0, len(part.Excluded)-1)
		for _, ex := range part.Excluded {
			if ex.index != keep {
				remaining = append(remaining, ex)
			}
		}
		part.Excluded = remaining
	}

	return part
}

// closestTo returns the index of the observation whose price is nearest to
// target. Ties go to the earliest observation.
func closestTo(observations []model.Observation, target decimal.Decimal) int {
	best := 0
	bestDist := observations[0].Price.Sub(target).Abs()
	for i := 1; i < len(observations); i++ {
		d := observations[i].Price.Sub(target).Abs()
		if d.LessThan(bestDist) {
			best, bestDist = i, d
		}
	}
	return best
}
