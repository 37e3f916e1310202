package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/price-research/internal/model"
)

// describe renders the calculation narrative stored in
// EvaluationResult.CalculationDetails.
func describe(part Partition, s Summary, r *model.EvaluationResult, asOf time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Estimated price %s by %s over %d valid price(s)", r.EstimatedPrice.StringFixed(2), r.Method, s.Count)
	if !r.AdjustmentPercent.IsZero() {
		fmt.Fprintf(&b, ", adjusted by %s%%", r.AdjustmentPercent.String())
	}
	b.WriteString(".\n")
	if s.Count == 1 {
		b.WriteString("A single valid price is used as-is regardless of method.\n")
	}

	fmt.Fprintf(&b, "Statistics over valid prices: mean %s, median %s, lowest %s.\n",
		s.Mean.StringFixed(2), s.Median.StringFixed(2), s.Min.StringFixed(2))

	th := r.Thresholds
	fmt.Fprintf(&b, "Provisional median over selected prices: %s; accepted range %s to %s",
		part.ProvisionalMedian.StringFixed(2),
		th.LowThreshold.Mul(part.ProvisionalMedian).StringFixed(2),
		th.HighThreshold.Mul(part.ProvisionalMedian).StringFixed(2))
	if th.StalenessMonths > 0 {
		fmt.Fprintf(&b, "; collected within %d month(s) of %s", th.StalenessMonths, model.DateOf(asOf))
	}
	b.WriteString(".\n")

	b.WriteString("Prices used:\n")
	for _, o := range part.Valid {
		writeLine(&b, o, "")
	}
	if len(part.Excluded) > 0 {
		b.WriteString("Prices excluded:\n")
		for _, ex := range part.Excluded {
			writeLine(&b, ex.Observation, ex.Reason)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeLine(b *strings.Builder, o model.Observation, reason string) {
	fmt.Fprintf(b, "  - %s %s (%s, %s)", o.Price.StringFixed(2), o.SourceLabel, o.SourceType, o.CollectedDate)
	if reason != "" {
		fmt.Fprintf(b, ": %s", reason)
	}
	b.WriteString("\n")
}
