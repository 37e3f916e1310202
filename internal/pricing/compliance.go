package pricing

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/price-research/internal/model"
)

// Assess applies the IN 65/2021 collection rules to a partition and returns
// one issue per triggered rule, in rule order:
//
//  1. fewer than MinValidPrices valid prices (Art. 6, §3 justification);
//  2. fewer than DiversityMinimum distinct sources among valid prices;
//  3. one line per excluded observation, in input order.
//
// The returned slice is never nil. An empty slice means no issue was found.
func Assess(part Partition, th model.Thresholds) []string {
	issues := []string{}

	if n := len(part.Valid); n < th.MinValidPrices {
		issues = append(issues, fmt.Sprintf(
			"fewer than %d valid prices (%d found): formal justification required under Art. 6, §3 of IN 65/2021",
			th.MinValidPrices, n,
		))
	}

	if d := DistinctSources(part.Valid); d < th.DiversityMinimum {
		issues = append(issues, fmt.Sprintf(
			"low source diversity: %d distinct source(s) among valid prices, at least %d required; a single vendor or panel dominates the collection",
			d, th.DiversityMinimum,
		))
	}

	for _, ex := range part.Excluded {
		issues = append(issues, fmt.Sprintf(
			"price %s from %q (%s) excluded: %s",
			ex.Observation.Price.StringFixed(2), ex.Observation.SourceLabel,
			ex.Observation.SourceType.Label(), ex.Reason,
		))
	}

	return issues
}

// DistinctSources counts distinct source labels, ignoring case and
// surrounding whitespace.
func DistinctSources(observations []model.Observation) int {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		seen[fold.String(strings.TrimSpace(o.SourceLabel))] = struct{}{}
	}
	return len(seen)
}
