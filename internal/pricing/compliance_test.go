package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-research/internal/model"
)

func TestAssess_NoIssues(t *testing.T) {
	part := Partition{Valid: []model.Observation{
		obs("a", "Vendor A", "10"),
		obs("b", "Vendor B", "11"),
		obs("c", "Vendor A", "12"),
	}}

	issues := Assess(part, DefaultThresholds())

	require.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestAssess_RuleOrder(t *testing.T) {
	low := obs("x", "Cheap Co", "1")
	part := Partition{
		Valid:    []model.Observation{obs("a", "Only Vendor", "10")},
		Excluded: []Exclusion{{Observation: low, Reason: model.ReasonTooLow}},
	}

	issues := Assess(part, DefaultThresholds())

	require.Len(t, issues, 3)
	assert.Contains(t, issues[0], "fewer than 3 valid prices (1 found)")
	assert.Contains(t, issues[1], "low source diversity")
	assert.Contains(t, issues[2], `price 1.00 from "Cheap Co"`)
	assert.Contains(t, issues[2], model.SourceSupplierQuote.Label())
	assert.Contains(t, issues[2], model.ReasonTooLow)
}

func TestAssess_DiversityIgnoresCaseAndSpace(t *testing.T) {
	part := Partition{Valid: []model.Observation{
		obs("a", "ACME Ltda", "10"),
		obs("b", "  acme ltda ", "10"),
		obs("c", "Acme LTDA", "10"),
	}}

	issues := Assess(part, DefaultThresholds())

	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "1 distinct source(s)")
}

func TestAssess_CustomThresholds(t *testing.T) {
	part := Partition{Valid: []model.Observation{
		obs("a", "A", "10"),
		obs("b", "B", "10"),
	}}
	th := DefaultThresholds()
	th.MinValidPrices = 2
	th.DiversityMinimum = 3

	issues := Assess(part, th)

	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "at least 3 required")
}

func TestAssess_EmptyIffCompliant(t *testing.T) {
	tests := []struct {
		name      string
		valid     []model.Observation
		excluded  []Exclusion
		wantEmpty bool
	}{
		{
			name:      "three valid two sources",
			valid:     []model.Observation{obs("a", "A", "1"), obs("b", "B", "1"), obs("c", "B", "1")},
			wantEmpty: true,
		},
		{
			name:  "two valid",
			valid: []model.Observation{obs("a", "A", "1"), obs("b", "B", "1")},
		},
		{
			name:  "one source",
			valid: []model.Observation{obs("a", "A", "1"), obs("b", "A", "1"), obs("c", "A", "1")},
		},
		{
			name:     "one exclusion",
			valid:    []model.Observation{obs("a", "A", "1"), obs("b", "B", "1"), obs("c", "C", "1")},
			excluded: []Exclusion{{Observation: obs("d", "D", "9"), Reason: model.ReasonOverpriced}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Assess(Partition{Valid: tt.valid, Excluded: tt.excluded}, DefaultThresholds())
			assert.Equal(t, tt.wantEmpty, len(issues) == 0)
		})
	}
}

func TestDistinctSources(t *testing.T) {
	assert.Equal(t, 0, DistinctSources(nil))
	assert.Equal(t, 2, DistinctSources([]model.Observation{
		obs("a", "Painel de Preços", "1"),
		obs("b", "PAINEL DE PREÇOS", "1"),
		obs("c", "Fornecedor X", "1"),
	}))
}
