package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-research/internal/model"
)

var asOf = time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decs(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func obs(id, label, price string) model.Observation {
	return model.Observation{
		ID:            id,
		SourceType:    model.SourceSupplierQuote,
		SourceLabel:   label,
		CollectedDate: model.NewDate(2024, time.December, 1),
		Price:         dec(price),
	}
}

func TestSummarize_OddCount(t *testing.T) {
	s, err := Summarize(decs("3200.00", "3150.00", "3180.00"))
	require.NoError(t, err)

	assert.Equal(t, 3, s.Count)
	assertDec(t, "3180", s.Median)
	assertDec(t, "3150", s.Min)
	assertDec(t, "3200", s.Max)
	assertDec(t, "3176.67", s.Mean.Round(2))
}

func TestSummarize_EvenCount(t *testing.T) {
	s, err := Summarize(decs("40", "10", "30", "20"))
	require.NoError(t, err)

	assertDec(t, "25", s.Median)
	assertDec(t, "25", s.Mean)
	assertDec(t, "10", s.Min)
}

func TestSummarize_Empty(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrEmptySample)

	_, err = Median([]decimal.Decimal{})
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	in := decs("3", "1", "2")
	_, err := Summarize(in)
	require.NoError(t, err)

	assertDec(t, "3", in[0])
	assertDec(t, "1", in[1])
	assertDec(t, "2", in[2])
}

func TestMedian_PermutationInvariant(t *testing.T) {
	perms := [][]string{
		{"7.5", "1.25", "99", "42", "3"},
		{"99", "42", "7.5", "3", "1.25"},
		{"3", "1.25", "42", "7.5", "99"},
		{"42", "99", "3", "1.25", "7.5"},
	}
	for _, p := range perms {
		m, err := Median(decs(p...))
		require.NoError(t, err)
		assertDec(t, "7.5", m)
	}

	even := [][]string{
		{"4", "1", "3", "2"},
		{"1", "2", "3", "4"},
		{"3", "4", "2", "1"},
	}
	for _, p := range even {
		m, err := Median(decs(p...))
		require.NoError(t, err)
		assertDec(t, "2.5", m)
	}
}

func TestMedian_Single(t *testing.T) {
	m, err := Median(decs("100"))
	require.NoError(t, err)
	assertDec(t, "100", m)
}
