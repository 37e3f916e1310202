package advisory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/resilience"
	"github.com/sells-group/price-research/pkg/anthropic"
)

func sampleInput() model.EvaluationInput {
	return model.EvaluationInput{
		Description: "Cadeira de escritório ergonômica",
		Observations: []model.Observation{
			{
				ID:            "1",
				SourceType:    model.SourceOfficialPanel,
				SourceLabel:   "Painel de Preços",
				CollectedDate: model.NewDate(2025, time.February, 3),
				Price:         decimal.RequireFromString("850"),
			},
			{
				ID:            "2",
				SourceType:    model.SourceSupplierQuote,
				SourceLabel:   "Móveis ACME",
				CollectedDate: model.NewDate(2025, time.February, 5),
				Price:         decimal.RequireFromString("910.5"),
				Notes:         "frete incluso",
			},
		},
	}
}

func fastConfig() Config {
	return Config{
		Timeout: time.Second,
		Retry:   resilience.RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}
}

func TestAdvise_Disabled(t *testing.T) {
	a := New(nil, Config{})
	assert.False(t, a.Enabled())

	_, err := a.Advise(context.Background(), sampleInput())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestAdvise_ParsesFencedReply(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.System) == 1 && req.System[0].Cached &&
			len(req.Messages) == 1 &&
			assert.Contains(t, req.Messages[0].Content, "Móveis ACME") &&
			assert.Contains(t, req.Messages[0].Content, "910.50") &&
			assert.Contains(t, req.Messages[0].Content, "Notas: frete incluso")
	})).Return(textResponse("Segue a análise:\n```json\n{\"complianceIssues\":[\"Apenas duas fontes\"],\"estimatedCost\":\"880.25\",\"calculationDetails\":\"média\"}\n```"), nil)

	op, err := New(client, fastConfig()).Advise(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.True(t, op.Advisory)
	assert.Equal(t, []string{"Apenas duas fontes"}, op.ComplianceIssues)
	assert.True(t, decimal.RequireFromString("880.25").Equal(op.EstimatedCost))
	assert.Equal(t, "média", op.CalculationDetails)
	assert.Equal(t, "claude-haiku-4-5-20251001", op.Model)
	client.AssertExpectations(t)
}

func TestAdvise_NumericCostAndMissingIssues(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"estimatedCost": 880, "calculationDetails": "mediana"}`), nil)

	op, err := New(client, fastConfig()).Advise(context.Background(), sampleInput())
	require.NoError(t, err)

	require.NotNil(t, op.ComplianceIssues)
	assert.Empty(t, op.ComplianceIssues)
	assert.True(t, decimal.NewFromInt(880).Equal(op.EstimatedCost))
}

func TestAdvise_RetriesTransient(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"complianceIssues":[],"estimatedCost":1,"calculationDetails":"ok"}`), nil).Once()

	op, err := New(client, fastConfig()).Advise(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Empty(t, op.ComplianceIssues)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestAdvise_PermanentErrorNotRetried(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid api key"))

	_, err := New(client, fastConfig()).Advise(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory: request opinion")
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestAdvise_UnparseableReply(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("não sei"), nil)

	_, err := New(client, fastConfig()).Advise(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory: parse reply")
}

func TestAdvise_BreakerOpensAfterFailures(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("down"), 503))

	cfg := fastConfig()
	cfg.Retry.Attempts = 1
	cfg.BreakerThreshold = 2
	cfg.BreakerCooldown = time.Hour
	a := New(client, cfg)

	for range 2 {
		_, err := a.Advise(context.Background(), sampleInput())
		require.Error(t, err)
	}
	_, err := a.Advise(context.Background(), sampleInput())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	client.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestAdvise_TimeoutCancelsWait(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("busy"), 429))

	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.Retry = resilience.RetryPolicy{Attempts: 50, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	start := time.Now()
	_, err := New(client, cfg).Advise(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	client.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Resultado: {\"a\":{\"b\":2}} fim", `{"a":{"b":2}}`},
		{"sem json", "sem json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanJSON(tt.in))
	}
}
