// Package advisory asks an LLM for a second, non-authoritative opinion on a
// price collection. Its output is shown next to the deterministic evaluation
// and never merged into it.
package advisory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/resilience"
	"github.com/sells-group/price-research/pkg/anthropic"
)

// ErrDisabled is returned when no LLM client is configured.
var ErrDisabled = eris.New("advisory: disabled")

// Opinion is the LLM's advisory assessment.
type Opinion struct {
	ComplianceIssues   []string        `json:"compliance_issues"`
	EstimatedCost      decimal.Decimal `json:"estimated_cost"`
	CalculationDetails string          `json:"calculation_details"`
	Model              string          `json:"model"`
	Advisory           bool            `json:"advisory"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type reply struct {
	ComplianceIssues   []string        `json:"complianceIssues"`
	EstimatedCost      decimal.Decimal `json:"estimatedCost"`
	CalculationDetails string          `json:"calculationDetails"`
}

// Config tunes the advisory calls.
type Config struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration

	// RequestsPerMinute caps calls to the API. Zero means unlimited.
	RequestsPerMinute int
	Retry             resilience.RetryPolicy

	// BreakerThreshold consecutive failures pause calls for BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Advisor produces advisory opinions.
type Advisor struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// New returns an Advisor. A nil client yields a disabled Advisor.
func New(client anthropic.Client, cfg Config) *Advisor {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.LogRetry("anthropic", "advisory")
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}
	return &Advisor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		breaker: resilience.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// Enabled reports whether an LLM client is configured.
func (a *Advisor) Enabled() bool {
	return a != nil && a.client != nil
}

// Advise requests an opinion on the description and observations of in.
// Transient API failures are retried within the configured timeout.
func (a *Advisor) Advise(ctx context.Context, in model.EvaluationInput) (*Opinion, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: systemPrompt, Cached: true}},
		Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(in)}},
		Temperature: &temp,
	}

	resp, err := resilience.DoVal(ctx, a.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "advisory: rate limit wait")
		}
		return resilience.Call(ctx, a.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "advisory: request opinion")
	}
	resp.Usage.LogCost(a.cfg.Model, "advisory")

	var r reply
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &r); err != nil {
		zap.L().Warn("advisory: unparseable reply", zap.String("stop_reason", resp.StopReason), zap.Error(err))
		return nil, eris.Wrap(err, "advisory: parse reply")
	}
	if r.ComplianceIssues == nil {
		r.ComplianceIssues = []string{}
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = a.cfg.Model
	}
	return &Opinion{
		ComplianceIssues:   r.ComplianceIssues,
		EstimatedCost:      r.EstimatedCost,
		CalculationDetails: r.CalculationDetails,
		Model:              modelID,
		Advisory:           true,
		GeneratedAt:        time.Now().UTC(),
	}, nil
}
