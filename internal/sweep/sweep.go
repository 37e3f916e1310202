// Package sweep periodically re-evaluates open researches so stored
// results track observations that age past the staleness window.
package sweep

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/pricing"
	"github.com/sells-group/price-research/internal/store"
)

// DefaultSchedule runs the sweep daily at 03:00.
const DefaultSchedule = "0 3 * * *"

const pageSize = 100

// Store is the persistence the sweep needs.
type Store interface {
	ListResearches(ctx context.Context, filter store.ResearchFilter) ([]model.Research, error)
	GetResearch(ctx context.Context, id string) (*model.Research, error)
	GetEvaluation(ctx context.Context, researchID string) (*model.StoredEvaluation, error)
	SaveEvaluation(ctx context.Context, ev *model.StoredEvaluation) error
}

// Config controls the sweep.
type Config struct {
	Schedule   string           `yaml:"schedule" mapstructure:"schedule"`
	Thresholds model.Thresholds `yaml:"-" mapstructure:"-"`
}

// Result summarizes one pass.
type Result struct {
	Checked   int `json:"checked"`
	Refreshed int `json:"refreshed"`
	Changed   int `json:"changed"`
	Failed    int `json:"failed"`
}

// Sweeper re-evaluates stored evaluations.
type Sweeper struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// New returns a Sweeper.
func New(st Store, cfg Config) *Sweeper {
	if strings.TrimSpace(cfg.Schedule) == "" {
		cfg.Schedule = DefaultSchedule
	}
	return &Sweeper{store: st, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// RunOnce re-evaluates every in-progress or pending-review research that
// has a stored evaluation, keeping its method, adjustment and deselections.
// Researches whose observations no longer support an estimate keep their
// previous result and are counted as failed.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	start := time.Now()
	asOf := s.now()

	for _, status := range []model.ResearchStatus{model.ResearchStatusInProgress, model.ResearchStatusPendingReview} {
		for offset := 0; ; offset += pageSize {
			page, err := s.store.ListResearches(ctx, store.ResearchFilter{
				Status:    status,
				Evaluated: true,
				Limit:     pageSize,
				Offset:    offset,
			})
			if err != nil {
				return res, eris.Wrapf(err, "sweep: list %s researches", status)
			}
			for _, r := range page {
				if err := ctx.Err(); err != nil {
					return res, eris.Wrap(err, "sweep: interrupted")
				}
				res.Checked++
				changed, err := s.refresh(ctx, r.ID, asOf)
				if err != nil {
					res.Failed++
					zap.L().Warn("sweep: re-evaluation failed", zap.String("research_id", r.ID), zap.Error(err))
					continue
				}
				res.Refreshed++
				if changed {
					res.Changed++
				}
			}
			if len(page) < pageSize {
				break
			}
		}
	}

	zap.L().Info("sweep: complete",
		zap.Int("checked", res.Checked),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("changed", res.Changed),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (s *Sweeper) refresh(ctx context.Context, id string, asOf time.Time) (bool, error) {
	r, err := s.store.GetResearch(ctx, id)
	if err != nil {
		return false, err
	}
	prev, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return false, err
	}

	input := model.EvaluationInput{
		Description:  r.Description,
		Observations: r.Observations,
		Deselected:   prev.Result.Deselected(),
	}
	result, err := pricing.Evaluate(input, prev.Result.Method, prev.Result.AdjustmentPercent,
		pricing.WithThresholds(s.cfg.Thresholds), pricing.AsOf(asOf))
	if err != nil {
		return false, err
	}

	changed := !slices.Equal(prev.Result.ComplianceIssues, result.ComplianceIssues) ||
		!prev.Result.EstimatedPrice.Equal(result.EstimatedPrice)
	if changed {
		zap.L().Info("sweep: evaluation changed",
			zap.String("research_id", id),
			zap.String("previous_price", prev.Result.EstimatedPrice.String()),
			zap.String("estimated_price", result.EstimatedPrice.String()),
			zap.Strings("compliance_issues", result.ComplianceIssues),
		)
	}

	if err := s.store.SaveEvaluation(ctx, &model.StoredEvaluation{ResearchID: id, Result: *result}); err != nil {
		return false, err
	}
	return changed, nil
}

// ParseSchedule parses a standard five-field cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, eris.Wrapf(err, "sweep: invalid schedule %q", spec)
	}
	return sched, nil
}

// Run executes RunOnce on the configured schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	sched, err := ParseSchedule(s.cfg.Schedule)
	if err != nil {
		return err
	}
	zap.L().Info("sweep: scheduled", zap.String("schedule", s.cfg.Schedule))

	for {
		now := time.Now()
		next := sched.Next(now)
		zap.L().Debug("sweep: next run", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("sweep: run failed", zap.Error(err))
		}
	}
}
