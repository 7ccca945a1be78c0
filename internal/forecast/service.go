package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/i474232898/surge-forecast/internal/metrics"
	"github.com/i474232898/surge-forecast/internal/recommend"
	"github.com/i474232898/surge-forecast/internal/scenario"
	"github.com/i474232898/surge-forecast/internal/surge"
)

// Config tunes memoization and summarization.
type Config struct {
	// CacheMaxAge is how long a session's run is served before it is regenerated.
	// Zero means runs never go stale on their own.
	CacheMaxAge time.Duration
	// PeakWindowDays is used when a scenario does not set its own.
	PeakWindowDays int
	// GenerateTimeout bounds one shared generation. The generation does not
	// inherit any single caller's cancellation.
	GenerateTimeout time.Duration
}

const defaultGenerateTimeout = 30 * time.Second

// Service answers the forecast queries for any number of sessions. Each
// session's run is generated on first use and memoized in the store.
type Service struct {
	registry  *scenario.Registry
	generator surge.Generator
	store     Store
	metrics   *metrics.Recorder
	cfg       Config

	group singleflight.Group
	now   func() time.Time
}

// NewService creates a new Service.
func NewService(registry *scenario.Registry, generator surge.Generator, store Store, rec *metrics.Recorder, cfg Config) *Service {
	if rec == nil {
		rec = metrics.New(nil)
	}
	if cfg.PeakWindowDays <= 0 {
		cfg.PeakWindowDays = surge.DefaultPeakWindowDays
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	return &Service{
		registry:  registry,
		generator: generator,
		store:     store,
		metrics:   rec,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Sessions lists every configured session.
func (s *Service) Sessions() []scenario.SessionParams {
	return s.registry.Sessions()
}

// Forecast returns the session's current run, generating it when missing or stale.
func (s *Service) Forecast(ctx context.Context, params scenario.SessionParams) (Run, error) {
	sess, err := s.registry.Lookup(params)
	if err != nil {
		return Run{}, err
	}

	run, err := s.store.GetLatest(sess.Params)
	switch {
	case err != nil:
		s.metrics.CacheRequests.WithLabelValues("miss").Inc()
	case s.fresh(run):
		s.metrics.CacheRequests.WithLabelValues("hit").Inc()
		return run, nil
	default:
		s.metrics.CacheRequests.WithLabelValues("stale").Inc()
	}

	return s.generateOnce(ctx, sess, false)
}

func (s *Service) fresh(run Run) bool {
	return s.cfg.CacheMaxAge <= 0 || s.now().Sub(run.GeneratedAt) < s.cfg.CacheMaxAge
}

// Refresh regenerates the session's run regardless of its age.
func (s *Service) Refresh(ctx context.Context, params scenario.SessionParams) (Run, error) {
	sess, err := s.registry.Lookup(params)
	if err != nil {
		return Run{}, err
	}
	return s.generateOnce(ctx, sess, true)
}

// Series returns a copy of the indicator series of the session's current run.
func (s *Service) Series(ctx context.Context, params scenario.SessionParams) (surge.Series, error) {
	run, err := s.Forecast(ctx, params)
	if err != nil {
		return nil, err
	}
	return append(surge.Series(nil), run.Series...), nil
}

// HeadlineMetrics returns the metrics of the session's current run.
func (s *Service) HeadlineMetrics(ctx context.Context, params scenario.SessionParams) (surge.HeadlineMetrics, error) {
	run, err := s.Forecast(ctx, params)
	if err != nil {
		return surge.HeadlineMetrics{}, err
	}
	return run.Metrics, nil
}

// History lists the retained runs of a session, oldest first.
func (s *Service) History(params scenario.SessionParams) ([]RunSummary, error) {
	sess, err := s.registry.Lookup(params)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.History(sess.Params)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Summary())
	}
	return out, nil
}

// RankedRecommendations filters and ranks the scenario's catalogue. The cost
// rollup covers only the returned items.
func (s *Service) RankedRecommendations(params scenario.SessionParams, filter recommend.Filter) (recommend.Plan, error) {
	sess, err := s.registry.Lookup(params)
	if err != nil {
		return recommend.Plan{}, err
	}
	plan := sess.Scenario.Catalogue.BuildPlan(filter, sess.Scenario.Currency)
	s.metrics.RecommendationCost.WithLabelValues(sess.Params.Key()).Set(plan.TotalCost)
	return plan, nil
}

// Validation returns the model-quality card of the session's scenario.
func (s *Service) Validation(params scenario.SessionParams) (Validation, error) {
	sess, err := s.registry.Lookup(params)
	if err != nil {
		return Validation{}, err
	}
	return Validation{
		Session:    sess.Params,
		Label:      sess.Scenario.Label,
		Forecaster: s.generator.Name(),
		Model:      sess.Scenario.Model,
	}, nil
}

// generateOnce collapses concurrent generations of the same session. The
// shared generation runs detached from ctx under GenerateTimeout; a caller
// whose ctx ends stops waiting without failing the others. Unless force is
// set, a fresh run stored by a flight that finished meanwhile is reused.
func (s *Service) generateOnce(ctx context.Context, sess scenario.Session, force bool) (Run, error) {
	key := sess.Params.Key()
	if force {
		key = "refresh:" + key
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		if !force {
			if run, err := s.store.GetLatest(sess.Params); err == nil && s.fresh(run) {
				return run, nil
			}
		}
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.GenerateTimeout)
		defer cancel()
		return s.generate(genCtx, sess)
	})

	select {
	case <-ctx.Done():
		return Run{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Run{}, res.Err
		}
		return res.Val.(Run), nil
	}
}

func (s *Service) generate(ctx context.Context, sess scenario.Session) (Run, error) {
	name := s.generator.Name()
	start := time.Now()

	series, err := s.generator.Generate(ctx, sess.WindowRequest())
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, surge.ErrValidation):
			result = "validation_error"
		case errors.Is(err, surge.ErrInvalidSeries):
			result = "invalid_series"
		}
		s.metrics.Generations.WithLabelValues(name, result).Inc()
		klog.ErrorS(err, "Series generation failed", "session", sess.Params.Key(), "forecaster", name)
		return Run{}, fmt.Errorf("generate %s: %w", sess.Params.Key(), err)
	}

	run := Run{
		ID:          uuid.NewString(),
		Params:      sess.Params,
		GeneratedAt: s.now().UTC(),
		Forecaster:  name,
		Series:      series,
		Metrics:     surge.Summarize(series, sess.SummaryConfig(s.cfg.PeakWindowDays)),
	}
	s.store.SaveRun(run)

	s.metrics.Generations.WithLabelValues(name, "success").Inc()
	s.metrics.GenerationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	s.metrics.SurgePercent.WithLabelValues(sess.Params.Key()).Set(float64(run.Metrics.SurgePercent))
	s.metrics.PeakAQI.WithLabelValues(sess.Params.Key()).Set(float64(run.Metrics.PeakAQI))

	klog.V(2).InfoS("Generated forecast run",
		"session", sess.Params.Key(),
		"runId", run.ID,
		"forecaster", name,
		"surgePercent", run.Metrics.SurgePercent,
		"peakAqi", run.Metrics.PeakAQI)

	return run, nil
}
