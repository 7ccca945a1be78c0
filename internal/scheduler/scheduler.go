package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"k8s.io/klog/v2"

	"github.com/i474232898/surge-forecast/internal/forecast"
	"github.com/i474232898/surge-forecast/internal/scenario"
)

// Refresher regenerates a session's forecast run.
type Refresher interface {
	Refresh(ctx context.Context, params scenario.SessionParams) (forecast.Run, error)
}

// Scheduler periodically refreshes the runs of configured sessions so that
// first requests are served from the store.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	sessions  []scenario.SessionParams
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(sessions []scenario.SessionParams, interval time.Duration, service Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		sessions:  sessions,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the refresh job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.sessions) == 0 {
		klog.InfoS("Scheduler has no sessions configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every configured session concurrently and waits for all of them.
func (s *Scheduler) RunOnce() {
	klog.V(2).InfoS("Running forecast refresh job", "sessions", len(s.sessions))

	var wg sync.WaitGroup
	for _, p := range s.sessions {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			if _, err := s.service.Refresh(ctx, p); err != nil {
				klog.ErrorS(err, "Forecast refresh failed", "session", p.Key())
			}
		}()
	}
	wg.Wait()
	klog.V(2).InfoS("Completed forecast refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
