package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vrijeme-widget/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives periodic snapshot refreshes and funnels event-driven
// triggers (visibility/focus resume, manual refresh) into the same path.
// The refresher's own throttle and in-flight guard collapse overlapping
// triggers, so the scheduler never queues.
type Scheduler struct {
	refresher *services.Refresher
	logger    *zap.Logger
	interval  time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	entryID   cron.EntryID
}

func NewScheduler(refresher *services.Refresher, interval, fetchTimeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
		interval:  interval,
		timeout:   fetchTimeout,
		cron:      cron.New(),
	}
}

// Start registers the periodic job and runs one immediate refresh.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	id, err := s.cron.AddFunc(spec, func() { s.run("timer") })
	if err != nil {
		return fmt.Errorf("scheduling refresh: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))

	go s.run("startup")
	return nil
}

// Trigger requests an immediate refresh outside the periodic cadence. The
// reason is carried into logs only.
func (s *Scheduler) Trigger(reason string) {
	go s.run(reason)
}

func (s *Scheduler) run(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.refresher.Refresh(ctx, reason)
	switch {
	case err == nil:
		s.logger.Debug("Refresh completed",
			zap.String("reason", reason),
			zap.Duration("duration", time.Since(start)))
	case errors.Is(err, services.ErrRefreshSkipped):
		// Dropped by the in-flight guard or the inter-refresh gap.
	default:
		s.logger.Warn("Refresh failed",
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// Stop halts the periodic job and waits for a running one to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun reports when the periodic job fires next; zero before Start.
func (s *Scheduler) NextRun() time.Time {
	entry := s.cron.Entry(s.entryID)
	return entry.Next
}
