package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/devsync/outreach-backend/internal/domain/outreach"
)

// cycleTimeout bounds a scheduled cycle. Spread pacing stretches a call batch
// across the whole business window, so this must cover a full window.
const cycleTimeout = 10 * time.Hour

// Scheduler fires campaign cycles on the configured clock: emails daily at
// send time, calls on weekdays at window start.
type Scheduler struct {
	cron   *cron.Cron
	orc    *Orchestrator
	logger *zap.Logger
}

func NewScheduler(orc *Orchestrator, loc *time.Location, emailAt, callsAt string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		orc:    orc,
		logger: logger,
	}

	emailSpec, err := cronSpecFromClock(emailAt, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(emailSpec, func() {
		s.runScheduled(outreach.ChannelEmail, orc.RunEmailCampaign)
	}); err != nil {
		return nil, fmt.Errorf("registering email schedule: %w", err)
	}

	callSpec, err := cronSpecFromClock(callsAt, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(callSpec, func() {
		s.runScheduled(outreach.ChannelCall, orc.RunCallCampaign)
	}); err != nil {
		return nil, fmt.Errorf("registering call schedule: %w", err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("campaign scheduler started",
		zap.Times("next_runs", s.NextRuns()))
}

// Stop halts the cron loop. The returned context is done once any in-flight
// job has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// NextRuns returns the upcoming fire times, one per registered schedule.
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}

func (s *Scheduler) runScheduled(channel outreach.Channel, run func(context.Context) (*outreach.Report, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	s.logger.Info("scheduled campaign firing", zap.String("channel", string(channel)))
	if _, err := run(ctx); err != nil {
		s.logger.Error("scheduled campaign failed",
			zap.String("channel", string(channel)),
			zap.Error(err))
	}
}

// cronSpecFromClock converts an HH:MM wall-clock time into a daily cron spec.
// weekdaysOnly restricts firing to Monday through Friday.
func cronSpecFromClock(clock string, weekdaysOnly bool) (string, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("parsing clock time %q: %w", clock, err)
	}
	dow := "*"
	if weekdaysOnly {
		dow = "1-5"
	}
	return fmt.Sprintf("%d %d * * %s", t.Minute(), t.Hour(), dow), nil
}
