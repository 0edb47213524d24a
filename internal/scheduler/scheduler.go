// Package scheduler drives the schedule service tick from a real clock.
// All scheduling state lives in the database; this loop only supplies time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/jurisdesk/backupd/internal/core/service"
)

// Scheduler runs the tick on a fixed interval via cron. It is restart-safe:
// schedules due during downtime fire on the first tick after start.
type Scheduler struct {
	schedules *service.ScheduleService
	cron      *cron.Cron
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func New(schedules *service.ScheduleService, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		cron:      cron.New(),
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins ticking once per minute. Tick failures are logged by the
// service and retried on the next interval; they never stop the loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if _, err := s.cron.AddFunc("* * * * *", func() {
		tickCtx, tickCancel := context.WithTimeout(ctx, 50*time.Second)
		defer tickCancel()
		s.schedules.Tick(tickCtx, time.Now())
	}); err != nil {
		cancel()
		return err
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Msg("scheduler started")

	// Catch up immediately instead of waiting for the first minute boundary.
	go s.schedules.Tick(ctx, time.Now())

	return nil
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
	s.running = false
	s.logger.Info().Msg("scheduler stopped")
}
