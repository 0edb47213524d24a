package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

// ScheduleService owns recurrence rules and the tick that turns due
// schedules into jobs. It is stateless across restarts: the only scheduler
// state is the persisted next_run_at per schedule, and "now" is injected so
// the tick is testable with synthetic clocks.
type ScheduleService struct {
	scheduleRepo repository.ScheduleRepository
	backupRepo   repository.BackupRepository
	backupServ   *BackupService
	logger       zerolog.Logger
}

func NewScheduleService(
	scheduleRepo repository.ScheduleRepository,
	backupRepo repository.BackupRepository,
	backupServ *BackupService,
	logger zerolog.Logger,
) *ScheduleService {
	return &ScheduleService{
		scheduleRepo: scheduleRepo,
		backupRepo:   backupRepo,
		backupServ:   backupServ,
		logger:       logger.With().Str("component", "schedule_service").Logger(),
	}
}

// UpsertSchedule creates or updates the one schedule for a settings profile.
// Enabling computes next_run_at fresh from now; disabling clears it.
func (s *ScheduleService) UpsertSchedule(ctx context.Context, settingsID string, enabled bool, frequency domain.ScheduleFrequency, timeOfDay string) (*domain.Schedule, error) {
	if settingsID == "" {
		return nil, NewValidationError("settings_id is required")
	}
	switch frequency {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
	default:
		return nil, NewValidationError("frequency must be one of daily, weekly, monthly")
	}
	if !domain.ValidTimeOfDay(timeOfDay) {
		return nil, NewValidationError("time_of_day must be HH:mm in 24-hour format")
	}

	// The settings profile must exist; a schedule never outlives it.
	if _, err := s.backupRepo.FindByID(ctx, settingsID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("settings profile", settingsID)
		}
		return nil, err
	}

	schedule := domain.NewSchedule(settingsID, enabled, frequency, timeOfDay)

	// Keep the original creation time on update: it anchors the weekly
	// weekday and monthly day-of-month.
	if existing, err := s.scheduleRepo.FindBySettingsID(ctx, settingsID); err == nil {
		schedule.ID = existing.ID
		schedule.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if enabled {
		next, err := schedule.NextRun(time.Now())
		if err != nil {
			return nil, NewValidationError("%v", err)
		}
		schedule.NextRunAt = &next
	}

	if err := s.scheduleRepo.Upsert(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to upsert schedule: %w", err)
	}

	return schedule, nil
}

func (s *ScheduleService) GetSchedule(ctx context.Context, id int64) (*domain.Schedule, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("schedule", fmt.Sprintf("%d", id))
		}
		return nil, err
	}
	return schedule, nil
}

func (s *ScheduleService) ListSchedules(ctx context.Context) ([]*domain.Schedule, error) {
	return s.scheduleRepo.List(ctx)
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, id int64) error {
	if err := s.scheduleRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("schedule", fmt.Sprintf("%d", id))
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// SettingsProfile returns the settings profile a schedule draws from,
// together with the backup that owns it.
func (s *ScheduleService) SettingsProfile(ctx context.Context, settingsID string) (*domain.Backup, error) {
	backup, err := s.backupRepo.FindByID(ctx, settingsID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("settings profile", settingsID)
		}
		return nil, err
	}
	return backup, nil
}

// Tick fires every due schedule at most once. A schedule that was due while
// the process was down fires immediately on the first tick after restart,
// then advances; late is better than skipped. Claiming is a compare-and-set
// on next_run_at so overlapping ticks or multiple instances cannot
// double-fire one schedule. Store failures are logged and retried on the
// next tick.
func (s *ScheduleService) Tick(ctx context.Context, now time.Time) {
	due, err := s.scheduleRepo.FindDue(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("tick: failed to find due schedules")
		return
	}

	for _, schedule := range due {
		if err := s.fire(ctx, schedule, now); err != nil {
			s.logger.Error().Err(err).
				Int64("schedule_id", schedule.ID).
				Msg("tick: failed to fire schedule")
		}
	}
}

func (s *ScheduleService) fire(ctx context.Context, schedule *domain.Schedule, now time.Time) error {
	// Always advances at least one full period past now, never re-using a
	// stale value even when the tick itself was delayed.
	next, err := schedule.NextRun(now)
	if err != nil {
		return fmt.Errorf("failed to compute next run: %w", err)
	}

	claimed, err := s.scheduleRepo.ClaimNextRun(ctx, schedule.ID, *schedule.NextRunAt, next)
	if err != nil {
		return fmt.Errorf("failed to claim schedule: %w", err)
	}
	if !claimed {
		// Another tick got here first.
		return nil
	}

	template, err := s.backupRepo.FindByID(ctx, schedule.SettingsID)
	if err != nil {
		return fmt.Errorf("failed to load settings profile: %w", err)
	}

	settings := template.Settings.Snapshot("")
	settings.ProfileID = schedule.SettingsID

	name := fmt.Sprintf("scheduled-%s", now.Format("20060102-150405"))
	job, err := s.backupServ.CreateJob(WithOwner(ctx, template.OwnerID), name, template.Type, settings)
	if err != nil {
		return fmt.Errorf("failed to create scheduled job: %w", err)
	}
	s.backupServ.StartJob(job)

	s.logger.Info().
		Int64("schedule_id", schedule.ID).
		Str("backup_id", job.ID).
		Time("next_run_at", next).
		Msg("schedule fired")

	return nil
}
