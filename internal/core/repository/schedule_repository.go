package repository

import (
	"context"
	"time"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// ScheduleRepository persists recurrence rules, at most one per settings
// profile.
type ScheduleRepository interface {
	// Upsert inserts the schedule or, when one already exists for the same
	// settings_id, updates it in place. The schedule's ID is set either way.
	Upsert(ctx context.Context, schedule *domain.Schedule) error

	FindByID(ctx context.Context, id int64) (*domain.Schedule, error)

	FindBySettingsID(ctx context.Context, settingsID string) (*domain.Schedule, error)

	List(ctx context.Context) ([]*domain.Schedule, error)

	Delete(ctx context.Context, id int64) error

	// FindDue returns enabled schedules whose next_run_at is at or before now.
	FindDue(ctx context.Context, now time.Time) ([]*domain.Schedule, error)

	// ClaimNextRun atomically advances next_run_at from expected to next.
	// It reports false when another tick already claimed the schedule, i.e.
	// next_run_at no longer equals expected.
	ClaimNextRun(ctx context.Context, id int64, expected, next time.Time) (bool, error)
}
