package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

type scheduleRepository struct {
	db *DB
}

func NewScheduleRepository(db *DB) repository.ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Upsert(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		INSERT INTO backup_schedule (settings_id, enabled, frequency, time_of_day, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(settings_id) DO UPDATE SET
			enabled = excluded.enabled,
			frequency = excluded.frequency,
			time_of_day = excluded.time_of_day,
			next_run_at = excluded.next_run_at,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		schedule.SettingsID,
		schedule.Enabled,
		schedule.Frequency,
		schedule.TimeOfDay,
		NullTime(schedule.NextRunAt),
		bindTime(schedule.CreatedAt),
		bindTime(schedule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert schedule: %w", err)
	}

	// LastInsertId is unreliable for the conflict path, so read the row back.
	existing, err := r.FindBySettingsID(ctx, schedule.SettingsID)
	if err != nil {
		return err
	}
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt

	return nil
}

func (r *scheduleRepository) FindByID(ctx context.Context, id int64) (*domain.Schedule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, settings_id, enabled, frequency, time_of_day, next_run_at, created_at, updated_at
		 FROM backup_schedule WHERE id = ?`, id)

	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}
	return schedule, nil
}

func (r *scheduleRepository) FindBySettingsID(ctx context.Context, settingsID string) (*domain.Schedule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, settings_id, enabled, frequency, time_of_day, next_run_at, created_at, updated_at
		 FROM backup_schedule WHERE settings_id = ?`, settingsID)

	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule for settings %s: %w", settingsID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}
	return schedule, nil
}

func (r *scheduleRepository) List(ctx context.Context) ([]*domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, settings_id, enabled, frequency, time_of_day, next_run_at, created_at, updated_at
		 FROM backup_schedule ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backup_schedule WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("schedule %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *scheduleRepository) FindDue(ctx context.Context, now time.Time) ([]*domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, settings_id, enabled, frequency, time_of_day, next_run_at, created_at, updated_at
		 FROM backup_schedule
		 WHERE enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
		 ORDER BY next_run_at ASC`, bindTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to find due schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// ClaimNextRun is the compare-and-set that keeps two overlapping ticks from
// firing the same schedule: the update only lands if next_run_at still holds
// the value the caller read.
func (r *scheduleRepository) ClaimNextRun(ctx context.Context, id int64, expected, next time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE backup_schedule SET next_run_at = ?, updated_at = ?
		 WHERE id = ? AND enabled = 1 AND next_run_at = ?`,
		bindTime(next), bindTime(time.Now()), id, bindTime(expected))
	if err != nil {
		return false, fmt.Errorf("failed to claim schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var (
		schedule  domain.Schedule
		nextRunAt sql.NullTime
	)
	err := row.Scan(&schedule.ID, &schedule.SettingsID, &schedule.Enabled, &schedule.Frequency,
		&schedule.TimeOfDay, &nextRunAt, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if nextRunAt.Valid {
		t := nextRunAt.Time
		schedule.NextRunAt = &t
	}
	return &schedule, nil
}

func collectSchedules(rows *sql.Rows) ([]*domain.Schedule, error) {
	var schedules []*domain.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return schedules, nil
}
