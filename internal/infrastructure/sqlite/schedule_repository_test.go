package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

func seedProfile(t *testing.T, db *DB) string {
	t.Helper()
	backup := seedBackup(t, NewBackupRepository(db), "profile-owner")
	return backup.ID
}

func TestScheduleUpsertIsSingleRowPerProfile(t *testing.T) {
	db := newTestDB(t)
	repo := NewScheduleRepository(db)
	settingsID := seedProfile(t, db)

	first := domain.NewSchedule(settingsID, true, domain.FrequencyDaily, "02:00")
	next := time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)
	first.NextRunAt = &next
	require.NoError(t, repo.Upsert(context.Background(), first))
	require.NotZero(t, first.ID)

	// A second upsert for the same profile updates in place.
	second := domain.NewSchedule(settingsID, true, domain.FrequencyWeekly, "04:30")
	other := time.Date(2024, 1, 3, 4, 30, 0, 0, time.UTC)
	second.NextRunAt = &other
	require.NoError(t, repo.Upsert(context.Background(), second))

	assert.Equal(t, first.ID, second.ID)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.FrequencyWeekly, all[0].Frequency)
	assert.Equal(t, "04:30", all[0].TimeOfDay)
}

func TestScheduleFindDue(t *testing.T) {
	db := newTestDB(t)
	repo := NewScheduleRepository(db)
	backupRepo := NewBackupRepository(db)

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	mk := func(name string, enabled bool, nextRunAt *time.Time) *domain.Schedule {
		backup := seedBackup(t, backupRepo, name)
		schedule := domain.NewSchedule(backup.ID, enabled, domain.FrequencyDaily, "02:00")
		schedule.NextRunAt = nextRunAt
		require.NoError(t, repo.Upsert(context.Background(), schedule))
		return schedule
	}

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := mk("due", true, &past)
	mk("future", true, &future)
	mk("disabled", false, nil)
	mk("disabled-with-time", false, &past)

	found, err := repo.FindDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, due.ID, found[0].ID)
}

func TestScheduleClaimNextRunIsCompareAndSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewScheduleRepository(db)
	settingsID := seedProfile(t, db)

	expected := time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC)
	schedule := domain.NewSchedule(settingsID, true, domain.FrequencyDaily, "02:00")
	schedule.NextRunAt = &expected
	require.NoError(t, repo.Upsert(context.Background(), schedule))

	next := expected.AddDate(0, 0, 1)

	claimed, err := repo.ClaimNextRun(context.Background(), schedule.ID, expected, next)
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second claim for the same due value must lose.
	claimed, err = repo.ClaimNextRun(context.Background(), schedule.ID, expected, next.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, claimed)

	found, err := repo.FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	require.NotNil(t, found.NextRunAt)
	assert.True(t, found.NextRunAt.Equal(next))
}

func TestScheduleClaimRoundTripsWallClockTimes(t *testing.T) {
	db := newTestDB(t)
	repo := NewScheduleRepository(db)
	settingsID := seedProfile(t, db)

	// A time.Now()-derived value carries a monotonic clock reading. Stored
	// text must still equal what a scanned copy binds back, or the claim
	// can never land.
	overdue := time.Now().Add(-time.Hour)
	schedule := domain.NewSchedule(settingsID, true, domain.FrequencyDaily, "02:00")
	schedule.NextRunAt = &overdue
	require.NoError(t, repo.Upsert(context.Background(), schedule))

	found, err := repo.FindDue(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, found, 1)

	next := time.Now().Add(24 * time.Hour)
	claimed, err := repo.ClaimNextRun(context.Background(), found[0].ID, *found[0].NextRunAt, next)
	require.NoError(t, err)
	assert.True(t, claimed, "claim must land on a value read back from the store")
}

func TestScheduleClaimSkipsDisabled(t *testing.T) {
	db := newTestDB(t)
	repo := NewScheduleRepository(db)
	settingsID := seedProfile(t, db)

	expected := time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC)
	schedule := domain.NewSchedule(settingsID, false, domain.FrequencyDaily, "02:00")
	schedule.NextRunAt = &expected
	require.NoError(t, repo.Upsert(context.Background(), schedule))

	claimed, err := repo.ClaimNextRun(context.Background(), schedule.ID, expected, expected.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestScheduleDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewScheduleRepository(db)
	settingsID := seedProfile(t, db)

	schedule := domain.NewSchedule(settingsID, false, domain.FrequencyMonthly, "05:00")
	require.NoError(t, repo.Upsert(context.Background(), schedule))

	require.NoError(t, repo.Delete(context.Background(), schedule.ID))
	assert.ErrorIs(t, repo.Delete(context.Background(), schedule.ID), repository.ErrNotFound)
}
