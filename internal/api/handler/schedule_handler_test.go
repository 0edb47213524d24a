package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/backupd/internal/api/dto"
)

func TestUpsertSchedule(t *testing.T) {
	env := setupTestEnv(t)
	profileID := env.createBackup(t, "nightly-profile")
	env.runner.Wait()

	body := map[string]any{
		"settingsId": profileID,
		"enabled":    true,
		"frequency":  "daily",
		"timeOfDay":  "02:00",
	}

	w := env.request(t, http.MethodPost, "/backup/schedule", body)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	created := decodeJSON[dto.ScheduleResponse](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, profileID, created.SettingsID)
	assert.True(t, created.Enabled)
	require.NotNil(t, created.NextRunAt)

	// A second POST for the same profile updates in place.
	body["timeOfDay"] = "03:30"
	w = env.request(t, http.MethodPost, "/backup/schedule", body)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeJSON[dto.ScheduleResponse](t, w)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "03:30", updated.TimeOfDay)

	w = env.request(t, http.MethodGet, "/backup/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeJSON[[]dto.ScheduleResponse](t, w)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Backup)
	assert.Equal(t, profileID, items[0].Backup.ID)
	require.NotNil(t, items[0].Settings)
	assert.Equal(t, "low", items[0].Settings.Compression)
}

func TestListSchedulesProfileLookupFailure(t *testing.T) {
	env := setupTestEnv(t)
	profileID := env.createBackup(t, "profile")
	env.runner.Wait()

	w := env.request(t, http.MethodPost, "/backup/schedule", map[string]any{
		"settingsId": profileID,
		"enabled":    true,
		"frequency":  "daily",
		"timeOfDay":  "02:00",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Corrupt the stored settings so the profile lookup errors. The listing
	// must surface that instead of returning the schedule stripped bare.
	_, err := env.db.Exec(`UPDATE backup_settings SET excluded_paths = 'oops' WHERE backup_id = ?`, profileID)
	require.NoError(t, err)

	w = env.request(t, http.MethodGet, "/backup/schedule", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "body: %s", w.Body.String())
}

func TestUpsertScheduleValidation(t *testing.T) {
	env := setupTestEnv(t)
	profileID := env.createBackup(t, "profile")
	env.runner.Wait()

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{
			name:     "missing settingsId",
			body:     map[string]any{"enabled": true, "frequency": "daily", "timeOfDay": "02:00"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown frequency",
			body:     map[string]any{"settingsId": profileID, "frequency": "yearly", "timeOfDay": "02:00"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "out of range timeOfDay",
			body:     map[string]any{"settingsId": profileID, "frequency": "daily", "timeOfDay": "25:00"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown settings profile",
			body:     map[string]any{"settingsId": "no-such-profile", "frequency": "daily", "timeOfDay": "02:00"},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, http.MethodPost, "/backup/schedule", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, "body: %s", w.Body.String())
		})
	}
}

func TestDeleteSchedule(t *testing.T) {
	env := setupTestEnv(t)
	profileID := env.createBackup(t, "profile")
	env.runner.Wait()

	w := env.request(t, http.MethodPost, "/backup/schedule", map[string]any{
		"settingsId": profileID,
		"enabled":    true,
		"frequency":  "weekly",
		"timeOfDay":  "04:15",
	})
	require.Equal(t, http.StatusOK, w.Code)
	schedule := decodeJSON[dto.ScheduleResponse](t, w)

	w = env.request(t, http.MethodDelete, "/backup/schedule", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing id is rejected")

	w = env.request(t, http.MethodDelete, "/backup/schedule?id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "non-numeric id is rejected")

	w = env.request(t, http.MethodDelete, "/backup/schedule?id=99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.request(t, http.MethodDelete, fmt.Sprintf("/backup/schedule?id=%d", schedule.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	assert.True(t, decodeJSON[dto.SuccessResponse](t, w).Success)

	w = env.request(t, http.MethodGet, "/backup/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeJSON[[]dto.ScheduleResponse](t, w))
}
