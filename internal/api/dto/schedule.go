package dto

import (
	"time"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// UpsertScheduleRequest creates or updates the schedule for a settings
// profile; a second POST for the same settingsId updates in place.
type UpsertScheduleRequest struct {
	SettingsID string `json:"settingsId" binding:"required"`
	Enabled    bool   `json:"enabled"`
	Frequency  string `json:"frequency" binding:"required,oneof=daily weekly monthly"`
	TimeOfDay  string `json:"timeOfDay" binding:"required"`
}

// ScheduleResponse represents a schedule with its settings profile
type ScheduleResponse struct {
	ID         int64             `json:"id"`
	SettingsID string            `json:"settingsId"`
	Enabled    bool              `json:"enabled"`
	Frequency  string            `json:"frequency"`
	TimeOfDay  string            `json:"timeOfDay"`
	NextRunAt  *time.Time        `json:"nextRunAt,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Settings   *SettingsResponse `json:"settings,omitempty"`
	Backup     *BackupResponse   `json:"backup,omitempty"`
}

func ToScheduleResponse(schedule *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:         schedule.ID,
		SettingsID: schedule.SettingsID,
		Enabled:    schedule.Enabled,
		Frequency:  string(schedule.Frequency),
		TimeOfDay:  schedule.TimeOfDay,
		NextRunAt:  schedule.NextRunAt,
		CreatedAt:  schedule.CreatedAt,
		UpdatedAt:  schedule.UpdatedAt,
	}
}
