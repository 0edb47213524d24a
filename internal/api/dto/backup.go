package dto

import (
	"time"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// SettingsRequest carries the per-job configuration on creation
type SettingsRequest struct {
	Compression   string   `json:"compression" binding:"required,oneof=low medium high"`
	Encryption    bool     `json:"encryption"`
	ExcludedPaths []string `json:"excludedPaths"`
	MaxConcurrent int      `json:"maxConcurrent" binding:"required,min=1"`
}

// CreateBackupRequest represents the backup creation request
type CreateBackupRequest struct {
	Name     string          `json:"name"`
	Type     string          `json:"type" binding:"required,oneof=full incremental"`
	Settings SettingsRequest `json:"settings" binding:"required"`
}

// SettingsResponse represents a job's settings snapshot
type SettingsResponse struct {
	Compression   string   `json:"compression"`
	Encryption    bool     `json:"encryption"`
	ExcludedPaths []string `json:"excludedPaths"`
	MaxConcurrent int      `json:"maxConcurrent"`
}

// LogResponse represents one backup log entry
type LogResponse struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BackupResponse represents a backup job
type BackupResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Status    string            `json:"status"`
	OwnerID   string            `json:"ownerId"`
	CreatedAt time.Time         `json:"createdAt"`
	Settings  *SettingsResponse `json:"settings,omitempty"`
	Logs      []LogResponse     `json:"logs"`
}

func ToBackupResponse(backup *domain.Backup) BackupResponse {
	resp := BackupResponse{
		ID:        backup.ID,
		Name:      backup.Name,
		Type:      string(backup.Type),
		Status:    string(backup.Status),
		OwnerID:   backup.OwnerID,
		CreatedAt: backup.CreatedAt,
		Logs:      make([]LogResponse, 0, len(backup.RecentLogs)),
	}

	if backup.Settings != nil {
		resp.Settings = &SettingsResponse{
			Compression:   string(backup.Settings.Compression),
			Encryption:    backup.Settings.Encryption,
			ExcludedPaths: backup.Settings.ExcludedPaths,
			MaxConcurrent: backup.Settings.MaxConcurrent,
		}
	}

	for _, log := range backup.RecentLogs {
		resp.Logs = append(resp.Logs, LogResponse{
			Level:     string(log.Level),
			Message:   log.Message,
			Timestamp: log.CreatedAt,
		})
	}

	return resp
}
