package repository

import (
	"context"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// LogRepository appends progress entries for a job.
type LogRepository interface {
	Append(ctx context.Context, log *domain.BackupLog) error

	// FindRecent returns up to limit entries for the job, newest first.
	FindRecent(ctx context.Context, backupID string, limit int) ([]*domain.BackupLog, error)

	CountByBackup(ctx context.Context, backupID string) (int, error)
}
