package repository

import (
	"context"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// FileRepository records artifacts as the runner produces them.
type FileRepository interface {
	Append(ctx context.Context, file *domain.BackupFile) error

	ListByBackup(ctx context.Context, backupID string) ([]*domain.BackupFile, error)

	CountByBackup(ctx context.Context, backupID string) (int, error)
}
