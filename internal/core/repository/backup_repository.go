package repository

import (
	"context"
	"errors"

	"github.com/jurisdesk/backupd/internal/core/domain"
)

// ErrNotFound is returned by lookups for ids that do not exist. Services
// translate it into their own NotFoundError.
var ErrNotFound = errors.New("not found")

// BackupFilter narrows List queries.
type BackupFilter struct {
	Status  *domain.BackupStatus
	OwnerID *string
	Limit   int
	Offset  int
}

// BackupRepository persists jobs together with their settings snapshot.
// Create and DeleteCascade are transactional: no reader ever observes a
// backup without its settings, or a child row without its parent.
type BackupRepository interface {
	// Create inserts the backup and its settings in one transaction.
	Create(ctx context.Context, backup *domain.Backup, settings *domain.BackupSettings) error

	// FindByID returns the backup with its settings embedded.
	FindByID(ctx context.Context, id string) (*domain.Backup, error)

	// List returns backups ordered by created_at descending, each with its
	// settings and the ten most recent log entries embedded.
	List(ctx context.Context, filter BackupFilter) ([]*domain.Backup, error)

	Count(ctx context.Context, filter BackupFilter) (int, error)

	UpdateStatus(ctx context.Context, id string, status domain.BackupStatus) error

	// DeleteCascade removes the backup's logs, files and settings together
	// with the backup row in a single all-or-nothing transaction.
	DeleteCascade(ctx context.Context, id string) error

	// CountByProfileAndStatus counts jobs in a given status that were drawn
	// from the given settings profile.
	CountByProfileAndStatus(ctx context.Context, profileID string, status domain.BackupStatus) (int, error)
}
