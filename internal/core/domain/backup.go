package domain

import (
	"time"

	"github.com/google/uuid"
)

type BackupType string

const (
	BackupTypeFull        BackupType = "full"
	BackupTypeIncremental BackupType = "incremental"
)

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusRunning   BackupStatus = "running"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup is one data-protection job. It owns exactly one BackupSettings
// row plus its logs and artifact records; all of them live and die with it.
type Backup struct {
	ID        string       `db:"id"`
	Name      string       `db:"name"`
	Type      BackupType   `db:"type"`
	Status    BackupStatus `db:"status"`
	OwnerID   string       `db:"owner_id"`
	CreatedAt time.Time    `db:"created_at"`

	// Populated by list/find queries, not stored on this row.
	Settings   *BackupSettings `db:"-"`
	RecentLogs []*BackupLog    `db:"-"`
}

func NewBackup(name string, backupType BackupType, ownerID string) *Backup {
	return &Backup{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      backupType,
		Status:    BackupStatusPending,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
}

// IsTerminal reports whether the job has reached a final status.
// Terminal jobs are never re-run; a retry is a new Backup.
func (b *Backup) IsTerminal() bool {
	return b.Status == BackupStatusCompleted || b.Status == BackupStatusFailed
}
