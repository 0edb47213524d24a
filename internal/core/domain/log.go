package domain

import "time"

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
)

// BackupLog is one append-only progress entry for a job. The API reads the
// ten most recent entries per job.
type BackupLog struct {
	ID        int64     `db:"id"`
	BackupID  string    `db:"backup_id"`
	Level     LogLevel  `db:"level"`
	Message   string    `db:"message"`
	CreatedAt time.Time `db:"created_at"`
}

func NewBackupLog(backupID string, level LogLevel, message string) *BackupLog {
	return &BackupLog{
		BackupID:  backupID,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}
}
