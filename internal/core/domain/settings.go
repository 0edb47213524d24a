package domain

type CompressionLevel string

const (
	CompressionLow    CompressionLevel = "low"
	CompressionMedium CompressionLevel = "medium"
	CompressionHigh   CompressionLevel = "high"
)

// BackupSettings is the per-job configuration snapshot. It is written once
// at job creation time and never mutated after the job starts running.
type BackupSettings struct {
	BackupID      string           `db:"backup_id"`
	Compression   CompressionLevel `db:"compression"`
	Encryption    bool             `db:"encryption"`
	ExcludedPaths []string         `db:"-"` // stored as a JSON array
	MaxConcurrent int              `db:"max_concurrent"`

	// ProfileID names the settings profile this job was drawn from: the
	// originating settings id for scheduled jobs, the backup's own id for
	// manual ones. The concurrency limiter keys on it.
	ProfileID string `db:"profile_id"`
}

// Snapshot returns a copy of the settings bound to a new backup, keeping
// the profile identity of the source so concurrency limits apply across
// all jobs drawn from the same profile.
func (s *BackupSettings) Snapshot(backupID string) *BackupSettings {
	excluded := make([]string, len(s.ExcludedPaths))
	copy(excluded, s.ExcludedPaths)
	return &BackupSettings{
		BackupID:      backupID,
		Compression:   s.Compression,
		Encryption:    s.Encryption,
		ExcludedPaths: excluded,
		MaxConcurrent: s.MaxConcurrent,
		ProfileID:     s.ProfileID,
	}
}
