package domain

// BackupFile records one artifact produced by a run: its location, size,
// checksum and whether it was encrypted. Rows are appended as artifacts
// complete so partial progress is inspectable, and are removed together
// with the owning job.
type BackupFile struct {
	ID        int64  `db:"id"`
	BackupID  string `db:"backup_id"`
	Path      string `db:"path"`
	Size      int64  `db:"size"`
	Checksum  string `db:"checksum"`
	Encrypted bool   `db:"encrypted"`
}
