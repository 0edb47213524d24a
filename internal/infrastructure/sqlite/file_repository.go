package sqlite

import (
	"context"
	"fmt"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

type fileRepository struct {
	db *DB
}

func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Append(ctx context.Context, file *domain.BackupFile) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO backup_file (backup_id, path, size, checksum, encrypted) VALUES (?, ?, ?, ?, ?)`,
		file.BackupID, file.Path, file.Size, file.Checksum, file.Encrypted)
	if err != nil {
		return fmt.Errorf("failed to append backup file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	file.ID = id
	return nil
}

func (r *fileRepository) ListByBackup(ctx context.Context, backupID string) ([]*domain.BackupFile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, backup_id, path, size, checksum, encrypted
		 FROM backup_file WHERE backup_id = ? ORDER BY id ASC`, backupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup files: %w", err)
	}
	defer rows.Close()

	var files []*domain.BackupFile
	for rows.Next() {
		var file domain.BackupFile
		if err := rows.Scan(&file.ID, &file.BackupID, &file.Path, &file.Size, &file.Checksum, &file.Encrypted); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, &file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}
	return files, nil
}

func (r *fileRepository) CountByBackup(ctx context.Context, backupID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_file WHERE backup_id = ?`, backupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}
