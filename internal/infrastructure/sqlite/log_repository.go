package sqlite

import (
	"context"
	"fmt"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

type logRepository struct {
	db *DB
}

func NewLogRepository(db *DB) repository.LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Append(ctx context.Context, log *domain.BackupLog) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO backup_log (backup_id, level, message, created_at) VALUES (?, ?, ?, ?)`,
		log.BackupID, log.Level, log.Message, bindTime(log.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append backup log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id
	return nil
}

func (r *logRepository) FindRecent(ctx context.Context, backupID string, limit int) ([]*domain.BackupLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, backup_id, level, message, created_at
		 FROM backup_log WHERE backup_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, backupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.BackupLog
	for rows.Next() {
		var log domain.BackupLog
		if err := rows.Scan(&log.ID, &log.BackupID, &log.Level, &log.Message, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}
	return logs, nil
}

func (r *logRepository) CountByBackup(ctx context.Context, backupID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_log WHERE backup_id = ?`, backupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return count, nil
}
