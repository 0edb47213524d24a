package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

const recentLogLimit = 10

type backupRepository struct {
	db *DB
}

func NewBackupRepository(db *DB) repository.BackupRepository {
	return &backupRepository{db: db}
}

func (r *backupRepository) Create(ctx context.Context, backup *domain.Backup, settings *domain.BackupSettings) error {
	excluded, err := json.Marshal(settings.ExcludedPaths)
	if err != nil {
		return fmt.Errorf("failed to encode excluded paths: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO backup (id, name, type, status, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		backup.ID, backup.Name, backup.Type, backup.Status, backup.OwnerID, bindTime(backup.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	settings.BackupID = backup.ID
	if settings.ProfileID == "" {
		settings.ProfileID = backup.ID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO backup_settings (backup_id, compression, encryption, excluded_paths, max_concurrent, profile_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		settings.BackupID, settings.Compression, settings.Encryption, string(excluded),
		settings.MaxConcurrent, settings.ProfileID,
	)
	if err != nil {
		return fmt.Errorf("failed to create backup settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backup creation: %w", err)
	}

	backup.Settings = settings
	return nil
}

func (r *backupRepository) FindByID(ctx context.Context, id string) (*domain.Backup, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT id, name, type, status, owner_id, created_at FROM backup WHERE id = ?`, id)

	backup, err := scanBackup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("backup %s: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find backup: %w", err)
	}

	settings, err := r.findSettings(ctx, id)
	if err != nil {
		return nil, err
	}
	backup.Settings = settings

	logs, err := r.findRecentLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	backup.RecentLogs = logs

	return backup, nil
}

func (r *backupRepository) List(ctx context.Context, filter repository.BackupFilter) ([]*domain.Backup, error) {
	query := `SELECT id, name, type, status, owner_id, created_at FROM backup WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.OwnerID != nil {
		query += " AND owner_id = ?"
		args = append(args, *filter.OwnerID)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var backups []*domain.Backup
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		backups = append(backups, backup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backups: %w", err)
	}

	for _, backup := range backups {
		settings, err := r.findSettings(ctx, backup.ID)
		if err != nil {
			return nil, err
		}
		backup.Settings = settings

		logs, err := r.findRecentLogs(ctx, backup.ID)
		if err != nil {
			return nil, err
		}
		backup.RecentLogs = logs
	}

	return backups, nil
}

func (r *backupRepository) Count(ctx context.Context, filter repository.BackupFilter) (int, error) {
	query := `SELECT COUNT(*) FROM backup WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.OwnerID != nil {
		query += " AND owner_id = ?"
		args = append(args, *filter.OwnerID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count backups: %w", err)
	}
	return count, nil
}

func (r *backupRepository) UpdateStatus(ctx context.Context, id string, status domain.BackupStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE backup SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update backup status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// DeleteCascade removes the job and everything it owns in one transaction,
// children first so the tree is consistent at every point inside the tx.
func (r *backupRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_log WHERE backup_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete backup logs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_file WHERE backup_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete backup files: %w", err)
	}
	// Deleting the settings cascades to any schedule referencing this profile.
	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_schedule WHERE settings_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete backup schedule: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM backup_settings WHERE backup_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete backup settings: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM backup WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup %s: %w", id, repository.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backup deletion: %w", err)
	}
	return nil
}

func (r *backupRepository) CountByProfileAndStatus(ctx context.Context, profileID string, status domain.BackupStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM backup b
		JOIN backup_settings s ON s.backup_id = b.id
		WHERE s.profile_id = ? AND b.status = ?
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, profileID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count backups by profile: %w", err)
	}
	return count, nil
}

func (r *backupRepository) findSettings(ctx context.Context, backupID string) (*domain.BackupSettings, error) {
	var (
		settings domain.BackupSettings
		excluded string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT backup_id, compression, encryption, excluded_paths, max_concurrent, profile_id
		 FROM backup_settings WHERE backup_id = ?`, backupID,
	).Scan(&settings.BackupID, &settings.Compression, &settings.Encryption, &excluded,
		&settings.MaxConcurrent, &settings.ProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("settings for backup %s: %w", backupID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find backup settings: %w", err)
	}

	if err := json.Unmarshal([]byte(excluded), &settings.ExcludedPaths); err != nil {
		return nil, fmt.Errorf("failed to decode excluded paths: %w", err)
	}
	return &settings, nil
}

func (r *backupRepository) findRecentLogs(ctx context.Context, backupID string) ([]*domain.BackupLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, backup_id, level, message, created_at
		 FROM backup_log WHERE backup_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, backupID, recentLogLimit)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBackup(row rowScanner) (*domain.Backup, error) {
	var backup domain.Backup
	err := row.Scan(&backup.ID, &backup.Name, &backup.Type, &backup.Status,
		&backup.OwnerID, &backup.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &backup, nil
}
