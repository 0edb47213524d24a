package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
	"github.com/jurisdesk/backupd/internal/engine"
)

// BackupService is the job store: it owns creation, listing and cascade
// deletion of backup jobs, and hands accepted jobs to the runner.
type BackupService struct {
	backupRepo  repository.BackupRepository
	logRepo     repository.LogRepository
	runner      *engine.Runner
	stopTimeout time.Duration
	logger      zerolog.Logger
}

func NewBackupService(
	backupRepo repository.BackupRepository,
	logRepo repository.LogRepository,
	runner *engine.Runner,
	stopTimeout time.Duration,
	logger zerolog.Logger,
) *BackupService {
	return &BackupService{
		backupRepo:  backupRepo,
		logRepo:     logRepo,
		runner:      runner,
		stopTimeout: stopTimeout,
		logger:      logger.With().Str("component", "backup_service").Logger(),
	}
}

// CreateJob validates the settings and persists the job in PENDING state
// together with its settings snapshot, atomically. It does not start
// execution; callers decide when to hand the job to the runner.
func (s *BackupService) CreateJob(ctx context.Context, name string, backupType domain.BackupType, settings *domain.BackupSettings) (*domain.Backup, error) {
	if err := validateType(backupType); err != nil {
		return nil, err
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("backup-%s", time.Now().Format("20060102-150405"))
	}

	backup := domain.NewBackup(name, backupType, ownerFromContext(ctx))
	if err := s.backupRepo.Create(ctx, backup, settings); err != nil {
		return nil, fmt.Errorf("failed to create backup job: %w", err)
	}

	return backup, nil
}

// StartJob hands a created job to the runner. Execution outcome is observed
// later through status and logs, never returned here.
func (s *BackupService) StartJob(backup *domain.Backup) {
	s.runner.Start(backup)
}

func (s *BackupService) GetJob(ctx context.Context, id string) (*domain.Backup, error) {
	backup, err := s.backupRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("backup", id)
		}
		return nil, err
	}
	return backup, nil
}

// ListJobs returns jobs newest first with settings and the ten most recent
// log entries embedded.
func (s *BackupService) ListJobs(ctx context.Context, filter repository.BackupFilter) ([]*domain.Backup, error) {
	return s.backupRepo.List(ctx, filter)
}

func (s *BackupService) CountJobs(ctx context.Context, filter repository.BackupFilter) (int, error) {
	return s.backupRepo.Count(ctx, filter)
}

// DeleteJob removes the job and every row it owns. A running job first gets
// a graceful stop with a bounded wait; if it does not wind down in time it
// is force-marked failed and deletion proceeds regardless.
func (s *BackupService) DeleteJob(ctx context.Context, id string) error {
	backup, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}

	if s.runner.IsActive(id) || backup.Status == domain.BackupStatusRunning {
		if stopped := s.runner.Stop(id, s.stopTimeout); !stopped {
			s.logger.Warn().Str("backup_id", id).Msg("backup unresponsive to stop, force-failing before delete")
			if err := s.backupRepo.UpdateStatus(ctx, id, domain.BackupStatusFailed); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to force-fail backup: %w", err)
			}
			_ = s.logRepo.Append(ctx, domain.NewBackupLog(id, domain.LogLevelError, "force-failed: unresponsive to stop request"))
		}
	}

	if err := s.backupRepo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError("backup", id)
		}
		return fmt.Errorf("failed to delete backup job: %w", err)
	}

	// The rows are gone; artifacts on disk go with them. A filesystem error
	// here is logged, not returned, since the deletion itself committed.
	if err := s.runner.RemoveArtifacts(id); err != nil {
		s.logger.Error().Err(err).Str("backup_id", id).Msg("failed to remove backup artifacts")
	}

	s.logger.Info().Str("backup_id", id).Msg("backup deleted")
	return nil
}

// ValidateSettings enforces the settings contract at the write boundary:
// a known compression level, a positive concurrency cap, and parseable
// exclusion patterns.
func ValidateSettings(settings *domain.BackupSettings) error {
	if settings == nil {
		return NewValidationError("settings are required")
	}

	switch settings.Compression {
	case domain.CompressionLow, domain.CompressionMedium, domain.CompressionHigh:
	default:
		return NewValidationError("compression must be one of low, medium, high")
	}

	if settings.MaxConcurrent < 1 {
		return NewValidationError("max_concurrent must be at least 1")
	}

	if err := engine.ValidatePatterns(settings.ExcludedPaths); err != nil {
		return NewValidationError("excluded_paths: %v", err)
	}

	return nil
}

func validateType(t domain.BackupType) error {
	switch t {
	case domain.BackupTypeFull, domain.BackupTypeIncremental:
		return nil
	}
	return NewValidationError("type must be one of full, incremental")
}

type ownerKey struct{}

// WithOwner stores the authenticated principal on the context so created
// jobs record who requested them.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func ownerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok && owner != "" {
		return owner
	}
	return "system"
}
