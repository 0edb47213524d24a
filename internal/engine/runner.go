package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
)

// bookkeepingTimeout bounds status/log writes made after the job's own
// context is already canceled.
const bookkeepingTimeout = 10 * time.Second

// Runner executes backup jobs: pending jobs wait for a limiter slot, running
// jobs stream units through the archive pipeline, and every outcome ends in
// exactly one terminal status with the slot released.
type Runner struct {
	backups  repository.BackupRepository
	logs     repository.LogRepository
	files    repository.FileRepository
	limiter  *Limiter
	source   Source
	archiver *Archiver

	backupDir   string
	execTimeout time.Duration
	logger      zerolog.Logger

	mu     sync.Mutex
	active map[string]*activeJob
	wg     sync.WaitGroup
}

type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(
	backups repository.BackupRepository,
	logs repository.LogRepository,
	files repository.FileRepository,
	limiter *Limiter,
	source Source,
	archiver *Archiver,
	backupDir string,
	execTimeout time.Duration,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		backups:     backups,
		logs:        logs,
		files:       files,
		limiter:     limiter,
		source:      source,
		archiver:    archiver,
		backupDir:   backupDir,
		execTimeout: execTimeout,
		logger:      logger.With().Str("component", "runner").Logger(),
		active:      make(map[string]*activeJob),
	}
}

// Start launches the job asynchronously. Creation and execution are
// decoupled: the caller gets no execution outcome, only the PENDING record.
func (r *Runner) Start(job *domain.Backup) {
	jobCtx, cancel := context.WithCancel(context.Background())
	a := &activeJob{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.active[job.ID] = a
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, job.ID)
			r.mu.Unlock()
			close(a.done)
			cancel()
		}()
		r.run(jobCtx, job)
	}()
}

// Stop requests a graceful stop of a job and waits up to wait for it to
// wind down. It reports true when the job is no longer executing; false
// means the job is unresponsive and the caller may force-fail it.
func (r *Runner) Stop(id string, wait time.Duration) bool {
	r.mu.Lock()
	a, ok := r.active[id]
	r.mu.Unlock()
	if !ok {
		return true
	}

	a.cancel()

	select {
	case <-a.done:
		return true
	case <-time.After(wait):
		return false
	}
}

// IsActive reports whether the job is currently pending-in-queue or running.
func (r *Runner) IsActive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[id]
	return ok
}

// Wait blocks until all launched jobs have finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// RemoveArtifacts deletes the job's artifact directory. Called after the
// job's rows are gone so a deleted job leaves nothing on disk either.
func (r *Runner) RemoveArtifacts(id string) error {
	if err := os.RemoveAll(filepath.Join(r.backupDir, id)); err != nil {
		return fmt.Errorf("failed to remove artifacts for %s: %w", id, err)
	}
	return nil
}

func (r *Runner) run(jobCtx context.Context, job *domain.Backup) {
	log := r.logger.With().Str("backup_id", job.ID).Logger()
	settings := job.Settings

	// The job stays PENDING until a slot is actually admitted.
	slot, err := r.limiter.Admit(jobCtx, settings.ProfileID, settings.MaxConcurrent)
	if err != nil {
		log.Info().Msg("backup canceled before admission")
		r.finalize(job.ID, domain.BackupStatusFailed, "canceled while waiting for an execution slot")
		return
	}
	defer slot.Release()

	if err := r.transitionRunning(job.ID); err != nil {
		log.Error().Err(err).Msg("failed to transition backup to running")
		return
	}
	log.Info().Str("profile_id", settings.ProfileID).Msg("backup started")

	// Watchdog: execution, not queue time, is bounded.
	ctx, cancel := context.WithTimeout(jobCtx, r.execTimeout)
	defer cancel()

	err = r.archiveAll(ctx, job)
	switch {
	case err == nil:
		r.finalize(job.ID, domain.BackupStatusCompleted, "backup completed")
		log.Info().Msg("backup completed")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.finalize(job.ID, domain.BackupStatusFailed,
			fmt.Sprintf("backup timed out after %s", r.execTimeout))
		log.Error().Dur("timeout", r.execTimeout).Msg("backup timed out")
	case errors.Is(jobCtx.Err(), context.Canceled):
		r.finalize(job.ID, domain.BackupStatusFailed, "backup stopped on request")
		log.Info().Msg("backup stopped on request")
	default:
		r.finalize(job.ID, domain.BackupStatusFailed, fmt.Sprintf("backup failed: %v", err))
		log.Error().Err(err).Msg("backup failed")
	}
}

// archiveAll processes every non-excluded unit. Artifact rows are recorded
// as units complete so partial progress stays inspectable; on failure the
// rows already written remain.
func (r *Runner) archiveAll(ctx context.Context, job *domain.Backup) error {
	settings := job.Settings

	units, err := r.source.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}

	processed := 0
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if Excluded(unit.Path, settings.ExcludedPaths) {
			continue
		}
		if err := r.archiveUnit(ctx, job, unit); err != nil {
			return fmt.Errorf("unit %s: %w", unit.Path, err)
		}
		processed++
	}

	r.appendLog(job.ID, domain.LogLevelInfo, fmt.Sprintf("archived %d units", processed))
	return nil
}

func (r *Runner) archiveUnit(ctx context.Context, job *domain.Backup, unit Unit) error {
	settings := job.Settings

	src, err := r.source.Open(ctx, unit)
	if err != nil {
		return err
	}
	defer src.Close()

	artifact := ArtifactName(unit.Path, settings.Encryption)
	destPath := filepath.Join(r.backupDir, job.ID, filepath.FromSlash(artifact))

	size, checksum, err := r.archiver.Write(src, destPath, settings.Compression, settings.Encryption)
	if err != nil {
		return err
	}

	file := &domain.BackupFile{
		BackupID:  job.ID,
		Path:      artifact,
		Size:      size,
		Checksum:  checksum,
		Encrypted: settings.Encryption,
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()
	if err := r.files.Append(writeCtx, file); err != nil {
		return err
	}
	return nil
}

func (r *Runner) transitionRunning(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	if err := r.backups.UpdateStatus(ctx, id, domain.BackupStatusRunning); err != nil {
		return err
	}
	r.appendLog(id, domain.LogLevelInfo, "backup started")
	return nil
}

// finalize writes the terminal status and log entry. The job row may already
// be gone when a deletion raced the runner; that is not an error here.
func (r *Runner) finalize(id string, status domain.BackupStatus, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	level := domain.LogLevelInfo
	if status == domain.BackupStatusFailed {
		level = domain.LogLevelError
	}

	if err := r.backups.UpdateStatus(ctx, id, status); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Error().Err(err).Str("backup_id", id).Msg("failed to finalize backup status")
		}
		return
	}
	r.appendLog(id, level, message)
}

func (r *Runner) appendLog(id string, level domain.LogLevel, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer cancel()

	if err := r.logs.Append(ctx, domain.NewBackupLog(id, level, message)); err != nil {
		r.logger.Error().Err(err).Str("backup_id", id).Msg("failed to append backup log")
	}
}
