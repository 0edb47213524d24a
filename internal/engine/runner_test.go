package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
	"github.com/jurisdesk/backupd/internal/infrastructure/sqlite"
)

type runnerEnv struct {
	db      *sqlite.DB
	backups repository.BackupRepository
	logs    repository.LogRepository
	files   repository.FileRepository
	limiter *Limiter
	dir     string
}

func newRunnerEnv(t *testing.T) *runnerEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &runnerEnv{
		db:      db,
		backups: sqlite.NewBackupRepository(db),
		logs:    sqlite.NewLogRepository(db),
		files:   sqlite.NewFileRepository(db),
		limiter: NewLimiter(),
		dir:     t.TempDir(),
	}
}

func (env *runnerEnv) newRunner(t *testing.T, source Source, execTimeout time.Duration) *Runner {
	t.Helper()
	return NewRunner(
		env.backups, env.logs, env.files,
		env.limiter, source, NewArchiver("test-secret"),
		env.dir, execTimeout, zerolog.Nop(),
	)
}

func (env *runnerEnv) createJob(t *testing.T, settings *domain.BackupSettings) *domain.Backup {
	t.Helper()
	backup := domain.NewBackup("test-backup", domain.BackupTypeFull, "admin")
	require.NoError(t, env.backups.Create(context.Background(), backup, settings))
	return backup
}

func defaultSettings() *domain.BackupSettings {
	return &domain.BackupSettings{
		Compression:   domain.CompressionHigh,
		Encryption:    true,
		ExcludedPaths: []string{"drafts/*.tmp"},
		MaxConcurrent: 2,
	}
}

// failingSource serves one good unit, then errors on the second.
type failingSource struct{}

func (failingSource) Enumerate(context.Context) ([]Unit, error) {
	return []Unit{{Path: "good.txt"}, {Path: "bad.txt"}}, nil
}

func (failingSource) Open(_ context.Context, unit Unit) (io.ReadCloser, error) {
	if unit.Path == "bad.txt" {
		return nil, errors.New("disk read error")
	}
	return io.NopCloser(strings.NewReader("content")), nil
}

// blockingSource hangs in Open until the run context is canceled.
type blockingSource struct {
	started chan struct{}
}

func (s *blockingSource) Enumerate(context.Context) ([]Unit, error) {
	return []Unit{{Path: "slow.bin"}}, nil
}

func (s *blockingSource) Open(ctx context.Context, _ Unit) (io.ReadCloser, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunnerCompletesBackup(t *testing.T) {
	env := newRunnerEnv(t)

	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "cases"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "cases", "brief.pdf"), []byte("brief body"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "retainer.txt"), []byte("retainer"), 0o640))
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "drafts"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "drafts", "scratch.tmp"), []byte("scratch"), 0o640))

	runner := env.newRunner(t, NewDirSource(srcDir), time.Minute)

	job := env.createJob(t, defaultSettings())
	runner.Start(job)
	runner.Wait()

	final, err := env.backups.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusCompleted, final.Status)

	// Excluded drafts/scratch.tmp is skipped, not an error.
	files, err := env.files.ListByBackup(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, file := range files {
		assert.NotEmpty(t, file.Checksum)
		assert.True(t, file.Encrypted)
		assert.Greater(t, file.Size, int64(0))

		_, err := os.Stat(filepath.Join(env.dir, job.ID, filepath.FromSlash(file.Path)))
		assert.NoError(t, err)
	}

	logs, err := env.logs.FindRecent(context.Background(), job.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "backup completed", logs[0].Message)
}

func TestRunnerUnitFailureKeepsPartialOutput(t *testing.T) {
	env := newRunnerEnv(t)
	runner := env.newRunner(t, failingSource{}, time.Minute)

	job := env.createJob(t, &domain.BackupSettings{
		Compression:   domain.CompressionLow,
		MaxConcurrent: 1,
		ExcludedPaths: []string{},
	})
	runner.Start(job)
	runner.Wait()

	final, err := env.backups.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, final.Status)

	// The artifact written before the failure remains.
	files, err := env.files.ListByBackup(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "good.txt.gz", files[0].Path)

	logs, err := env.logs.FindRecent(context.Background(), job.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.LogLevelError, logs[0].Level)
	assert.Contains(t, logs[0].Message, "bad.txt")
}

func TestRunnerWatchdogReleasesSlot(t *testing.T) {
	env := newRunnerEnv(t)

	blocking := &blockingSource{started: make(chan struct{}, 1)}
	slowRunner := env.newRunner(t, blocking, 50*time.Millisecond)

	settings := &domain.BackupSettings{
		Compression:   domain.CompressionMedium,
		MaxConcurrent: 1,
		ExcludedPaths: []string{},
		ProfileID:     "shared-profile",
	}

	stuck := env.createJob(t, settings)
	slowRunner.Start(stuck)
	slowRunner.Wait()

	final, err := env.backups.FindByID(context.Background(), stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, final.Status)

	logs, err := env.logs.FindRecent(context.Background(), stuck.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Message, "timed out")

	// The slot must be free again: a job under the same profile runs.
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "f.txt"), []byte("x"), 0o640))
	fastRunner := env.newRunner(t, NewDirSource(srcDir), time.Minute)

	follower := env.createJob(t, &domain.BackupSettings{
		Compression:   domain.CompressionMedium,
		MaxConcurrent: 1,
		ExcludedPaths: []string{},
		ProfileID:     "shared-profile",
	})
	fastRunner.Start(follower)
	fastRunner.Wait()

	finalFollower, err := env.backups.FindByID(context.Background(), follower.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusCompleted, finalFollower.Status)
}

func TestRunnerGracefulStop(t *testing.T) {
	env := newRunnerEnv(t)

	blocking := &blockingSource{started: make(chan struct{}, 1)}
	runner := env.newRunner(t, blocking, time.Minute)

	job := env.createJob(t, &domain.BackupSettings{
		Compression:   domain.CompressionMedium,
		MaxConcurrent: 1,
		ExcludedPaths: []string{},
	})
	runner.Start(job)

	select {
	case <-blocking.started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	stopped := runner.Stop(job.ID, time.Second)
	assert.True(t, stopped)
	runner.Wait()

	final, err := env.backups.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, final.Status)
	assert.False(t, runner.IsActive(job.ID))
}

func TestRunnerStopUnknownJob(t *testing.T) {
	env := newRunnerEnv(t)
	runner := env.newRunner(t, failingSource{}, time.Minute)
	assert.True(t, runner.Stop("no-such-job", time.Millisecond))
}
