package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
	"github.com/jurisdesk/backupd/internal/engine"
	"github.com/jurisdesk/backupd/internal/infrastructure/sqlite"
)

// hangingSource blocks in Open until the job context is canceled, keeping
// the job in RUNNING state for as long as a test needs it.
type hangingSource struct {
	started chan struct{}
}

func (s *hangingSource) Enumerate(context.Context) ([]engine.Unit, error) {
	return []engine.Unit{{Path: "matters.db"}}, nil
}

func (s *hangingSource) Open(ctx context.Context, _ engine.Unit) (io.ReadCloser, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDeleteJobWhileRunning(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	backupRepo := sqlite.NewBackupRepository(db)
	logRepo := sqlite.NewLogRepository(db)
	fileRepo := sqlite.NewFileRepository(db)

	source := &hangingSource{started: make(chan struct{}, 1)}
	runner := engine.NewRunner(
		backupRepo, logRepo, fileRepo,
		engine.NewLimiter(), source, engine.NewArchiver(""),
		t.TempDir(), time.Minute, zerolog.Nop(),
	)

	svc := NewBackupService(backupRepo, logRepo, runner, 5*time.Second, zerolog.Nop())

	job, err := svc.CreateJob(context.Background(), "long-running", domain.BackupTypeFull, &domain.BackupSettings{
		Compression:   domain.CompressionLow,
		ExcludedPaths: []string{},
		MaxConcurrent: 1,
	})
	require.NoError(t, err)

	svc.StartJob(job)

	select {
	case <-source.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started reading")
	}
	require.True(t, runner.IsActive(job.ID))

	// Delete stops the running job first, then removes every row it owns.
	require.NoError(t, svc.DeleteJob(context.Background(), job.ID))
	runner.Wait()

	assert.False(t, runner.IsActive(job.ID))

	_, err = svc.GetJob(context.Background(), job.ID)
	assert.True(t, IsNotFound(err))

	// No child rows survive.
	logs, err := logRepo.CountByBackup(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Zero(t, logs)

	files, err := fileRepo.CountByBackup(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Zero(t, files)

	count, err := backupRepo.Count(context.Background(), repository.BackupFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
