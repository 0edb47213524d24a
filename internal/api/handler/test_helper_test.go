package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/backupd/internal/core/service"
	"github.com/jurisdesk/backupd/internal/engine"
	"github.com/jurisdesk/backupd/internal/infrastructure/sqlite"
)

// testEnv holds all test dependencies
type testEnv struct {
	db     *sqlite.DB
	router *gin.Engine
	runner *engine.Runner
}

// setupTestEnv creates a test environment with an in-memory SQLite database
// and a real runner writing into temp dirs. Routes are registered without
// the auth middleware; that layer has its own tests.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backupRepo := sqlite.NewBackupRepository(db)
	scheduleRepo := sqlite.NewScheduleRepository(db)
	logRepo := sqlite.NewLogRepository(db)
	fileRepo := sqlite.NewFileRepository(db)

	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "case.txt"), []byte("contents"), 0o640))

	runner := engine.NewRunner(
		backupRepo, logRepo, fileRepo,
		engine.NewLimiter(), engine.NewDirSource(srcDir), engine.NewArchiver("test-secret"),
		t.TempDir(), time.Minute, zerolog.Nop(),
	)

	backupService := service.NewBackupService(backupRepo, logRepo, runner, time.Second, zerolog.Nop())
	scheduleService := service.NewScheduleService(scheduleRepo, backupRepo, backupService, zerolog.Nop())

	backupHandler := NewBackupHandler(backupService)
	scheduleHandler := NewScheduleHandler(scheduleService)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/backup", backupHandler.ListBackups)
	router.POST("/backup", backupHandler.CreateBackup)
	router.DELETE("/backup", backupHandler.DeleteBackup)
	router.GET("/backup/schedule", scheduleHandler.ListSchedules)
	router.POST("/backup/schedule", scheduleHandler.UpsertSchedule)
	router.DELETE("/backup/schedule", scheduleHandler.DeleteSchedule)

	return &testEnv{
		db:     db,
		router: router,
		runner: runner,
	}
}

// request performs an HTTP request against the test router. A non-nil body
// is JSON-encoded.
func (env *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// createBackup posts a valid creation request and returns the new job id.
func (env *testEnv) createBackup(t *testing.T, name string) string {
	t.Helper()

	w := env.request(t, http.MethodPost, "/backup", map[string]any{
		"name": name,
		"type": "full",
		"settings": map[string]any{
			"compression":   "low",
			"encryption":    false,
			"maxConcurrent": 2,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	resp := decodeJSON[map[string]any](t, w)
	id, _ := resp["id"].(string)
	require.NotEmpty(t, id)
	return id
}
