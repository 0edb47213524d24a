package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jurisdesk/backupd/internal/api/handler"
	"github.com/jurisdesk/backupd/internal/api/middleware"
	"github.com/jurisdesk/backupd/internal/core/service"
	"github.com/jurisdesk/backupd/pkg/config"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	config *config.Config
	logger zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	backupService *service.BackupService,
	scheduleService *service.ScheduleService,
	logger zerolog.Logger,
) *Server {
	if !cfg.IsDevMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandlerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	backupHandler := handler.NewBackupHandler(backupService)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)

	// Admin routes; session verification is delegated to the auth middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecretKey)

	admin := router.Group("/admin")
	admin.Use(authMiddleware)
	{
		admin.GET("/backup", backupHandler.ListBackups)
		admin.POST("/backup", backupHandler.CreateBackup)
		admin.DELETE("/backup", backupHandler.DeleteBackup)

		admin.GET("/backup/schedule", scheduleHandler.ListSchedules)
		admin.POST("/backup/schedule", scheduleHandler.UpsertSchedule)
		admin.DELETE("/backup/schedule", scheduleHandler.DeleteSchedule)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &Server{
		router: router,
		config: cfg,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)

	s.srv = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	if s.config.SSLCert != "" && s.config.SSLKey != "" {
		s.logger.Info().Str("addr", addr).Msg("starting HTTPS server")
		return s.srv.ListenAndServeTLS(s.config.SSLCert, s.config.SSLKey)
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
