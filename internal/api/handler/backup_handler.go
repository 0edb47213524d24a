package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/backupd/internal/api/dto"
	"github.com/jurisdesk/backupd/internal/api/middleware"
	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/repository"
	"github.com/jurisdesk/backupd/internal/core/service"
)

type BackupHandler struct {
	backupService *service.BackupService
}

func NewBackupHandler(backupService *service.BackupService) *BackupHandler {
	return &BackupHandler{
		backupService: backupService,
	}
}

// ListBackups handles GET /admin/backup
func (h *BackupHandler) ListBackups(c *gin.Context) {
	if id := c.Query("id"); id != "" {
		backup, err := h.backupService.GetJob(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.ToBackupResponse(backup))
		return
	}

	filter := repository.BackupFilter{}
	if status := c.Query("status"); status != "" {
		st := domain.BackupStatus(status)
		filter.Status = &st
	}

	backups, err := h.backupService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.BackupResponse, 0, len(backups))
	for _, backup := range backups {
		items = append(items, dto.ToBackupResponse(backup))
	}

	c.JSON(http.StatusOK, items)
}

// CreateBackup handles POST /admin/backup. The job is created synchronously
// and started in the background; execution outcome is observed later through
// status and logs.
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	var req dto.CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	settings := &domain.BackupSettings{
		Compression:   domain.CompressionLevel(req.Settings.Compression),
		Encryption:    req.Settings.Encryption,
		ExcludedPaths: req.Settings.ExcludedPaths,
		MaxConcurrent: req.Settings.MaxConcurrent,
	}
	if settings.ExcludedPaths == nil {
		settings.ExcludedPaths = []string{}
	}

	ctx := c.Request.Context()
	if claims, ok := middleware.GetAuthClaims(c); ok {
		ctx = service.WithOwner(ctx, claims.Subject)
	}

	backup, err := h.backupService.CreateJob(ctx, req.Name, domain.BackupType(req.Type), settings)
	if err != nil {
		respondError(c, err)
		return
	}

	h.backupService.StartJob(backup)

	c.JSON(http.StatusCreated, dto.ToBackupResponse(backup))
}

// DeleteBackup handles DELETE /admin/backup?id=
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		badRequest(c, "id query parameter is required")
		return
	}

	if err := h.backupService.DeleteJob(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
