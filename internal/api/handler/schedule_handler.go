package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/backupd/internal/api/dto"
	"github.com/jurisdesk/backupd/internal/core/domain"
	"github.com/jurisdesk/backupd/internal/core/service"
)

type ScheduleHandler struct {
	scheduleService *service.ScheduleService
}

func NewScheduleHandler(scheduleService *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleService: scheduleService,
	}
}

// ListSchedules handles GET /admin/backup/schedule
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.scheduleService.ListSchedules(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.ScheduleResponse, 0, len(schedules))
	for _, schedule := range schedules {
		item := dto.ToScheduleResponse(schedule)

		// Embed the settings profile and the backup that owns it. A store
		// error fails the request; serving a schedule stripped of its
		// settings would misrepresent what the scheduler will run.
		backup, err := h.scheduleService.SettingsProfile(c.Request.Context(), schedule.SettingsID)
		switch {
		case err == nil:
			resp := dto.ToBackupResponse(backup)
			item.Backup = &resp
			item.Settings = resp.Settings
		case service.IsNotFound(err):
			// Profile deletion cascades the schedule, so this only shows
			// up mid-delete; return the schedule bare rather than failing.
		default:
			respondError(c, err)
			return
		}

		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

// UpsertSchedule handles POST /admin/backup/schedule. A second POST for the
// same settingsId updates the existing schedule instead of creating another.
func (h *ScheduleHandler) UpsertSchedule(c *gin.Context) {
	var req dto.UpsertScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	schedule, err := h.scheduleService.UpsertSchedule(
		c.Request.Context(),
		req.SettingsID,
		req.Enabled,
		domain.ScheduleFrequency(req.Frequency),
		req.TimeOfDay,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToScheduleResponse(schedule))
}

// DeleteSchedule handles DELETE /admin/backup/schedule?id=
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		badRequest(c, "id query parameter is required")
		return
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "Invalid schedule ID")
		return
	}

	if err := h.scheduleService.DeleteSchedule(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}
