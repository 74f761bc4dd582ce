package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/internal/pkg/response"
	"github.com/nevera/nevera_server/internal/service"
)

// JobsHandler exposes the scheduled campaigns to the external cron
// scheduler. Runs are synchronous; the scheduler's timeout bounds them.
type JobsHandler struct {
	alertService *service.AlertService
	log          zerolog.Logger
}

func NewJobsHandler(alertService *service.AlertService, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		alertService: alertService,
		log:          log,
	}
}

// DailyDigest runs the preferred-hour daily alert sweep. An optional
// ?hour=N targets one preferred hour instead of the local clock.
// POST /jobs/daily-digest
func (h *JobsHandler) DailyDigest(c *gin.Context) {
	hour := -1
	if raw := c.Query("hour"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 23 {
			response.ParamError(c, "hour must be 0-23")
			return
		}
		hour = parsed
	}

	summary := h.alertService.RunDailyDigest(c.Request.Context(), hour)
	response.Success(c, summary)
}

// UrgentSweep runs the critical/urgent-only sweep.
// POST /jobs/urgent-sweep
func (h *JobsHandler) UrgentSweep(c *gin.Context) {
	summary := h.alertService.RunUrgentSweep(c.Request.Context())
	response.Success(c, summary)
}

// WeeklyReport runs the engaged-user weekly recap.
// POST /jobs/weekly-report
func (h *JobsHandler) WeeklyReport(c *gin.Context) {
	summary := h.alertService.RunWeeklyReport(c.Request.Context())
	response.Success(c, summary)
}
