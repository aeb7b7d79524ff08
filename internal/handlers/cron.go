package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"wedding-ai-backend/internal/models"
	"wedding-ai-backend/internal/sweeper"
)

type CronHandler struct {
	sweeper *sweeper.Sweeper
}

func NewCronHandler(s *sweeper.Sweeper) *CronHandler {
	return &CronHandler{sweeper: s}
}

// CleanupStaleJobs godoc
// @Summary     Sweep stale generation jobs
// @Description Finalizes jobs stuck in PENDING or PROCESSING and refunds unused credits
// @Tags        cron
// @Produce     json
// @Param       Authorization header string true "Bearer CRON_SECRET"
// @Success     200 {object} models.SweepResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /api/cron/cleanup-stale-jobs [get]
func (h *CronHandler) CleanupStaleJobs(c *gin.Context) {
	result, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "stale job sweep failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.SweepResponse{
		Success:   true,
		Processed: result.Processed,
		Refunded:  result.Refunded,
		Timestamp: time.Now().UTC(),
	})
}
