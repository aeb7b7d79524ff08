package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/credits"
	"wedding-ai-backend/internal/generation"
	"wedding-ai-backend/internal/middleware"
	"wedding-ai-backend/internal/models"
)

// JobStarter launches a reserved job in the background.
type JobStarter interface {
	Start(job *models.GenerationJob, req models.CreateGenerationRequest)
}

type GenerationsHandler struct {
	service *generation.Service
	ledger  *credits.Ledger
	runner  JobStarter
}

func NewGenerationsHandler(service *generation.Service, ledger *credits.Ledger, runner JobStarter) *GenerationsHandler {
	return &GenerationsHandler{service: service, ledger: ledger, runner: runner}
}

// CreateGeneration godoc
// @Summary     Start an AI photo generation
// @Description Reserves image_count × cost credits and starts generating in the background
// @Tags        generations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body models.CreateGenerationRequest true "Generation"
// @Success     202 {object} models.GenerationAcceptedResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Router      /api/v1/generations [post]
func (h *GenerationsHandler) CreateGeneration(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()
	job, err := h.service.Reserve(ctx, userID, req.ImageCount, req.Style)
	if apperrors.IsErrorType(err, apperrors.ErrTypeUserNotFound) {
		if err = h.ledger.EnsureUser(ctx, userID, c.GetString(middleware.UserEmailKey)); err == nil {
			job, err = h.service.Reserve(ctx, userID, req.ImageCount, req.Style)
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.runner.Start(job, req)

	c.JSON(http.StatusAccepted, models.GenerationAcceptedResponse{
		JobID:           job.ID,
		Status:          string(job.Status),
		TotalImages:     job.TotalImages,
		CreditsReserved: job.CreditsReserved,
	})
}

// ListGenerations godoc
// @Summary     List generation jobs
// @Tags        generations
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query int false "Page size (max 100)"
// @Param       offset query int false "Offset"
// @Success     200 {object} models.GenerationListResponse
// @Router      /api/v1/generations [get]
func (h *GenerationsHandler) ListGenerations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.service.ListJobs(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := models.GenerationListResponse{Jobs: make([]models.GenerationJobResponse, 0, len(jobs))}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, models.NewJobResponse(&jobs[i], nil))
	}
	c.JSON(http.StatusOK, resp)
}

// GetGeneration godoc
// @Summary     Get a generation job
// @Tags        generations
// @Produce     json
// @Security    BearerAuth
// @Param       job_id path string true "Job ID"
// @Success     200 {object} models.GenerationJobResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/v1/generations/{job_id} [get]
func (h *GenerationsHandler) GetGeneration(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	job, images, err := h.service.GetJob(c.Request.Context(), userID, c.Param("job_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewJobResponse(job, images))
}
