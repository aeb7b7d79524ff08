// Package generation owns the lifecycle of AI wedding photo jobs:
// credit reservation, per-image bookkeeping and terminal resolution with
// refund of the unused reservation.
package generation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/credits"
	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/models"
)

// finalizeAttempts bounds the optimistic retry loop in Finalize.
const finalizeAttempts = 5

// Event names published while a job runs.
const (
	EventJobStarted     = "job_started"
	EventImageCompleted = "image_completed"
	EventImageFailed    = "image_failed"
	EventJobFinalized   = "job_finalized"
)

// ErrJobNotPending is returned by MarkProcessing when the job has already left
// PENDING, for example because the sweeper finalized it.
var ErrJobNotPending = errors.New("job is not pending")

// EventPublisher receives job progress notifications. Delivery is best-effort.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, job *models.GenerationJob, event string, payload map[string]interface{}) error
}

type Options struct {
	CostPerImage    int
	MaxImagesPerJob int
}

type Service struct {
	store     *database.Store
	opts      Options
	publisher EventPublisher
	logger    *slog.Logger
}

func NewService(store *database.Store, opts Options, publisher EventPublisher, logger *slog.Logger) *Service {
	if opts.CostPerImage < 1 {
		opts.CostPerImage = 1
	}
	if opts.MaxImagesPerJob < 1 {
		opts.MaxImagesPerJob = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, opts: opts, publisher: publisher, logger: logger}
}

// Reserve deducts imageCount × cost from the user and creates the PENDING job
// in one transaction. InsufficientCredits is returned before anything is
// written.
func (s *Service) Reserve(ctx context.Context, userID string, imageCount int, style string) (*models.GenerationJob, error) {
	if imageCount < 1 || imageCount > s.opts.MaxImagesPerJob {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("image_count must be between 1 and %d", s.opts.MaxImagesPerJob))
	}
	style = strings.TrimSpace(style)
	if style == "" {
		return nil, apperrors.NewValidationError("style is required")
	}

	reserved := imageCount * s.opts.CostPerImage
	job := &models.GenerationJob{
		UserID:          sql.NullString{String: userID, Valid: true},
		Status:          models.JobStatusPending,
		Style:           style,
		TotalImages:     imageCount,
		CreditsReserved: reserved,
	}

	err := s.store.WithTx(ctx, func(q *database.Queries) error {
		if err := credits.DecrementWith(ctx, q, userID, reserved); err != nil {
			return err
		}
		if err := q.InsertJob(ctx, job); err != nil {
			return err
		}
		return q.InsertTransaction(ctx, &models.CreditTransaction{
			UserID:       userID,
			Amount:       -reserved,
			Type:         models.TransactionTypeDeduction,
			Reason:       fmt.Sprintf("AI photo generation: %d %s image(s)", imageCount, style),
			RelatedJobID: sql.NullString{String: job.ID, Valid: true},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("generation job reserved",
		"job_id", job.ID, "user_id", userID, "images", imageCount, "credits_reserved", reserved)
	return job, nil
}

// MarkProcessing moves a PENDING job to PROCESSING. Any other current status
// yields ErrJobNotPending and leaves the job untouched.
func (s *Service) MarkProcessing(ctx context.Context, jobID string) error {
	ok, err := s.store.Queries().MarkJobProcessing(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		job, err := s.store.Queries().GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s", ErrJobNotPending, jobID, job.Status)
	}

	job, err := s.store.Queries().GetJob(ctx, jobID)
	if err == nil {
		s.publish(ctx, job, EventJobStarted, map[string]interface{}{"total_images": job.TotalImages})
	}
	return nil
}

// RecordImageResult applies one image outcome. Either outcome charges one
// image's cost against the reservation. It reports false when the job no longer accepts results (terminal, or every
// image already accounted for).
func (s *Service) RecordImageResult(ctx context.Context, jobID string, success bool, errorMessage string) (bool, error) {
	q := s.store.Queries()

	var (
		ok  bool
		err error
	)
	if success {
		ok, err = q.RecordImageSuccess(ctx, jobID, s.opts.CostPerImage)
	} else {
		ok, err = q.RecordImageFailure(ctx, jobID, s.opts.CostPerImage, errorMessage)
	}
	if err != nil {
		return false, err
	}

	job, getErr := q.GetJob(ctx, jobID)
	if getErr != nil {
		return false, getErr
	}
	if !ok {
		s.logger.Warn("image result ignored", "job_id", jobID, "status", job.Status, "success", success)
		return false, nil
	}

	event := EventImageCompleted
	if !success {
		event = EventImageFailed
	}
	s.publish(ctx, job, event, map[string]interface{}{
		"completed_images": job.CompletedImages,
		"failed_images":    job.FailedImages,
		"total_images":     job.TotalImages,
	})
	return true, nil
}

// FinalizeResult describes what Finalize did.
type FinalizeResult struct {
	Job      *models.GenerationJob
	Refunded int
	// AlreadyFinal is set when the job was terminal before this call; nothing
	// was written.
	AlreadyFinal bool
}

// Finalize resolves the job's terminal status and refunds the unused
// reservation to its owner. The status change, the balance increment and the
// refund ledger entry commit together, and the status change only applies
// to a non-terminal job whose counters have not moved, so concurrent
// finalizers refund once.
func (s *Service) Finalize(ctx context.Context, jobID string) (*FinalizeResult, error) {
	for attempt := 0; attempt < finalizeAttempts; attempt++ {
		var (
			result *FinalizeResult
			raced  bool
		)

		err := s.store.WithTx(ctx, func(q *database.Queries) error {
			job, err := q.GetJob(ctx, jobID)
			if err != nil {
				return err
			}
			if job.Status.IsTerminal() {
				result = &FinalizeResult{Job: job, AlreadyFinal: true}
				return nil
			}

			status := ResolveStatus(job.CompletedImages, job.TotalImages)
			ok, err := q.FinalizeJob(ctx, job, status)
			if err != nil {
				return err
			}
			if !ok {
				raced = true
				return nil
			}

			unused := job.UnusedCredits()
			refunded := 0
			if unused > 0 && job.UserID.Valid {
				reason := refundReason(job, unused)
				if err := credits.RefundWith(ctx, q, job.UserID.String, unused, reason, job.ID); err != nil {
					return err
				}
				refunded = unused
			}

			finalized, err := q.GetJob(ctx, jobID)
			if err != nil {
				return err
			}
			result = &FinalizeResult{Job: finalized, Refunded: refunded}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if raced {
			continue
		}

		if !result.AlreadyFinal {
			s.logger.Info("generation job finalized",
				"job_id", jobID,
				"status", result.Job.Status,
				"completed_images", result.Job.CompletedImages,
				"failed_images", result.Job.FailedImages,
				"refunded", result.Refunded)
			s.publish(ctx, result.Job, EventJobFinalized, map[string]interface{}{
				"status":           string(result.Job.Status),
				"completed_images": result.Job.CompletedImages,
				"failed_images":    result.Job.FailedImages,
				"refunded":         result.Refunded,
			})
		}
		return result, nil
	}

	return nil, fmt.Errorf("failed to finalize job %s: counters kept changing", jobID)
}

// GetJob returns the user's job with its images.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*models.GenerationJob, []models.GenerationImage, error) {
	q := s.store.Queries()
	job, err := q.GetJobForUser(ctx, jobID, userID)
	if err != nil {
		return nil, nil, err
	}
	images, err := q.ListImages(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, images, nil
}

func (s *Service) ListJobs(ctx context.Context, userID string, limit, offset int) ([]models.GenerationJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Queries().ListJobsByUser(ctx, userID, limit, offset)
}

// SaveImage records where a generated image (or its failure) ended up.
func (s *Service) SaveImage(ctx context.Context, img *models.GenerationImage) error {
	return s.store.Queries().InsertImage(ctx, img)
}

func (s *Service) publish(ctx context.Context, job *models.GenerationJob, event string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJobEvent(ctx, job, event, payload); err != nil {
		s.logger.Warn("failed to publish job event", "job_id", job.ID, "event", event, "error", err)
	}
}

func refundReason(job *models.GenerationJob, unused int) string {
	unprocessed := job.TotalImages - job.CompletedImages - job.FailedImages
	return fmt.Sprintf("Refund of %d unused credit(s): %d of %d image(s) never processed (%s)",
		unused, unprocessed, job.TotalImages, strings.ToLower(string(ResolveStatus(job.CompletedImages, job.TotalImages))))
}
