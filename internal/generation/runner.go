package generation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"wedding-ai-backend/internal/models"
	"wedding-ai-backend/internal/provider"
)

// ImageGenerator produces one image per call.
type ImageGenerator interface {
	Generate(ctx context.Context, req provider.GenerateRequest) (*provider.Image, error)
}

// ImageStore persists generated images and returns their storage path and
// public URL.
type ImageStore interface {
	UploadGeneratedImage(userID, jobID string, position int, data []byte, contentType string) (string, string, error)
}

// Runner drives a reserved job to a terminal status.
type Runner struct {
	service     *Service
	generator   ImageGenerator
	store       ImageStore
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

func NewRunner(service *Service, generator ImageGenerator, store ImageStore, concurrency int, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		service:     service,
		generator:   generator,
		store:       store,
		concurrency: concurrency,
		timeout:     30 * time.Minute,
		logger:      logger,
	}
}

// Start runs the job in the background, detached from the request context.
func (r *Runner) Start(job *models.GenerationJob, req models.CreateGenerationRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		_, err := r.Run(ctx, job, req)
		switch {
		case errors.Is(err, ErrJobNotPending):
			r.logger.Info("generation job skipped", "job_id", job.ID, "reason", err)
		case err != nil:
			// The sweeper finalizes whatever is left behind.
			r.logger.Error("generation job run failed", "job_id", job.ID, "error", err)
		}
	}()
}

// Run generates every image of the job with bounded concurrency, records
// each outcome and finalizes the job. Provider errors become failed images.
// A job that is no longer PENDING is not generated and ErrJobNotPending is
// returned.
func (r *Runner) Run(ctx context.Context, job *models.GenerationJob, req models.CreateGenerationRequest) (*FinalizeResult, error) {
	if err := r.service.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, ErrJobNotPending) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to start job: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < job.TotalImages; i++ {
		position := i
		g.Go(func() error {
			return r.generateOne(gctx, job, req, position)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return r.service.Finalize(ctx, job.ID)
}

// generateOne only returns bookkeeping errors; a failed image is a recorded
// outcome, not an error.
func (r *Runner) generateOne(ctx context.Context, job *models.GenerationJob, req models.CreateGenerationRequest, position int) error {
	source := ""
	if len(req.SourceImageURLs) > 0 {
		source = req.SourceImageURLs[position%len(req.SourceImageURLs)]
	}

	img, err := r.generator.Generate(ctx, provider.GenerateRequest{
		Style:          job.Style,
		Prompt:         req.Prompt,
		SourceImageURL: source,
		ReferenceURLs:  req.SourceImageURLs,
		Seed:           position + 1,
	})
	if err != nil {
		return r.recordFailure(ctx, job, position, err)
	}

	path, url, err := r.store.UploadGeneratedImage(job.UserID.String, job.ID, position, img.Data, img.ContentType)
	if err != nil {
		return r.recordFailure(ctx, job, position, err)
	}

	accepted, err := r.service.RecordImageResult(ctx, job.ID, true, "")
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}
	return r.service.SaveImage(ctx, &models.GenerationImage{
		JobID:       job.ID,
		Position:    position,
		Status:      models.ImageStatusSucceeded,
		StoragePath: sql.NullString{String: path, Valid: true},
		StorageURL:  sql.NullString{String: url, Valid: true},
	})
}

func (r *Runner) recordFailure(ctx context.Context, job *models.GenerationJob, position int, cause error) error {
	r.logger.Warn("image generation failed", "job_id", job.ID, "position", position, "error", cause)

	accepted, err := r.service.RecordImageResult(ctx, job.ID, false, cause.Error())
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}
	return r.service.SaveImage(ctx, &models.GenerationImage{
		JobID:        job.ID,
		Position:     position,
		Status:       models.ImageStatusFailed,
		ErrorMessage: sql.NullString{String: cause.Error(), Valid: true},
	})
}
