package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/models"
)

const jobColumns = `id, user_id, status, style, total_images, completed_images, failed_images,
	credits_reserved, credits_used, error_message, created_at, updated_at, completed_at`

func (q *Queries) InsertJob(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := q.now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	_, err := q.q.ExecContext(ctx, q.rebind(`
		INSERT INTO generation_jobs (
			id, user_id, status, style, total_images, completed_images, failed_images,
			credits_reserved, credits_used, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, 0, ?, 0, ?, ?)
	`), job.ID, job.UserID, string(job.Status), job.Style, job.TotalImages,
		job.CreditsReserved, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create generation job: %w", err)
	}
	return nil
}

func (q *Queries) GetJob(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := sqlx.GetContext(ctx, q.q, &job,
		q.rebind(`SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`), jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewJobNotFoundError(jobID)
		}
		return nil, fmt.Errorf("failed to get generation job: %w", err)
	}
	return &job, nil
}

// GetJobForUser scopes the lookup to the owner; another user's job is
// reported as not found.
func (q *Queries) GetJobForUser(ctx context.Context, jobID, userID string) (*models.GenerationJob, error) {
	var job models.GenerationJob
	err := sqlx.GetContext(ctx, q.q, &job,
		q.rebind(`SELECT `+jobColumns+` FROM generation_jobs WHERE id = ? AND user_id = ?`), jobID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewJobNotFoundError(jobID)
		}
		return nil, fmt.Errorf("failed to get generation job: %w", err)
	}
	return &job, nil
}

func (q *Queries) ListJobsByUser(ctx context.Context, userID string, limit, offset int) ([]models.GenerationJob, error) {
	jobs := []models.GenerationJob{}
	err := sqlx.SelectContext(ctx, q.q, &jobs, q.rebind(`
		SELECT `+jobColumns+`
		FROM generation_jobs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation jobs: %w", err)
	}
	return jobs, nil
}

// StaleCursor is the (created_at, id) position of the last job of a page.
type StaleCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAfter returns the cursor positioned at job.
func CursorAfter(job models.GenerationJob) *StaleCursor {
	return &StaleCursor{CreatedAt: job.CreatedAt, ID: job.ID}
}

// ListStaleJobs returns non-terminal jobs created before cutoff, ordered by
// (created_at, id). A non-nil after resumes past that position.
func (q *Queries) ListStaleJobs(ctx context.Context, cutoff time.Time, after *StaleCursor, limit int) ([]models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE status IN ('PENDING', 'PROCESSING') AND created_at < ?`
	args := []interface{}{cutoff.UTC()}
	if after != nil {
		query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, after.CreatedAt.UTC(), after.CreatedAt.UTC(), after.ID)
	}
	query += `
		ORDER BY created_at ASC, id ASC
		LIMIT ?`
	args = append(args, limit)

	jobs := []models.GenerationJob{}
	err := sqlx.SelectContext(ctx, q.q, &jobs, q.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	return jobs, nil
}

// MarkJobProcessing moves a PENDING job to PROCESSING. It reports false if
// the job was not PENDING.
func (q *Queries) MarkJobProcessing(ctx context.Context, jobID string) (bool, error) {
	res, err := q.q.ExecContext(ctx, q.rebind(`
		UPDATE generation_jobs
		SET status = 'PROCESSING', updated_at = ?
		WHERE id = ? AND status = 'PENDING'
	`), q.now(), jobID)
	if err != nil {
		return false, fmt.Errorf("failed to mark job processing: %w", err)
	}
	return affectedOne(res)
}

// RecordImageSuccess counts one delivered image and charges cost against the
// reservation. The update only applies while the job is non-terminal, has an
// outstanding image and the reservation still covers the cost.
func (q *Queries) RecordImageSuccess(ctx context.Context, jobID string, cost int) (bool, error) {
	res, err := q.q.ExecContext(ctx, q.rebind(`
		UPDATE generation_jobs
		SET completed_images = completed_images + 1,
			credits_used = credits_used + ?,
			status = 'PROCESSING',
			updated_at = ?
		WHERE id = ?
			AND status IN ('PENDING', 'PROCESSING')
			AND completed_images + failed_images < total_images
			AND credits_used + ? <= credits_reserved
	`), cost, q.now(), jobID, cost)
	if err != nil {
		return false, fmt.Errorf("failed to record image success: %w", err)
	}
	return affectedOne(res)
}

// RecordImageFailure counts one failed image and charges cost against the
// reservation under the same guards as RecordImageSuccess.
func (q *Queries) RecordImageFailure(ctx context.Context, jobID string, cost int, errorMessage string) (bool, error) {
	res, err := q.q.ExecContext(ctx, q.rebind(`
		UPDATE generation_jobs
		SET failed_images = failed_images + 1,
			credits_used = credits_used + ?,
			status = 'PROCESSING',
			error_message = ?,
			updated_at = ?
		WHERE id = ?
			AND status IN ('PENDING', 'PROCESSING')
			AND completed_images + failed_images < total_images
			AND credits_used + ? <= credits_reserved
	`), cost, errorMessage, q.now(), jobID, cost)
	if err != nil {
		return false, fmt.Errorf("failed to record image failure: %w", err)
	}
	return affectedOne(res)
}

// FinalizeJob moves a job to a terminal status, but only if it is still
// non-terminal and its counters still match the snapshot the status was
// computed from. A false result means another writer got there first.
func (q *Queries) FinalizeJob(ctx context.Context, snapshot *models.GenerationJob, status models.JobStatus) (bool, error) {
	now := q.now()
	res, err := q.q.ExecContext(ctx, q.rebind(`
		UPDATE generation_jobs
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
			AND status IN ('PENDING', 'PROCESSING')
			AND completed_images = ?
			AND failed_images = ?
			AND credits_used = ?
	`), string(status), now, now, snapshot.ID,
		snapshot.CompletedImages, snapshot.FailedImages, snapshot.CreditsUsed)
	if err != nil {
		return false, fmt.Errorf("failed to finalize job: %w", err)
	}
	return affectedOne(res)
}

func (q *Queries) InsertImage(ctx context.Context, img *models.GenerationImage) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	img.CreatedAt = q.now()

	_, err := q.q.ExecContext(ctx, q.rebind(`
		INSERT INTO generation_images (id, job_id, position, status, storage_path, storage_url, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), img.ID, img.JobID, img.Position, string(img.Status), img.StoragePath, img.StorageURL,
		img.ErrorMessage, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create generation image: %w", err)
	}
	return nil
}

func (q *Queries) ListImages(ctx context.Context, jobID string) ([]models.GenerationImage, error) {
	images := []models.GenerationImage{}
	err := sqlx.SelectContext(ctx, q.q, &images, q.rebind(`
		SELECT id, job_id, position, status, storage_path, storage_url, error_message, created_at
		FROM generation_images
		WHERE job_id = ?
		ORDER BY position ASC
	`), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation images: %w", err)
	}
	return images, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
