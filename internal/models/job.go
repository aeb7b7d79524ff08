package models

import (
	"database/sql"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusPartial    JobStatus = "PARTIAL"
	JobStatusFailed     JobStatus = "FAILED"
)

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	}
	return false
}

// GenerationJob is one batch generation request. Rows are never deleted.
type GenerationJob struct {
	ID              string         `db:"id"`
	UserID          sql.NullString `db:"user_id"`
	Status          JobStatus      `db:"status"`
	Style           string         `db:"style"`
	TotalImages     int            `db:"total_images"`
	CompletedImages int            `db:"completed_images"`
	FailedImages    int            `db:"failed_images"`
	CreditsReserved int            `db:"credits_reserved"`
	CreditsUsed     int            `db:"credits_used"`
	ErrorMessage    sql.NullString `db:"error_message"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	CompletedAt     sql.NullTime   `db:"completed_at"`
}

// UnusedCredits is the part of the reservation that was not consumed.
func (j *GenerationJob) UnusedCredits() int {
	if unused := j.CreditsReserved - j.CreditsUsed; unused > 0 {
		return unused
	}
	return 0
}

type ImageStatus string

const (
	ImageStatusSucceeded ImageStatus = "succeeded"
	ImageStatusFailed    ImageStatus = "failed"
)

type GenerationImage struct {
	ID           string         `db:"id"`
	JobID        string         `db:"job_id"`
	Position     int            `db:"position"`
	Status       ImageStatus    `db:"status"`
	StoragePath  sql.NullString `db:"storage_path"`
	StorageURL   sql.NullString `db:"storage_url"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
}
