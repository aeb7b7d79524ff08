package models

import "time"

type BalanceResponse struct {
	Balance    int  `json:"balance"`
	HasCredits bool `json:"has_credits"`
}

type TransactionResponse struct {
	ID           string    `json:"id"`
	Amount       int       `json:"amount"`
	Type         string    `json:"type"`
	Reason       string    `json:"reason"`
	RelatedJobID string    `json:"related_job_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type GenerationAcceptedResponse struct {
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	TotalImages     int    `json:"total_images"`
	CreditsReserved int    `json:"credits_reserved"`
}

type GenerationJobResponse struct {
	JobID           string          `json:"job_id"`
	Status          string          `json:"status"`
	Style           string          `json:"style"`
	TotalImages     int             `json:"total_images"`
	CompletedImages int             `json:"completed_images"`
	FailedImages    int             `json:"failed_images"`
	CreditsReserved int             `json:"credits_reserved"`
	CreditsUsed     int             `json:"credits_used"`
	Images          []ImageResponse `json:"images,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

type ImageResponse struct {
	Position   int    `json:"position"`
	Status     string `json:"status"`
	StorageURL string `json:"storage_url,omitempty"`
}

type GenerationListResponse struct {
	Jobs []GenerationJobResponse `json:"jobs"`
}

type SweepResponse struct {
	Success   bool      `json:"success"`
	Processed int       `json:"processed"`
	Refunded  int       `json:"refunded"`
	Timestamp time.Time `json:"timestamp"`
}

type GrantCreditsResponse struct {
	UserID  string `json:"user_id"`
	Balance int    `json:"balance"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// NewJobResponse flattens a job row (and optionally its images) for the API.
func NewJobResponse(job *GenerationJob, images []GenerationImage) GenerationJobResponse {
	resp := GenerationJobResponse{
		JobID:           job.ID,
		Status:          string(job.Status),
		Style:           job.Style,
		TotalImages:     job.TotalImages,
		CompletedImages: job.CompletedImages,
		FailedImages:    job.FailedImages,
		CreditsReserved: job.CreditsReserved,
		CreditsUsed:     job.CreditsUsed,
		CreatedAt:       job.CreatedAt,
	}
	if job.CompletedAt.Valid {
		completedAt := job.CompletedAt.Time
		resp.CompletedAt = &completedAt
	}
	for _, img := range images {
		ir := ImageResponse{Position: img.Position, Status: string(img.Status)}
		if img.StorageURL.Valid {
			ir.StorageURL = img.StorageURL.String
		}
		resp.Images = append(resp.Images, ir)
	}
	return resp
}

func NewTransactionResponse(tx *CreditTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        tx.ID,
		Amount:    tx.Amount,
		Type:      string(tx.Type),
		Reason:    tx.Reason,
		CreatedAt: tx.CreatedAt,
	}
	if tx.RelatedJobID.Valid {
		resp.RelatedJobID = tx.RelatedJobID.String
	}
	return resp
}
