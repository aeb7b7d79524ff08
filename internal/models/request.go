package models

type CreateGenerationRequest struct {
	// Style is the wedding look to apply, e.g. "hanbok", "classic-studio", "outdoor-garden".
	Style string `json:"style" binding:"required" example:"classic-studio"`
	// ImageCount is how many photos to generate; each costs CREDIT_COST_PER_IMAGE credits.
	ImageCount int `json:"image_count" binding:"required,min=1" example:"4"`
	// SourceImageURLs are the couple's reference photos already uploaded to storage.
	SourceImageURLs []string `json:"source_image_urls" binding:"required,min=1"`
	Prompt          string   `json:"prompt,omitempty"`
}

type GrantCreditsRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int    `json:"amount" binding:"required,min=1"`
	Reason string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
