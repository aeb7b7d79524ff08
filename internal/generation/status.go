package generation

import "wedding-ai-backend/internal/models"

// ResolveStatus is the terminal resolution rule shared by the normal
// completion path and the stale job sweeper.
func ResolveStatus(completedImages, totalImages int) models.JobStatus {
	switch {
	case completedImages <= 0:
		return models.JobStatusFailed
	case completedImages >= totalImages:
		return models.JobStatusCompleted
	default:
		return models.JobStatusPartial
	}
}
