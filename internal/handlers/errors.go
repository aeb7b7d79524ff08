package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/middleware"
	"wedding-ai-backend/internal/models"
)

// respondError writes err as an ErrorResponse. AppErrors keep their status;
// anything else is a 500 whose cause is recorded on the context for logging.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(apperrors.GetStatusCode(err), models.ErrorResponse{
			Error:   appErr.Message,
			Message: appErr.Details,
		})
		return
	}

	c.Error(err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
}

func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return "", false
	}
	return userID, true
}
