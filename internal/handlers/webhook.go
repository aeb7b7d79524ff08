package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"wedding-ai-backend/internal/models"
	"wedding-ai-backend/internal/payments"
)

// Stripe signs payloads well under this size.
const maxWebhookBody = 65536

type WebhookHandler struct {
	fulfiller *payments.Fulfiller
}

func NewWebhookHandler(fulfiller *payments.Fulfiller) *WebhookHandler {
	return &WebhookHandler{fulfiller: fulfiller}
}

// HandleStripeWebhook godoc
// @Summary     Stripe webhook
// @Description Grants purchased credits for completed checkout sessions
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "Stripe signature"
// @Success     200 {object} map[string]interface{}
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /api/webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read body", Message: err.Error()})
		return
	}

	result, err := h.fulfiller.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"type":      result.EventType,
		"duplicate": result.Duplicate,
		"ignored":   result.Ignored,
	})
}
