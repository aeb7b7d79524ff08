package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/credits"
	"wedding-ai-backend/internal/middleware"
	"wedding-ai-backend/internal/models"
)

type CreditsHandler struct {
	ledger *credits.Ledger
}

func NewCreditsHandler(ledger *credits.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// GetBalance godoc
// @Summary     Get credit balance
// @Description Returns the caller's AI credit balance. The user row is created on first sight.
// @Tags        credits
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.BalanceResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /api/v1/credits [get]
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	balance, err := h.ledger.CheckBalance(c.Request.Context(), userID)
	if apperrors.IsErrorType(err, apperrors.ErrTypeUserNotFound) {
		if err = h.ledger.EnsureUser(c.Request.Context(), userID, c.GetString(middleware.UserEmailKey)); err == nil {
			balance, err = h.ledger.CheckBalance(c.Request.Context(), userID)
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		Balance:    balance.Balance,
		HasCredits: balance.HasCredits,
	})
}

// ListTransactions godoc
// @Summary     List credit transactions
// @Description Returns the caller's credit ledger entries, newest first
// @Tags        credits
// @Produce     json
// @Security    BearerAuth
// @Param       limit  query int false "Page size (max 100)"
// @Param       offset query int false "Offset"
// @Success     200 {object} models.TransactionListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /api/v1/credits/transactions [get]
func (h *CreditsHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.ledger.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := models.TransactionListResponse{Transactions: make([]models.TransactionResponse, 0, len(txs))}
	for i := range txs {
		resp.Transactions = append(resp.Transactions, models.NewTransactionResponse(&txs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GrantCredits godoc
// @Summary     Grant credits
// @Description Adds credits to a user's balance (admin only)
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body models.GrantCreditsRequest true "Grant"
// @Success     200 {object} models.GrantCreditsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /api/v1/admin/credits/grant [post]
func (h *CreditsHandler) GrantCredits(c *gin.Context) {
	var req models.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "Granted by " + c.GetString(middleware.UserIDKey)
	}

	balance, err := h.ledger.Grant(c.Request.Context(), req.UserID, req.Amount, models.TransactionTypeGrant, reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GrantCreditsResponse{UserID: req.UserID, Balance: balance})
}
