// Package payments turns completed Stripe checkout sessions into credit
// purchases.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/credits"
	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/models"
)

// Checkout session metadata keys set when the session is created.
const (
	MetadataUserID  = "user_id"
	MetadataCredits = "credits"
)

type Fulfiller struct {
	store         *database.Store
	webhookSecret string
	logger        *slog.Logger
}

func NewFulfiller(store *database.Store, webhookSecret string, logger *slog.Logger) *Fulfiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fulfiller{store: store, webhookSecret: webhookSecret, logger: logger}
}

// FulfillmentResult reports what a webhook delivery did.
type FulfillmentResult struct {
	EventType string
	SessionID string
	UserID    string
	Credits   int
	Balance   int
	// Duplicate is set when the session was already fulfilled.
	Duplicate bool
	// Ignored is set for event types this service does not act on.
	Ignored bool
}

// HandleWebhook verifies the Stripe signature and fulfills
// checkout.session.completed events.
func (f *Fulfiller) HandleWebhook(ctx context.Context, payload []byte, signature string) (*FulfillmentResult, error) {
	if f.webhookSecret == "" {
		return nil, apperrors.NewAppError(apperrors.ErrTypeForbidden, http.StatusForbidden, "stripe webhooks are not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, f.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeUnauthorized, http.StatusUnauthorized, "invalid stripe signature", err.Error())
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return &FulfillmentResult{EventType: string(event.Type), Ignored: true}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid checkout session payload: %v", err))
	}

	result, err := f.Fulfill(ctx, &sess)
	if err != nil {
		return nil, err
	}
	result.EventType = string(event.Type)
	return result, nil
}

// Fulfill grants the purchased credits once per checkout session.
func (f *Fulfiller) Fulfill(ctx context.Context, sess *stripe.CheckoutSession) (*FulfillmentResult, error) {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return &FulfillmentResult{SessionID: sess.ID, Ignored: true}, nil
	}

	userID := sess.Metadata[MetadataUserID]
	if userID == "" {
		userID = sess.ClientReferenceID
	}
	if userID == "" {
		return nil, apperrors.NewValidationError("checkout session has no user")
	}

	amount, err := strconv.Atoi(sess.Metadata[MetadataCredits])
	if err != nil || amount <= 0 {
		return nil, apperrors.NewValidationError("checkout session has no credit amount")
	}

	result := &FulfillmentResult{SessionID: sess.ID, UserID: userID, Credits: amount}
	err = f.store.WithTx(ctx, func(q *database.Queries) error {
		fresh, err := q.MarkPaymentProcessed(ctx, sess.ID, userID, amount)
		if err != nil {
			return err
		}
		if !fresh {
			result.Duplicate = true
			return nil
		}
		result.Balance, err = credits.GrantWith(ctx, q, userID, amount, models.TransactionTypePurchase,
			fmt.Sprintf("Purchased %d credits (checkout %s)", amount, sess.ID))
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		f.logger.Info("checkout session already fulfilled", "session_id", sess.ID)
	} else {
		f.logger.Info("credits purchased", "session_id", sess.ID, "user_id", userID,
			"credits", amount, "balance", result.Balance)
	}
	return result, nil
}
