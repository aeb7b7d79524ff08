// Package credits implements the per-user AI credit ledger. The balance on
// the user row is authoritative; every mutation also appends a
// CreditTransaction in the same database transaction for display and audit.
package credits

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/models"
)

// UnlimitedBalance is reported by CheckBalance in unlimited-credits mode.
const UnlimitedBalance = 999

type Options struct {
	// UnlimitedCredits short-circuits CheckBalance with a synthetic balance.
	// Used in development only.
	UnlimitedCredits bool
	// SignupBonus is granted once when a user row is first created.
	SignupBonus int
}

type Ledger struct {
	store  *database.Store
	opts   Options
	logger *slog.Logger
}

func NewLedger(store *database.Store, opts Options, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, opts: opts, logger: logger}
}

// CheckBalance is read-only. In unlimited mode storage is not touched.
func (l *Ledger) CheckBalance(ctx context.Context, userID string) (models.Balance, error) {
	if l.opts.UnlimitedCredits {
		return models.Balance{HasCredits: true, Balance: UnlimitedBalance}, nil
	}

	balance, err := l.store.Queries().GetBalance(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}
	return models.Balance{HasCredits: balance > 0, Balance: balance}, nil
}

// Deduct removes amount from the balance in one conditional update and logs
// the deduction. A balance below amount yields InsufficientCredits and leaves
// the balance untouched.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return apperrors.NewValidationError("deduct amount must be positive")
	}

	return l.store.WithTx(ctx, func(q *database.Queries) error {
		if err := DecrementWith(ctx, q, userID, amount); err != nil {
			return err
		}
		return q.InsertTransaction(ctx, &models.CreditTransaction{
			UserID: userID,
			Amount: -amount,
			Type:   models.TransactionTypeDeduction,
			Reason: reason,
		})
	})
}

// DecrementWith runs the conditional decrement on q so callers can fold it
// into a larger transaction (job reservation). Zero affected rows means the
// balance was short or the user is missing; the two are told apart here.
func DecrementWith(ctx context.Context, q *database.Queries, userID string, amount int) error {
	ok, err := q.CompareAndDecrement(ctx, userID, amount)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := q.GetUser(ctx, userID); err != nil {
		return err
	}
	return apperrors.NewInsufficientCreditsError(amount)
}

// Refund returns amount to the user unconditionally and logs it.
func (l *Ledger) Refund(ctx context.Context, userID string, amount int, reason, jobID string) error {
	if amount <= 0 {
		return apperrors.NewValidationError("refund amount must be positive")
	}

	return l.store.WithTx(ctx, func(q *database.Queries) error {
		return RefundWith(ctx, q, userID, amount, reason, jobID)
	})
}

// RefundWith performs the refund on q.
func RefundWith(ctx context.Context, q *database.Queries, userID string, amount int, reason, jobID string) error {
	if err := q.IncrementCredits(ctx, userID, amount); err != nil {
		return err
	}
	return q.InsertTransaction(ctx, &models.CreditTransaction{
		UserID:       userID,
		Amount:       amount,
		Type:         models.TransactionTypeRefund,
		Reason:       reason,
		RelatedJobID: nullString(jobID),
	})
}

// Grant adds credits for an administrative grant, a purchase or a bonus and
// returns the new balance.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, txType models.TransactionType, reason string) (int, error) {
	if amount <= 0 {
		return 0, apperrors.NewValidationError("grant amount must be positive")
	}

	var balance int
	err := l.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		balance, err = GrantWith(ctx, q, userID, amount, txType, reason)
		return err
	})
	if err != nil {
		return 0, err
	}

	l.logger.Info("credits granted", "user_id", userID, "amount", amount, "type", txType, "balance", balance)
	return balance, nil
}

// GrantWith performs the grant on q and returns the resulting balance.
func GrantWith(ctx context.Context, q *database.Queries, userID string, amount int, txType models.TransactionType, reason string) (int, error) {
	if err := q.IncrementCredits(ctx, userID, amount); err != nil {
		return 0, err
	}
	if err := q.InsertTransaction(ctx, &models.CreditTransaction{
		UserID: userID,
		Amount: amount,
		Type:   txType,
		Reason: reason,
	}); err != nil {
		return 0, err
	}
	return q.GetBalance(ctx, userID)
}

// EnsureUser creates the user row on first sight and applies the signup
// bonus exactly once.
func (l *Ledger) EnsureUser(ctx context.Context, userID, email string) error {
	var created bool
	err := l.store.WithTx(ctx, func(q *database.Queries) error {
		var err error
		created, err = q.CreateUser(ctx, &models.User{ID: userID, Email: email})
		if err != nil || !created || l.opts.SignupBonus <= 0 {
			return err
		}
		_, err = GrantWith(ctx, q, userID, l.opts.SignupBonus, models.TransactionTypeBonus, "Welcome bonus")
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		l.logger.Info("user created", "user_id", userID, "bonus", l.opts.SignupBonus)
	}
	return nil
}

// History lists the user's ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.store.Queries().ListTransactions(ctx, userID, limit, offset)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
