package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/models"
)

const userColumns = `id, email, ai_credits, role, created_at, updated_at`

func (q *Queries) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, q.q, &user,
		q.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewUserNotFoundError(userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts the user unless it already exists. It reports whether a
// row was created.
func (q *Queries) CreateUser(ctx context.Context, user *models.User) (bool, error) {
	now := q.now()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt, user.UpdatedAt = now, now

	res, err := q.q.ExecContext(ctx, q.rebind(`
		INSERT INTO users (id, email, ai_credits, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`), user.ID, user.Email, user.AICredits, user.Role, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return n == 1, nil
}

func (q *Queries) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := sqlx.GetContext(ctx, q.q, &balance,
		q.rebind(`SELECT ai_credits FROM users WHERE id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.NewUserNotFoundError(userID)
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// CompareAndDecrement subtracts amount from the balance only if the balance
// covers it, in one statement. It reports false when no row qualified, which
// covers both an insufficient balance and a missing user.
func (q *Queries) CompareAndDecrement(ctx context.Context, userID string, amount int) (bool, error) {
	res, err := q.q.ExecContext(ctx, q.rebind(`
		UPDATE users
		SET ai_credits = ai_credits - ?, updated_at = ?
		WHERE id = ? AND ai_credits >= ?
	`), amount, q.now(), userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to decrement credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to decrement credits: %w", err)
	}
	return n == 1, nil
}

// IncrementCredits adds amount unconditionally.
func (q *Queries) IncrementCredits(ctx context.Context, userID string, amount int) error {
	res, err := q.q.ExecContext(ctx, q.rebind(`
		UPDATE users
		SET ai_credits = ai_credits + ?, updated_at = ?
		WHERE id = ?
	`), amount, q.now(), userID)
	if err != nil {
		return fmt.Errorf("failed to increment credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment credits: %w", err)
	}
	if n == 0 {
		return apperrors.NewUserNotFoundError(userID)
	}
	return nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t *models.CreditTransaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = q.now()

	_, err := q.q.ExecContext(ctx, q.rebind(`
		INSERT INTO credit_transactions (id, user_id, amount, type, reason, related_job_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), t.ID, t.UserID, t.Amount, string(t.Type), t.Reason, t.RelatedJobID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert credit transaction: %w", err)
	}
	return nil
}

func (q *Queries) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.CreditTransaction, error) {
	txs := []models.CreditTransaction{}
	err := sqlx.SelectContext(ctx, q.q, &txs, q.rebind(`
		SELECT id, user_id, amount, type, reason, related_job_id, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return txs, nil
}

// ListTransactionsForJob returns the ledger entries that reference a job,
// oldest first.
func (q *Queries) ListTransactionsForJob(ctx context.Context, jobID string) ([]models.CreditTransaction, error) {
	txs := []models.CreditTransaction{}
	err := sqlx.SelectContext(ctx, q.q, &txs, q.rebind(`
		SELECT id, user_id, amount, type, reason, related_job_id, created_at
		FROM credit_transactions
		WHERE related_job_id = ?
		ORDER BY created_at ASC, id ASC
	`), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job transactions: %w", err)
	}
	return txs, nil
}

// MarkPaymentProcessed records a fulfilled checkout session. It reports false
// when the session was already recorded.
func (q *Queries) MarkPaymentProcessed(ctx context.Context, sessionID, userID string, credits int) (bool, error) {
	res, err := q.q.ExecContext(ctx, q.rebind(`
		INSERT INTO processed_payments (session_id, user_id, credits, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING
	`), sessionID, userID, credits, q.now())
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	return n == 1, nil
}
