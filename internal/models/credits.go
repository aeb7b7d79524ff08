package models

import (
	"database/sql"
	"time"
)

type TransactionType string

const (
	TransactionTypeGrant     TransactionType = "grant"
	TransactionTypeDeduction TransactionType = "deduction"
	TransactionTypeRefund    TransactionType = "refund"
	TransactionTypePurchase  TransactionType = "purchase"
	TransactionTypeBonus     TransactionType = "bonus"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the owner of an AI credit balance. AICredits is authoritative;
// the transaction log is never summed to derive it.
type User struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	AICredits int       `db:"ai_credits"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type CreditTransaction struct {
	ID           string          `db:"id"`
	UserID       string          `db:"user_id"`
	Amount       int             `db:"amount"`
	Type         TransactionType `db:"type"`
	Reason       string          `db:"reason"`
	RelatedJobID sql.NullString  `db:"related_job_id"`
	CreatedAt    time.Time       `db:"created_at"`
}

// Balance is the result of a balance check.
type Balance struct {
	HasCredits bool
	Balance    int
}
