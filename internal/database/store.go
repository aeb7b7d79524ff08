package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store owns the connection pool and hands out Queries bound either to the
// pool or to a transaction.
type Store struct {
	db *sqlx.DB

	// Now is the clock used for every timestamp the store writes.
	Now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		Now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Queries runs each statement on its own (autocommit).
func (s *Store) Queries() *Queries {
	return &Queries{q: s.db, now: s.Now}
}

// WithTx runs fn inside a single database transaction. fn's error rolls the
// transaction back and is returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Queries{q: tx, now: s.Now}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Queries implements every statement against either *sqlx.DB or *sqlx.Tx.
type Queries struct {
	q   sqlx.ExtContext
	now func() time.Time
}

func (q *Queries) rebind(query string) string {
	return q.q.Rebind(query)
}
