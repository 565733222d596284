package wallet

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidAmount       = errors.New("top up amount must be positive")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	b := &Balance{}
	err := r.db.GetContext(ctx, b, `SELECT external_id, credits FROM users WHERE external_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// AddTransaction moves the user's credits by amount and appends a wallet entry.
// A non-empty reference makes the call idempotent: when an entry with the same
// reference exists nothing is written and false is returned.
func (r *repository) AddTransaction(ctx context.Context, userID string, amount decimal.Decimal, txType, reference string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// The row lock serializes writers for this user, so the reference check
	// below cannot race with another credit for the same session.
	var credits decimal.Decimal
	err = tx.GetContext(ctx, &credits,
		`SELECT credits
		 FROM users
		 WHERE external_id = $1
		 FOR UPDATE`,
		userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, err
	}

	var ref *string
	if reference != "" {
		ref = &reference

		var exists bool
		err = tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM wallet_transactions WHERE reference = $1)`,
			reference,
		)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	newBalance := credits.Add(amount)
	if newBalance.IsNegative() {
		return false, ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET credits = $1, updated_at = NOW()
		 WHERE external_id = $2`,
		newBalance, userID,
	)
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (user_id, amount, type, balance_after, reference)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, amount, txType, newBalance, ref,
	)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Credit adds a paid top-up, keyed by the checkout session id.
func (r *repository) Credit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (bool, error) {
	if !amount.IsPositive() {
		return false, ErrInvalidAmount
	}
	return r.AddTransaction(ctx, userID, amount, "topup", reference)
}

func (r *repository) GetTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, user_id, amount, type, balance_after, reference, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txs, nil
}
