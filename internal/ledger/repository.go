package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByStripeID(ctx context.Context, stripeID string) (*Transaction, error) {
	t := &Transaction{}
	err := r.db.GetContext(ctx, t, `
		SELECT id, user_id, amount, type, description, status, stripe_id, metadata, created_at
		FROM transactions
		WHERE stripe_id = $1
	`, stripeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) InsertIfAbsent(ctx context.Context, t *Transaction) (int64, error) {
	var id int64
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transactions (user_id, amount, type, description, status, stripe_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stripe_id) DO NOTHING
		RETURNING id
	`, t.UserID, t.Amount, t.Type, t.Description, t.Status, t.StripeID, t.Metadata, t.CreatedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) ExistingStripeIDs(ctx context.Context, stripeIDs []string) (map[string]bool, error) {
	found := make(map[string]bool, len(stripeIDs))
	if len(stripeIDs) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(`SELECT stripe_id FROM transactions WHERE stripe_id IN (?)`, stripeIDs)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}

func (r *repository) SumByType(ctx context.Context, status Status, since *time.Time) ([]TypeTotal, error) {
	totals := []TypeTotal{}
	err := r.db.SelectContext(ctx, &totals, `
		SELECT type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count
		FROM transactions
		WHERE status = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
		GROUP BY type
		ORDER BY type
	`, status, since)
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repository) Recent(ctx context.Context, since *time.Time, limit int) ([]RecentTransaction, error) {
	rows := []RecentTransaction{}
	if limit <= 0 {
		return rows, nil
	}

	err := r.db.SelectContext(ctx, &rows, `
		SELECT t.id, t.user_id, t.amount, t.type, t.description, t.status, t.stripe_id, t.metadata, t.created_at,
		       u.email AS user_email, u.name AS user_name
		FROM transactions t
		LEFT JOIN users u ON u.external_id = t.user_id
		WHERE ($1::timestamptz IS NULL OR t.created_at >= $1)
		ORDER BY t.created_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, user_id, amount, type, description, status, stripe_id, metadata, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return txs, nil
}
