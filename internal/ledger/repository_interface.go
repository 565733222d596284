package ledger

import (
	"context"
	"time"
)

type Repository interface {
	FindByStripeID(ctx context.Context, stripeID string) (*Transaction, error)
	// InsertIfAbsent returns the new id, or 0 when a row with the same
	// stripe id already exists.
	InsertIfAbsent(ctx context.Context, tx *Transaction) (int64, error)
	ExistingStripeIDs(ctx context.Context, stripeIDs []string) (map[string]bool, error)
	SumByType(ctx context.Context, status Status, since *time.Time) ([]TypeTotal, error)
	Recent(ctx context.Context, since *time.Time, limit int) ([]RecentTransaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
}
