package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	AddTransaction(ctx context.Context, userID string, amount decimal.Decimal, txType, reference string) (bool, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (bool, error)
	GetTransactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, error)
}
