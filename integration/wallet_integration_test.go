package integration_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classifieds/internal/wallet"
)

func TestWalletCredit_SameReferenceOnce(t *testing.T) {
	conn := setupTestDB(t)
	createUser(t, conn, "user_w", "wallet@example.com")
	repo := wallet.NewRepository(conn)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.Credit(ctx, "user_w", decimal.RequireFromString("25.00"), "cs_topup")
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, ok := range results {
		if ok {
			applied++
		}
	}
	assert.Equal(t, 1, applied)

	b, err := repo.GetBalance(ctx, "user_w")
	require.NoError(t, err)
	assert.True(t, b.Credits.Equal(decimal.RequireFromString("25")), b.Credits.String())

	txns, err := repo.GetTransactions(ctx, "user_w", 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "topup", txns[0].Type)
	assert.True(t, txns[0].BalanceAfter.Equal(decimal.RequireFromString("25")))
}

func TestWalletInsufficientBalance(t *testing.T) {
	conn := setupTestDB(t)
	createUser(t, conn, "user_poor", "poor@example.com")
	repo := wallet.NewRepository(conn)

	_, err := repo.AddTransaction(context.Background(), "user_poor", decimal.RequireFromString("-5"), "spend", "")
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
}

func TestWalletCredit_UnknownUser(t *testing.T) {
	conn := setupTestDB(t)
	repo := wallet.NewRepository(conn)

	_, err := repo.Credit(context.Background(), "nobody", decimal.RequireFromString("5"), "cs_x")
	assert.ErrorIs(t, err, wallet.ErrUserNotFound)
}
