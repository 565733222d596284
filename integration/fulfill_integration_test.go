package integration_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classifieds/internal/intent"
	"classifieds/internal/ledger"
	"classifieds/internal/listing"
	"classifieds/internal/membership"
	"classifieds/internal/payment"
	"classifieds/internal/reconcile"
	"classifieds/internal/wallet"
)

func TestFulfill_PromotionAcrossEntryPoints(t *testing.T) {
	conn := setupTestDB(t)
	createUser(t, conn, "user_1", "seller@example.com")
	listingID := createListing(t, conn, "user_1", "Road bike")

	recorder := ledger.NewRecorder(ledger.NewRepository(conn))
	fulfiller := reconcile.NewFulfiller(
		listing.NewApplier(listing.NewRepository(conn)),
		membership.NewService(membership.NewRepository(conn)),
		wallet.NewRepository(conn),
		recorder,
	)

	session := &payment.Session{
		ID:            "cs_int_promo",
		PaymentStatus: payment.StatusPaid,
		AmountTotal:   100000,
		Currency:      "eur",
		Created:       time.Now().UTC().Add(-time.Minute),
		Metadata: intent.Encode(intent.Promotion{
			UserID:    "user_1",
			ListingID: strconv.FormatInt(listingID, 10),
			Tier:      string(listing.TierHomepage),
		}),
	}
	ctx := context.Background()

	first, err := fulfiller.Fulfill(ctx, session, reconcile.SourceVerify)
	require.NoError(t, err)
	assert.True(t, first.Recorded)

	second, err := fulfiller.Fulfill(ctx, session, reconcile.SourceWebhook)
	require.NoError(t, err)
	assert.False(t, second.Recorded)
	assert.Equal(t, first.TransactionID, second.TransactionID)

	var rows int
	require.NoError(t, conn.Get(&rows, `SELECT COUNT(*) FROM transactions WHERE stripe_id = $1`, session.ID))
	assert.Equal(t, 1, rows)

	l, err := listing.NewRepository(conn).GetByID(ctx, listingID)
	require.NoError(t, err)
	assert.Equal(t, listing.TierHomepage, l.PromotionTier)
	assert.True(t, l.IsPromoted)
	require.NotNil(t, l.PromotionExpiresAt)
	assert.True(t, l.PromotionExpiresAt.After(time.Now()))
}

func TestFulfill_TopupCreditsOnce(t *testing.T) {
	conn := setupTestDB(t)
	createUser(t, conn, "user_2", "buyer@example.com")

	walletRepo := wallet.NewRepository(conn)
	fulfiller := reconcile.NewFulfiller(
		listing.NewApplier(listing.NewRepository(conn)),
		membership.NewService(membership.NewRepository(conn)),
		walletRepo,
		ledger.NewRecorder(ledger.NewRepository(conn)),
	)

	session := &payment.Session{
		ID:            "cs_int_topup",
		PaymentStatus: payment.StatusPaid,
		AmountTotal:   2500,
		Currency:      "eur",
		Metadata: map[string]string{
			"type":   "TOPUP",
			"userId": "user_2",
			"amount": "25.00",
		},
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fulfiller.Fulfill(ctx, session, reconcile.SourceWebhook)
		require.NoError(t, err)
	}

	b, err := walletRepo.GetBalance(ctx, "user_2")
	require.NoError(t, err)
	assert.Equal(t, "25", b.Credits.String())
}
