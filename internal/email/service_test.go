package email

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"classifieds/internal/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

func newTestService(rdb *redis.Client) *Service {
	svc := New(rdb, "noreply@classifieds.test", "Classifieds", "127.0.0.1", "1", "", "")
	svc.retryIn = 0
	return svc
}

func TestSend(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	svc := newTestService(db)

	err := svc.Send(ctx, "user@example.com", "generic", "Hello", "Test body")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetErr(assert.AnError)

	svc := newTestService(db)

	err := svc.Send(ctx, "user@example.com", "generic", "Hello", "Test body")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendReceipt(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	svc := newTestService(db)

	valid := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	err := svc.SendReceipt(ctx, Receipt{
		To:        "seller@example.com",
		Kind:      ReceiptPromotion,
		Item:      "Homepage",
		Reference: "cs_test_1",
		Amount:    decimal.NewFromInt(1000),
		Currency:  "eur",
		ValidTo:   &valid,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenderReceipt(t *testing.T) {
	tests := []struct {
		kind    ReceiptKind
		subject string
		body    string
	}{
		{ReceiptPromotion, "Your listing promotion is live", "promoted with Homepage"},
		{ReceiptMembership, "Your membership is active", "Your Homepage membership"},
		{ReceiptTopup, "Credits added to your wallet", "25.50 credits were added"},
		{"other", "Payment received", "We received your payment."},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			subject, body := renderReceipt(Receipt{
				Kind:      tt.kind,
				Item:      "Homepage",
				Reference: "cs_1",
				Amount:    decimal.RequireFromString("25.5"),
				Currency:  "eur",
			})
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, body, tt.body)
			assert.Contains(t, body, "Amount: 25.50 eur")
			assert.Contains(t, body, "Reference: cs_1")
			assert.NotContains(t, body, "Valid until")
		})
	}
}

func TestQueueLength(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectLLen("emails").SetVal(5)

	svc := newTestService(db)

	assert.Equal(t, int64(5), svc.QueueLength(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_RequeuesOnDeliveryFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	job, err := json.Marshal(EmailJob{To: "user@example.com", Kind: "topup", Subject: "s", Body: "b"})
	require.NoError(t, err)

	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(job)})
	mock.ExpectLLen("emails").SetVal(0)
	mock.Regexp().ExpectLPush("emails", `.*`).SetVal(1)

	newTestService(db).processNext(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_MovesToFailedQueueAfterMaxTries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	job, err := json.Marshal(EmailJob{To: "user@example.com", Kind: "topup", Tries: 2})
	require.NoError(t, err)

	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", string(job)})
	mock.ExpectLLen("emails").SetVal(0)
	mock.Regexp().ExpectLPush("emails:failed", `.*`).SetVal(1)

	newTestService(db).processNext(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_DropsMalformedJob(t *testing.T) {
	db, mock := redismock.NewClientMock()
	ctx := context.Background()

	mock.ExpectBRPop(2*time.Second, "emails").SetVal([]string{"emails", "{broken"})
	mock.ExpectLLen("emails").SetVal(0)

	newTestService(db).processNext(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}
