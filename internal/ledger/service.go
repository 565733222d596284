package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classifieds/internal/logger"
	"classifieds/internal/metrics"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingStripeID = errors.New("stripe id is required")
	ErrInvalidAmount   = errors.New("amount must not be negative")
)

// Recorder appends transactions keyed by the processor session id. At most
// one row exists per session id; repeated calls return the existing id.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

func (r *Recorder) Record(ctx context.Context, e Entry) (int64, bool, error) {
	if e.StripeID == "" {
		return 0, false, ErrMissingStripeID
	}
	if e.Amount.IsNegative() {
		return 0, false, ErrInvalidAmount
	}

	existing, err := r.repo.FindByStripeID(ctx, e.StripeID)
	if err == nil {
		metrics.RecordLedgerWrite(false)
		return existing.ID, false, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return 0, false, fmt.Errorf("lookup transaction: %w", err)
	}

	t, err := r.build(e)
	if err != nil {
		return 0, false, err
	}

	id, err := r.repo.InsertIfAbsent(ctx, t)
	if err != nil {
		return 0, false, fmt.Errorf("insert transaction: %w", err)
	}
	if id != 0 {
		metrics.RecordLedgerWrite(true)
		logger.Info("transaction recorded",
			"stripe_id", e.StripeID,
			"user_id", t.UserID,
			"type", t.Type,
			"amount", t.Amount.StringFixed(2),
		)
		return id, true, nil
	}

	// Another writer inserted between the lookup and the insert.
	winner, err := r.repo.FindByStripeID(ctx, e.StripeID)
	if err != nil {
		return 0, false, fmt.Errorf("reload transaction: %w", err)
	}
	metrics.RecordLedgerWrite(false)
	return winner.ID, false, nil
}

func (r *Recorder) build(e Entry) (*Transaction, error) {
	md := e.Metadata
	if md == nil {
		md = map[string]string{}
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	userID := e.UserID
	if userID == "" {
		userID = UnknownUser
	}
	typ := e.Type
	if typ == "" {
		typ = TypeUnknown
	}
	status := e.Status
	if status == "" {
		status = StatusCompleted
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	stripeID := e.StripeID
	return &Transaction{
		UserID:      userID,
		Amount:      e.Amount,
		Type:        typ,
		Description: e.Description,
		Status:      status,
		StripeID:    &stripeID,
		Metadata:    types.JSONText(raw),
		CreatedAt:   createdAt.UTC(),
	}, nil
}

// RevenueStats reports completed revenue since the given time, plus the
// latest transactions joined with their owners.
func (r *Recorder) RevenueStats(ctx context.Context, since *time.Time, recent int) (*RevenueStats, error) {
	totals, err := r.repo.SumByType(ctx, StatusCompleted, since)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	stats := ComputeRevenue(totals)

	rows, err := r.repo.Recent(ctx, since, recent)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	stats.RecentTransactions = rows
	return stats, nil
}

// Existing reports which of the given session ids are already recorded.
func (r *Recorder) Existing(ctx context.Context, stripeIDs []string) (map[string]bool, error) {
	return r.repo.ExistingStripeIDs(ctx, stripeIDs)
}

func (r *Recorder) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Transaction, error) {
	return r.repo.ListByUser(ctx, userID, limit, offset)
}

// ComputeRevenue splits gross totals into VAT and net and groups them into
// buckets. The buckets always sum back to the total.
func ComputeRevenue(totals []TypeTotal) *RevenueStats {
	stats := &RevenueStats{RecentTransactions: []RecentTransaction{}}

	for _, t := range totals {
		stats.TotalRevenue = stats.TotalRevenue.Add(t.Total)
		stats.TransactionCount += t.Count

		switch t.Type {
		case TypePromotion:
			stats.ByType.Promotions = stats.ByType.Promotions.Add(t.Total)
		case TypeSubscription:
			stats.ByType.Subscriptions = stats.ByType.Subscriptions.Add(t.Total)
		case TypeTopup:
			stats.ByType.Topups = stats.ByType.Topups.Add(t.Total)
		default:
			stats.ByType.Other = stats.ByType.Other.Add(t.Total)
		}
	}

	stats.VATRevenue = stats.TotalRevenue.Mul(VATRate).Round(2)
	stats.NetRevenue = stats.TotalRevenue.Sub(stats.VATRevenue)
	return stats
}

// Sum adds the buckets back together.
func (b Buckets) Sum() decimal.Decimal {
	return b.Promotions.Add(b.Subscriptions).Add(b.Topups).Add(b.Other)
}
