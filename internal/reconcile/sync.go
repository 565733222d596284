package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"classifieds/internal/intent"
	"classifieds/internal/ledger"
	"classifieds/internal/logger"
	"classifieds/internal/metrics"
	"classifieds/internal/payment"

	"github.com/bsm/redislock"
)

const (
	DefaultSyncLimit = 100
	MaxSyncLimit     = 1000

	syncLockKey = "reconcile:sync"
	syncLockTTL = 5 * time.Minute
)

var ErrSyncInProgress = errors.New("sync already running")

type SyncResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// Locker guards against two sync runs overlapping.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb redislock.RedisClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrSyncInProgress
		}
		return nil, err
	}
	return lock.Release, nil
}

// Syncer backfills ledger entries for paid sessions that neither the
// verifier nor the webhook recorded. It never re-applies effects.
type Syncer struct {
	processor payment.Processor
	ledger    Ledger
	locker    Locker
}

func NewSyncer(processor payment.Processor, l Ledger) *Syncer {
	return &Syncer{processor: processor, ledger: l}
}

func (s *Syncer) WithLocker(l Locker) *Syncer {
	s.locker = l
	return s
}

func (s *Syncer) SyncTransactions(ctx context.Context, limit int, since *time.Time) (*SyncResult, error) {
	if limit <= 0 {
		limit = DefaultSyncLimit
	}
	if limit > MaxSyncLimit {
		limit = MaxSyncLimit
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, syncLockKey, syncLockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("sync lock release failed", "error", err)
			}
		}()
	}

	sessions, err := s.processor.ListSessions(ctx, payment.ListParams{Limit: limit, Since: since})
	if err != nil {
		return nil, err
	}

	paid := make([]payment.Session, 0, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Paid() {
			paid = append(paid, sess)
			ids = append(ids, sess.ID)
		}
	}

	known, err := s.ledger.Existing(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing transactions: %w", err)
	}

	res := &SyncResult{Success: true}
	for i := range paid {
		sess := &paid[i]
		if known[sess.ID] {
			continue
		}

		entry, reason := backfillEntry(sess)
		if reason != "" {
			res.Skipped++
			metrics.RecordSyncSkip(reason)
			logger.Warn("sync skipped session", "session_id", sess.ID, "reason", reason)
			continue
		}

		_, created, err := s.ledger.Record(ctx, entry)
		if err != nil {
			res.Skipped++
			metrics.RecordSyncSkip("ledger_error")
			logger.Error("sync ledger write failed", "session_id", sess.ID, "error", err)
			continue
		}
		if created {
			res.Count++
			metrics.RecordSyncBackfill()
		}
	}

	logger.Info("sync finished",
		"listed", len(sessions),
		"paid", len(paid),
		"backfilled", res.Count,
		"skipped", res.Skipped,
	)
	return res, nil
}

// backfillEntry builds the ledger entry for a session, or names the reason
// it cannot be attributed.
func backfillEntry(s *payment.Session) (ledger.Entry, string) {
	userID := strings.TrimSpace(s.Metadata[intent.KeyUserID])
	if userID == "" {
		userID = strings.TrimSpace(s.ClientReferenceID)
	}
	if userID == "" {
		return ledger.Entry{}, "missing_user"
	}

	typ, desc := classify(s)
	return ledger.Entry{
		StripeID:    s.ID,
		UserID:      userID,
		Amount:      s.Amount(),
		Type:        typ,
		Description: desc,
		Status:      ledger.StatusCompleted,
		Metadata:    s.Metadata,
		CreatedAt:   s.Created,
	}, ""
}

// classify prefers the session metadata. Sessions created outside the
// checkout flow, such as payment links, fall back to keywords in the line
// item descriptions; that result is best effort only.
func classify(s *payment.Session) (ledger.Type, string) {
	if in, err := intent.Decode(s.Metadata); err == nil {
		return describe(in)
	}

	switch intent.ParseKind(s.Metadata[intent.KeyType]) {
	case intent.KindPromotion:
		return ledger.TypePromotion, "Listing promotion"
	case intent.KindTopup:
		return ledger.TypeTopup, "Wallet top-up"
	case intent.KindSubscription:
		return ledger.TypeSubscription, "Membership"
	}

	for _, li := range s.LineItems {
		d := li.Description
		switch {
		case strings.Contains(d, "Promotion"):
			return ledger.TypePromotion, d
		case strings.Contains(d, "Subscription"), strings.Contains(d, "Plan"):
			return ledger.TypeSubscription, d
		case strings.Contains(d, "Credits"), strings.Contains(d, "Top-up"):
			return ledger.TypeTopup, d
		}
	}

	if len(s.LineItems) > 0 && s.LineItems[0].Description != "" {
		return ledger.TypeUnknown, s.LineItems[0].Description
	}
	return ledger.TypeUnknown, "Stripe payment " + s.ID
}
