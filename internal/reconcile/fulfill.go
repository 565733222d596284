// Package reconcile ties paid checkout sessions back to domain effects and
// the transaction ledger. The browser return, the webhook and the sync job
// all go through the same fulfillment routine.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"classifieds/internal/email"
	"classifieds/internal/intent"
	"classifieds/internal/ledger"
	"classifieds/internal/listing"
	"classifieds/internal/logger"
	"classifieds/internal/membership"
	"classifieds/internal/metrics"
	"classifieds/internal/payment"
	"classifieds/internal/user"

	"github.com/shopspring/decimal"
)

const (
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
)

var (
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrInvalidListingID    = errors.New("invalid listing id in metadata")
)

type PromotionApplier interface {
	ApplyPromotion(ctx context.Context, listingID int64, tier listing.Tier) error
}

type WalletCrediter interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reference string) (bool, error)
}

type Ledger interface {
	Record(ctx context.Context, e ledger.Entry) (int64, bool, error)
	Existing(ctx context.Context, stripeIDs []string) (map[string]bool, error)
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, r email.Receipt) error
}

// UserFinder resolves the receipt address when the session carries none.
type UserFinder interface {
	FindByExternalID(ctx context.Context, externalID string) (*user.User, error)
}

// Outcome reports what a fulfillment did.
type Outcome struct {
	Intent        intent.Intent
	TransactionID int64
	Recorded      bool
	LedgerErr     error
}

type Fulfiller struct {
	promotions  PromotionApplier
	memberships membership.Service
	wallet      WalletCrediter
	ledger      Ledger
	receipts    ReceiptSender
	users       UserFinder
}

func NewFulfiller(promotions PromotionApplier, memberships membership.Service, wallet WalletCrediter, l Ledger) *Fulfiller {
	return &Fulfiller{
		promotions:  promotions,
		memberships: memberships,
		wallet:      wallet,
		ledger:      l,
	}
}

// WithReceipts enables best-effort purchase confirmation e-mails.
func (f *Fulfiller) WithReceipts(r ReceiptSender) *Fulfiller {
	f.receipts = r
	return f
}

func (f *Fulfiller) WithUsers(u UserFinder) *Fulfiller {
	f.users = u
	return f
}

// Fulfill applies the purchased effect and then records the ledger entry.
// Metadata errors are returned before anything is written. An effect that can
// never be applied is recorded as FAILED so that it stays out of revenue and
// the sync job does not backfill it as completed. A ledger failure after the
// effect is logged and reported in the outcome only, since the sync job
// backfills missing entries.
func (f *Fulfiller) Fulfill(ctx context.Context, s *payment.Session, source string) (*Outcome, error) {
	if !s.Paid() {
		return nil, ErrPaymentNotCompleted
	}

	in, err := intent.Decode(s.Metadata)
	if err != nil {
		return nil, err
	}

	receipt, err := f.apply(ctx, s, in)
	if err != nil {
		if isPermanent(err) {
			f.recordFailed(ctx, s, in, source, err)
		}
		return nil, err
	}

	out := &Outcome{Intent: in}
	entry := entryFor(s, in)
	out.TransactionID, out.Recorded, out.LedgerErr = f.ledger.Record(ctx, entry)
	if out.LedgerErr != nil {
		logger.Error("ledger write failed after fulfillment",
			"session_id", s.ID,
			"source", source,
			"error", out.LedgerErr,
		)
	}

	metrics.RecordFulfillment(source, string(entry.Type))
	logger.Info("session fulfilled",
		"session_id", s.ID,
		"source", source,
		"type", string(entry.Type),
		"recorded", out.Recorded,
	)

	if out.Recorded && receipt != nil {
		f.sendReceipt(ctx, s, in.User(), receipt)
	}
	return out, nil
}

func (f *Fulfiller) recordFailed(ctx context.Context, s *payment.Session, in intent.Intent, source string, cause error) {
	entry := entryFor(s, in)
	entry.Status = ledger.StatusFailed
	entry.Description += " [not fulfilled]"
	if _, _, err := f.ledger.Record(ctx, entry); err != nil {
		logger.Error("failed fulfillment not recorded",
			"session_id", s.ID,
			"source", source,
			"error", err,
		)
		return
	}
	logger.Warn("paid session recorded as failed",
		"session_id", s.ID,
		"source", source,
		"cause", cause,
	)
}

func (f *Fulfiller) apply(ctx context.Context, s *payment.Session, in intent.Intent) (*email.Receipt, error) {
	switch v := in.(type) {
	case intent.Promotion:
		listingID, err := strconv.ParseInt(v.ListingID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidListingID, v.ListingID)
		}
		if err := f.promotions.ApplyPromotion(ctx, listingID, listing.Tier(v.Tier)); err != nil {
			return nil, err
		}
		name := v.Tier
		if t, err := listing.FindTier(v.Tier); err == nil {
			name = t.Name
		}
		validTo := time.Now().UTC().Add(listing.PromotionDuration)
		return &email.Receipt{Kind: email.ReceiptPromotion, Item: name, ValidTo: &validTo}, nil

	case intent.Subscription:
		plan, err := f.memberships.Upgrade(ctx, v)
		if err != nil {
			return nil, err
		}
		return &email.Receipt{Kind: email.ReceiptMembership, Item: plan.Name}, nil

	case intent.Topup:
		if _, err := f.wallet.Credit(ctx, v.UserID, v.Amount, s.ID); err != nil {
			return nil, err
		}
		return &email.Receipt{Kind: email.ReceiptTopup, Item: "credits"}, nil
	}
	return nil, fmt.Errorf("unsupported intent %T", in)
}

func (f *Fulfiller) sendReceipt(ctx context.Context, s *payment.Session, userID string, r *email.Receipt) {
	if f.receipts == nil {
		return
	}
	r.To = s.CustomerEmail
	if r.To == "" && f.users != nil && userID != "" {
		if u, err := f.users.FindByExternalID(ctx, userID); err == nil {
			r.To = u.Email
		}
	}
	if r.To == "" {
		return
	}
	r.Reference = s.ID
	r.Amount = s.Amount()
	r.Currency = s.Currency
	if err := f.receipts.SendReceipt(ctx, *r); err != nil {
		logger.Warn("receipt not queued", "session_id", s.ID, "error", err)
	}
}

func entryFor(s *payment.Session, in intent.Intent) ledger.Entry {
	e := ledger.Entry{
		StripeID:  s.ID,
		UserID:    in.User(),
		Amount:    s.Amount(),
		Status:    ledger.StatusCompleted,
		Metadata:  s.Metadata,
		CreatedAt: s.Created,
	}
	if e.UserID == "" {
		e.UserID = s.ClientReferenceID
	}
	e.Type, e.Description = describe(in)
	return e
}

func describe(in intent.Intent) (ledger.Type, string) {
	switch v := in.(type) {
	case intent.Promotion:
		return ledger.TypePromotion, fmt.Sprintf("Listing promotion: %s (listing %s)", v.Tier, v.ListingID)
	case intent.Subscription:
		return ledger.TypeSubscription, fmt.Sprintf("Membership: %s (%s)", v.Plan, v.Duration)
	case intent.Topup:
		return ledger.TypeTopup, fmt.Sprintf("Wallet top-up: %s", v.Amount.StringFixed(2))
	}
	return ledger.TypeUnknown, "Stripe payment"
}
