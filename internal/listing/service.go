package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classifieds/internal/logger"
	"classifieds/internal/metrics"
)

var (
	ErrListingNotFound = errors.New("listing not found")
	ErrUnknownTier     = errors.New("unknown promotion tier")
)

// Applier is the only writer of listing promotion fields.
type Applier struct {
	repo Repository
	now  func() time.Time
}

func NewApplier(repo Repository) *Applier {
	return &Applier{repo: repo, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (a *Applier) WithClock(now func() time.Time) *Applier {
	a.now = now
	return a
}

// ApplyPromotion sets the tier and restarts the promotion window from now.
// Calling it again with the same tier renews the window rather than stacking it.
func (a *Applier) ApplyPromotion(ctx context.Context, listingID int64, tier Tier) error {
	if _, err := FindTier(string(tier)); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	expiresAt := a.now().UTC().Add(PromotionDuration)
	if err := a.repo.SetPromotion(ctx, listingID, tier, expiresAt); err != nil {
		return fmt.Errorf("apply promotion to listing %d: %w", listingID, err)
	}

	logger.Info("promotion applied",
		"listing_id", listingID,
		"tier", string(tier),
		"expires_at", expiresAt,
	)
	metrics.RecordPromotion(string(tier))
	return nil
}

// ExpireStale clears promotions whose window has passed so that is_promoted
// keeps matching the tier and expiry.
func (a *Applier) ExpireStale(ctx context.Context) (int64, error) {
	n, err := a.repo.ExpirePromotions(ctx, a.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire promotions: %w", err)
	}
	if n > 0 {
		logger.Info("expired promotions", "count", n)
	}
	return n, nil
}

func (a *Applier) Get(ctx context.Context, listingID int64) (*Listing, error) {
	return a.repo.GetByID(ctx, listingID)
}
