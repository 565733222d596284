package listing

import (
	"context"
	"time"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Listing, error)
	SetPromotion(ctx context.Context, id int64, tier Tier, expiresAt time.Time) error
	ExpirePromotions(ctx context.Context, now time.Time) (int64, error)
}
