package membership

import (
	"context"
	"time"
)

type Repository interface {
	SetMembership(ctx context.Context, userID, tier string, status Status, expiresAt *time.Time) error
	SetStatus(ctx context.Context, userID string, status Status) error
}
