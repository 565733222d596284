package membership

import (
	"context"
	"fmt"
	"time"

	"classifieds/internal/intent"
	"classifieds/internal/logger"
)

type Service interface {
	Upgrade(ctx context.Context, in intent.Subscription) (*Plan, error)
	Cancel(ctx context.Context, userID string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// NewServiceWithClock is NewService with an injectable time source.
func NewServiceWithClock(repo Repository, now func() time.Time) Service {
	return &service{repo: repo, now: now}
}

// Upgrade activates the plan for one period from now. Replaying the same
// intent restarts the period instead of adding a second one.
func (s *service) Upgrade(ctx context.Context, in intent.Subscription) (*Plan, error) {
	plan, err := FindPlan(in.Plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, in.Plan)
	}

	expiresAt, err := ExpiresAt(s.now().UTC(), in.Duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, in.Duration)
	}

	if err := s.repo.SetMembership(ctx, in.UserID, plan.Tier, StatusActive, &expiresAt); err != nil {
		return nil, fmt.Errorf("upgrade membership for %s: %w", in.UserID, err)
	}

	logger.Info("membership upgraded",
		"user_id", in.UserID,
		"plan", plan.Tier,
		"expires_at", expiresAt,
	)
	return &plan, nil
}

func (s *service) Cancel(ctx context.Context, userID string) error {
	if err := s.repo.SetStatus(ctx, userID, StatusCancelled); err != nil {
		return fmt.Errorf("cancel membership for %s: %w", userID, err)
	}
	logger.Info("membership cancelled", "user_id", userID)
	return nil
}
