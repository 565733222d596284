package membership

import (
	"context"
	"testing"
	"time"

	"classifieds/internal/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) SetMembership(ctx context.Context, userID, tier string, status Status, expiresAt *time.Time) error {
	return m.Called(ctx, userID, tier, status, expiresAt).Error(0)
}

func (m *MockRepository) SetStatus(ctx context.Context, userID string, status Status) error {
	return m.Called(ctx, userID, status).Error(0)
}

func TestUpgrade(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		in        intent.Subscription
		expiresAt time.Time
		expectErr error
	}{
		{
			name:      "monthly",
			in:        intent.Subscription{UserID: "u1", Plan: "PRO", Duration: "monthly"},
			expiresAt: now.AddDate(0, 1, 0),
		},
		{
			name:      "yearly",
			in:        intent.Subscription{UserID: "u1", Plan: "BASIC", Duration: "yearly"},
			expiresAt: now.AddDate(1, 0, 0),
		},
		{
			name:      "unknown plan",
			in:        intent.Subscription{UserID: "u1", Plan: "PLATINUM", Duration: "monthly"},
			expectErr: ErrUnknownPlan,
		},
		{
			name:      "unknown duration",
			in:        intent.Subscription{UserID: "u1", Plan: "PRO", Duration: "weekly"},
			expectErr: ErrUnknownDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			if tt.expectErr == nil {
				expires := tt.expiresAt
				repo.On("SetMembership", mock.Anything, tt.in.UserID, tt.in.Plan, StatusActive, &expires).Return(nil)
			}

			svc := NewServiceWithClock(repo, func() time.Time { return now })
			plan, err := svc.Upgrade(context.Background(), tt.in)

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				repo.AssertNotCalled(t, "SetMembership", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in.Plan, plan.Tier)
			repo.AssertExpectations(t)
		})
	}
}

func TestUpgrade_UserMissing(t *testing.T) {
	repo := new(MockRepository)
	repo.On("SetMembership", mock.Anything, "ghost", "PRO", StatusActive, mock.Anything).Return(ErrUserNotFound)

	_, err := NewService(repo).Upgrade(context.Background(), intent.Subscription{UserID: "ghost", Plan: "PRO", Duration: "monthly"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("SetStatus", mock.Anything, "u1", StatusCancelled).Return(nil)

	require.NoError(t, NewService(repo).Cancel(context.Background(), "u1"))
	repo.AssertExpectations(t)
}

func TestPlanPrice(t *testing.T) {
	plan, err := FindPlan("BUSINESS")
	require.NoError(t, err)

	monthly, err := plan.Price(DurationMonthly)
	require.NoError(t, err)
	assert.Equal(t, "4000", monthly.String())

	_, err = plan.Price("daily")
	assert.ErrorIs(t, err, ErrUnknownDuration)
}
