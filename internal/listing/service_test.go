package listing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Listing), args.Error(1)
}

func (m *MockRepository) SetPromotion(ctx context.Context, id int64, tier Tier, expiresAt time.Time) error {
	return m.Called(ctx, id, tier, expiresAt).Error(0)
}

func (m *MockRepository) ExpirePromotions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// memRepository keeps listings in a map so repeated applications can be observed.
type memRepository struct {
	listings map[int64]*Listing
}

func (r *memRepository) GetByID(_ context.Context, id int64) (*Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memRepository) SetPromotion(_ context.Context, id int64, tier Tier, expiresAt time.Time) error {
	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.PromotionTier = tier
	l.PromotionExpiresAt = &expiresAt
	l.IsPromoted = true
	return nil
}

func (r *memRepository) ExpirePromotions(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, l := range r.listings {
		if l.IsPromoted && l.PromotionExpiresAt != nil && !l.PromotionExpiresAt.After(now) {
			l.IsPromoted = false
			l.PromotionTier = TierNone
			n++
		}
	}
	return n, nil
}

func TestApplyPromotion_SecondCallResetsWindow(t *testing.T) {
	repo := &memRepository{listings: map[int64]*Listing{7: {ID: 7, PromotionTier: TierNone}}}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(3 * 24 * time.Hour)
	clock := first
	applier := NewApplier(repo).WithClock(func() time.Time { return clock })

	require.NoError(t, applier.ApplyPromotion(context.Background(), 7, TierTopPositioning))
	clock = second
	require.NoError(t, applier.ApplyPromotion(context.Background(), 7, TierTopPositioning))

	l, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, l.IsPromoted)
	assert.Equal(t, TierTopPositioning, l.PromotionTier)
	require.NotNil(t, l.PromotionExpiresAt)
	assert.Equal(t, second.Add(14*24*time.Hour), *l.PromotionExpiresAt)
	assert.True(t, l.PromotionActive(second))
}

func TestApplyPromotion_RejectsUnknownTier(t *testing.T) {
	repo := new(MockRepository)
	applier := NewApplier(repo)

	err := applier.ApplyPromotion(context.Background(), 1, Tier("GOLDEN"))
	assert.ErrorIs(t, err, ErrUnknownTier)

	err = applier.ApplyPromotion(context.Background(), 1, TierNone)
	assert.ErrorIs(t, err, ErrUnknownTier)

	repo.AssertNotCalled(t, "SetPromotion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPromotion_ListingMissing(t *testing.T) {
	repo := new(MockRepository)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.On("SetPromotion", mock.Anything, int64(99), TierHomepage, now.Add(PromotionDuration)).Return(ErrListingNotFound)

	applier := NewApplier(repo).WithClock(func() time.Time { return now })

	err := applier.ApplyPromotion(context.Background(), 99, TierHomepage)
	assert.ErrorIs(t, err, ErrListingNotFound)
	repo.AssertExpectations(t)
}

func TestExpireStale(t *testing.T) {
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := past.Add(30 * 24 * time.Hour)
	repo := &memRepository{listings: map[int64]*Listing{
		1: {ID: 1, PromotionTier: TierHomepage, PromotionExpiresAt: &past, IsPromoted: true},
		2: {ID: 2, PromotionTier: TierHighlight, PromotionExpiresAt: &future, IsPromoted: true},
	}}
	applier := NewApplier(repo).WithClock(func() time.Time { return past.Add(time.Hour) })

	n, err := applier.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, repo.listings[1].IsPromoted)
	assert.True(t, repo.listings[2].IsPromoted)
}

func TestPromotionActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Listing{PromotionTier: TierNone}).PromotionActive(now))
	assert.True(t, (&Listing{PromotionTier: TierHomepage}).PromotionActive(now))
	assert.False(t, (&Listing{PromotionTier: TierHomepage, PromotionExpiresAt: &past}).PromotionActive(now))
	assert.True(t, (&Listing{PromotionTier: TierHomepage, PromotionExpiresAt: &future}).PromotionActive(now))
}

func TestFindTier(t *testing.T) {
	info, err := FindTier("PREMIUM_SECTOR")
	require.NoError(t, err)
	assert.Equal(t, 14, info.DurationDays)

	_, err = FindTier("NONE")
	assert.ErrorIs(t, err, ErrUnknownTier)
}
