package listing

import (
	"time"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierNone             Tier = "NONE"
	TierHomepage         Tier = "HOMEPAGE"
	TierTopPositioning   Tier = "TOP_POSITIONING"
	TierPremiumSector    Tier = "PREMIUM_SECTOR"
	TierAutoDailyRefresh Tier = "AUTO_DAILY_REFRESH"
	TierHighlight        Tier = "LISTING_HIGHLIGHT"
)

// PromotionDuration is fixed for every tier; repeat purchases restart it.
const PromotionDuration = 14 * 24 * time.Hour

type Listing struct {
	ID                 int64      `db:"id" json:"id"`
	OwnerID            string     `db:"owner_id" json:"owner_id"`
	Title              string     `db:"title" json:"title"`
	PromotionTier      Tier       `db:"promotion_tier" json:"promotion_tier"`
	PromotionExpiresAt *time.Time `db:"promotion_expires_at" json:"promotion_expires_at,omitempty"`
	IsPromoted         bool       `db:"is_promoted" json:"is_promoted"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// PromotionActive reports whether the stored tier is still in effect at now.
func (l *Listing) PromotionActive(now time.Time) bool {
	if l.PromotionTier == "" || l.PromotionTier == TierNone {
		return false
	}
	return l.PromotionExpiresAt == nil || l.PromotionExpiresAt.After(now)
}

type TierInfo struct {
	Tier         Tier            `json:"tier"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
}

var tiers = []TierInfo{
	{
		Tier:        TierHomepage,
		Name:        "Homepage",
		Description: "Shown in the homepage carousel",
		Price:       decimal.RequireFromString("1000"),
	},
	{
		Tier:        TierTopPositioning,
		Name:        "Top positioning",
		Description: "Pinned above organic results in its category",
		Price:       decimal.RequireFromString("2000"),
	},
	{
		Tier:        TierPremiumSector,
		Name:        "Premium sector",
		Description: "Listed in the premium sector of the category page",
		Price:       decimal.RequireFromString("1500"),
	},
	{
		Tier:        TierAutoDailyRefresh,
		Name:        "Daily refresh",
		Description: "Bumped to the top of its category once a day",
		Price:       decimal.RequireFromString("500"),
	},
	{
		Tier:        TierHighlight,
		Name:        "Highlight",
		Description: "Coloured frame in search results",
		Price:       decimal.RequireFromString("300"),
	},
}

// Tiers returns the purchasable promotion tiers.
func Tiers() []TierInfo {
	out := make([]TierInfo, len(tiers))
	for i, t := range tiers {
		t.DurationDays = int(PromotionDuration / (24 * time.Hour))
		out[i] = t
	}
	return out
}

func FindTier(name string) (TierInfo, error) {
	for _, t := range Tiers() {
		if string(t.Tier) == name {
			return t, nil
		}
	}
	return TierInfo{}, ErrUnknownTier
}
