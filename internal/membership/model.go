package membership

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusNone      Status = "NONE"
	StatusActive    Status = "ACTIVE"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

const (
	DurationMonthly = "monthly"
	DurationYearly  = "yearly"
)

var (
	ErrUnknownPlan     = errors.New("unknown membership plan")
	ErrUnknownDuration = errors.New("unknown membership duration")
	ErrUserNotFound    = errors.New("user not found")
)

type Plan struct {
	Tier         string          `json:"tier"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	YearlyPrice  decimal.Decimal `json:"yearly_price"`
	ListingLimit *int            `json:"listing_limit,omitempty"`
}

func Plans() []Plan {
	basicLimit := 20
	proLimit := 100

	return []Plan{
		{
			Tier:         "BASIC",
			Name:         "Basic",
			Description:  "20 active listings, seller badge",
			MonthlyPrice: decimal.RequireFromString("500"),
			YearlyPrice:  decimal.RequireFromString("5000"),
			ListingLimit: &basicLimit,
		},
		{
			Tier:         "PRO",
			Name:         "Pro",
			Description:  "100 active listings, weekly highlight",
			MonthlyPrice: decimal.RequireFromString("1500"),
			YearlyPrice:  decimal.RequireFromString("15000"),
			ListingLimit: &proLimit,
		},
		{
			Tier:         "BUSINESS",
			Name:         "Business",
			Description:  "Unlimited listings, shop page",
			MonthlyPrice: decimal.RequireFromString("4000"),
			YearlyPrice:  decimal.RequireFromString("40000"),
			ListingLimit: nil,
		},
	}
}

func FindPlan(tier string) (Plan, error) {
	for _, p := range Plans() {
		if p.Tier == tier {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}

// Price returns what the plan costs for the given billing duration.
func (p Plan) Price(duration string) (decimal.Decimal, error) {
	switch duration {
	case DurationMonthly:
		return p.MonthlyPrice, nil
	case DurationYearly:
		return p.YearlyPrice, nil
	default:
		return decimal.Zero, ErrUnknownDuration
	}
}

// ExpiresAt returns the end of a membership period starting at from.
func ExpiresAt(from time.Time, duration string) (time.Time, error) {
	switch duration {
	case DurationMonthly:
		return from.AddDate(0, 1, 0), nil
	case DurationYearly:
		return from.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, ErrUnknownDuration
	}
}
