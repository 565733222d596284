// Package intent encodes what a checkout session pays for into the processor's
// metadata map and decodes it back at the verifier and webhook boundary.
//
// The metadata map is the only link between a payment event and domain objects,
// so Decode is strict: a session whose metadata does not name a complete intent
// is rejected instead of being guessed at.
package intent

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPromotion    Kind = "LISTING_PROMOTION"
	KindSubscription Kind = "SUBSCRIPTION"
	KindTopup        Kind = "TOPUP"

	// kindPromotionShort is the promotion tag written by older checkout links.
	kindPromotionShort Kind = "PROMOTION"
)

// ParseKind reads the metadata type tag, folding the short promotion tag
// into KindPromotion.
func ParseKind(v string) Kind {
	k := Kind(strings.ToUpper(strings.TrimSpace(v)))
	if k == kindPromotionShort {
		return KindPromotion
	}
	return k
}

// Metadata keys shared with sessions created before this service existed.
const (
	KeyType      = "type"
	KeyUserID    = "userId"
	KeyListingID = "listingId"
	KeyTier      = "tier"
	KeyPlan      = "plan"
	KeyDuration  = "duration"
	KeyAmount    = "amount"
)

var (
	ErrMissingPromotionMetadata = errors.New("missing promotion metadata")
	ErrMissingMetadata          = errors.New("missing metadata")
	ErrInvalidTopupAmount       = errors.New("invalid top-up amount")
)

type Intent interface {
	Kind() Kind
	User() string
}

type Promotion struct {
	UserID    string
	ListingID string
	Tier      string
}

func (Promotion) Kind() Kind     { return KindPromotion }
func (p Promotion) User() string { return p.UserID }

type Subscription struct {
	UserID   string
	Plan     string
	Duration string
}

func (Subscription) Kind() Kind     { return KindSubscription }
func (s Subscription) User() string { return s.UserID }

type Topup struct {
	UserID string
	Amount decimal.Decimal
}

func (Topup) Kind() Kind     { return KindTopup }
func (t Topup) User() string { return t.UserID }

// Encode renders an intent as processor metadata.
func Encode(i Intent) map[string]string {
	md := map[string]string{
		KeyType: string(i.Kind()),
	}
	if i.User() != "" {
		md[KeyUserID] = i.User()
	}

	switch v := i.(type) {
	case Promotion:
		md[KeyListingID] = v.ListingID
		md[KeyTier] = v.Tier
	case Subscription:
		md[KeyPlan] = v.Plan
		md[KeyDuration] = v.Duration
	case Topup:
		md[KeyAmount] = v.Amount.StringFixed(2)
	}
	return md
}

// Decode validates metadata and returns the intent it describes. Sessions
// without an explicit type follow the membership path, matching links created
// before the type key existed.
func Decode(md map[string]string) (Intent, error) {
	get := func(key string) string { return strings.TrimSpace(md[key]) }

	switch ParseKind(get(KeyType)) {
	case KindPromotion:
		p := Promotion{UserID: get(KeyUserID), ListingID: get(KeyListingID), Tier: get(KeyTier)}
		if p.ListingID == "" || p.Tier == "" {
			return nil, ErrMissingPromotionMetadata
		}
		return p, nil
	case KindTopup:
		userID := get(KeyUserID)
		if userID == "" || get(KeyAmount) == "" {
			return nil, ErrMissingMetadata
		}
		amount, err := decimal.NewFromString(get(KeyAmount))
		if err != nil || !amount.IsPositive() {
			return nil, ErrInvalidTopupAmount
		}
		return Topup{UserID: userID, Amount: amount}, nil
	default:
		s := Subscription{UserID: get(KeyUserID), Plan: get(KeyPlan), Duration: get(KeyDuration)}
		if s.UserID == "" || s.Plan == "" || s.Duration == "" {
			return nil, ErrMissingMetadata
		}
		return s, nil
	}
}
