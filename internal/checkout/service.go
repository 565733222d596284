package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"classifieds/internal/intent"
	"classifieds/internal/listing"
	"classifieds/internal/logger"
	"classifieds/internal/membership"
	"classifieds/internal/metrics"
	"classifieds/internal/payment"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPromotion    Kind = "PROMOTION"
	KindSubscription Kind = "SUBSCRIPTION"
	KindTopup        Kind = "TOPUP"
)

var (
	ErrCheckoutFailed  = errors.New("failed to create checkout session")
	ErrInvalidRequest  = errors.New("invalid checkout request")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrNotListingOwner = errors.New("listing belongs to another user")
	ErrMissingBaseURL  = errors.New("cannot resolve application base url")
)

var (
	minTopup = decimal.NewFromInt(1)
	maxTopup = decimal.NewFromInt(10000)
)

type Request struct {
	Kind       Kind            `validate:"required,oneof=PROMOTION SUBSCRIPTION TOPUP"`
	SubjectID  string          `validate:"required_if=Kind PROMOTION"`
	UserID     string          `validate:"required"`
	UserEmail  string          `validate:"required,email"`
	TierOrPlan string          `validate:"required_unless=Kind TOPUP"`
	Duration   string          `validate:"required_if=Kind SUBSCRIPTION"`
	Amount     decimal.Decimal `validate:"-"`
	BaseURL    string          `validate:"omitempty,url"`
}

type Result struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// ListingFinder loads the listing being promoted.
type ListingFinder interface {
	Get(ctx context.Context, listingID int64) (*listing.Listing, error)
}

type Service struct {
	processor payment.Processor
	listings  ListingFinder
	validate  *validator.Validate
	baseURL   string
}

// NewService builds the session initiator. A non-empty baseURL overrides the
// per-request base derived from headers.
func NewService(processor payment.Processor, listings ListingFinder, baseURL string) *Service {
	return &Service{
		processor: processor,
		listings:  listings,
		validate:  validator.New(),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

type lineItem struct {
	name        string
	description string
	amount      decimal.Decimal
	intent      intent.Intent
}

func (s *Service) CreateCheckoutSession(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	item, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}
	if !item.amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	base := s.baseURL
	if base == "" {
		base = strings.TrimRight(req.BaseURL, "/")
	}
	if base == "" {
		return nil, ErrMissingBaseURL
	}

	params := payment.CheckoutParams{
		ProductName:       item.name,
		Description:       item.description,
		UnitAmount:        payment.ToMinorUnits(item.amount),
		CustomerEmail:     req.UserEmail,
		ClientReferenceID: req.UserID,
		SuccessURL:        base + "/payments/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         base + "/payments/cancel",
		Metadata:          intent.Encode(item.intent),
		IdempotencyKey:    uuid.NewString(),
	}

	session, err := s.processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		metrics.RecordCheckout(string(req.Kind), "error")
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, err
		}
		logger.Error("checkout session creation failed",
			"kind", string(req.Kind),
			"user_id", req.UserID,
			"error", err,
		)
		return nil, ErrCheckoutFailed
	}

	metrics.RecordCheckout(string(req.Kind), "created")
	logger.Info("checkout session created",
		"session_id", session.ID,
		"kind", string(req.Kind),
		"user_id", req.UserID,
		"amount", item.amount.StringFixed(2),
	)
	return &Result{URL: session.URL, SessionID: session.ID}, nil
}

// price resolves the charged amount from the server-side catalogs. Only
// top-ups take the amount from the request.
func (s *Service) price(ctx context.Context, req Request) (*lineItem, error) {
	switch req.Kind {
	case KindPromotion:
		tier, err := listing.FindTier(req.TierOrPlan)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, req.TierOrPlan)
		}
		listingID, err := strconv.ParseInt(req.SubjectID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: listing id %q", ErrInvalidRequest, req.SubjectID)
		}
		l, err := s.listings.Get(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if l.OwnerID != req.UserID {
			return nil, ErrNotListingOwner
		}
		return &lineItem{
			name:        "Listing Promotion: " + tier.Name,
			description: tier.Description,
			amount:      tier.Price,
			intent:      intent.Promotion{UserID: req.UserID, ListingID: req.SubjectID, Tier: string(tier.Tier)},
		}, nil

	case KindSubscription:
		plan, err := membership.FindPlan(req.TierOrPlan)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, req.TierOrPlan)
		}
		amount, err := plan.Price(req.Duration)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, req.Duration)
		}
		return &lineItem{
			name:        fmt.Sprintf("%s Subscription (%s)", plan.Name, req.Duration),
			description: plan.Description,
			amount:      amount,
			intent:      intent.Subscription{UserID: req.UserID, Plan: plan.Tier, Duration: req.Duration},
		}, nil

	default:
		if req.Amount.LessThan(minTopup) || req.Amount.GreaterThan(maxTopup) {
			return nil, fmt.Errorf("%w: top-up must be between %s and %s", ErrInvalidAmount, minTopup, maxTopup)
		}
		amount := req.Amount.Round(2)
		return &lineItem{
			name:        "Wallet Credits Top-up",
			description: fmt.Sprintf("%s credits added to your wallet", amount.StringFixed(2)),
			amount:      amount,
			intent:      intent.Topup{UserID: req.UserID, Amount: amount},
		}, nil
	}
}
