package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured    = errors.New("payment processor not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrSessionNotFound  = errors.New("checkout session not found")
)

const (
	StatusPaid              = "paid"
	StatusUnpaid            = "unpaid"
	StatusNoPaymentRequired = "no_payment_required"
)

const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventSubscriptionDeleted           = "customer.subscription.deleted"
)

// Session is the subset of a processor checkout session this service reads.
type Session struct {
	ID                string
	URL               string
	PaymentStatus     string
	AmountTotal       int64
	Currency          string
	Metadata          map[string]string
	ClientReferenceID string
	CustomerEmail     string
	Created           time.Time
	LineItems         []LineItem
}

type LineItem struct {
	Description string
	AmountTotal int64
}

func (s *Session) Paid() bool {
	return s.PaymentStatus == StatusPaid
}

// Amount converts the minor-unit total into major units.
func (s *Session) Amount() decimal.Decimal {
	return decimal.New(s.AmountTotal, -2)
}

type Subscription struct {
	ID         string
	CustomerID string
	Metadata   map[string]string
}

// Event is a verified webhook delivery. Session or Subscription is set
// depending on the event type.
type Event struct {
	ID           string
	Type         string
	Created      time.Time
	Session      *Session
	Subscription *Subscription
}

type CheckoutParams struct {
	ProductName       string
	Description       string
	UnitAmount        int64
	Currency          string
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
	IdempotencyKey    string
}

type ListParams struct {
	Limit int
	Since *time.Time
}

// Processor is the external payment processor boundary.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, p ListParams) ([]Session, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// ToMinorUnits rounds half away from zero to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
