package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"classifieds/internal/logger"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	Currency       string
	AllowUnsigned  bool
	PaymentMethods []string
}

// StripeProcessor talks to Stripe through an explicitly constructed client.
type StripeProcessor struct {
	api            *client.API
	webhookSecret  string
	currency       string
	allowUnsigned  bool
	paymentMethods []string
}

func NewStripeProcessor(cfg StripeConfig) *StripeProcessor {
	p := &StripeProcessor{
		webhookSecret:  cfg.WebhookSecret,
		currency:       cfg.Currency,
		allowUnsigned:  cfg.AllowUnsigned,
		paymentMethods: cfg.PaymentMethods,
	}
	if p.currency == "" {
		p.currency = string(stripe.CurrencyEUR)
	}
	if len(p.paymentMethods) == 0 {
		p.paymentMethods = []string{"card"}
	}
	if cfg.SecretKey != "" {
		p.api = client.New(cfg.SecretKey, nil)
	}
	if cfg.WebhookSecret == "" && cfg.AllowUnsigned {
		logger.Warn("stripe webhook signature verification disabled")
	}
	return p
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutParams) (*Session, error) {
	if p.api == nil {
		return nil, ErrNotConfigured
	}

	currency := in.Currency
	if currency == "" {
		currency = p.currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(p.paymentMethods),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(in.ProductName),
						Description: stripe.String(in.Description),
					},
					UnitAmount: stripe.Int64(in.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	if in.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(in.ClientReferenceID)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create session: %w", err)
	}
	return sessionFromStripe(s), nil
}

func (p *StripeProcessor) GetSession(ctx context.Context, id string) (*Session, error) {
	if p.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items")
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("stripe get session: %w", err)
	}
	return sessionFromStripe(s), nil
}

// ListSessions pages through sessions newest first until limit is reached.
func (p *StripeProcessor) ListSessions(ctx context.Context, in ListParams) ([]Session, error) {
	if p.api == nil {
		return nil, ErrNotConfigured
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 100
	}

	params := &stripe.CheckoutSessionListParams{}
	params.Limit = stripe.Int64(int64(min(limit, 100)))
	params.AddExpand("data.line_items")
	params.AddExpand("data.payment_intent")
	if in.Since != nil {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: in.Since.Unix()}
	}
	params.Context = ctx

	out := make([]Session, 0, limit)
	it := p.api.CheckoutSessions.List(params)
	for len(out) < limit && it.Next() {
		out = append(out, *sessionFromStripe(it.CheckoutSession()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list sessions: %w", err)
	}
	return out, nil
}

// ParseWebhook verifies the signature header and decodes the event. Without a
// configured secret the body is only accepted when unsigned parsing was
// explicitly allowed.
func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*Event, error) {
	var (
		ev  stripe.Event
		err error
	)

	switch {
	case p.webhookSecret != "":
		ev, err = webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	case p.allowUnsigned:
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	default:
		return nil, ErrNotConfigured
	}

	return eventFromStripe(ev)
}

func eventFromStripe(ev stripe.Event) (*Event, error) {
	out := &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentSucceeded:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		out.Session = sessionFromStripe(&cs)
	case EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		out.Subscription = &Subscription{ID: sub.ID, Metadata: sub.Metadata}
		if sub.Customer != nil {
			out.Subscription.CustomerID = sub.Customer.ID
		}
	}
	return out, nil
}

func sessionFromStripe(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:                s.ID,
		URL:               s.URL,
		PaymentStatus:     string(s.PaymentStatus),
		AmountTotal:       s.AmountTotal,
		Currency:          string(s.Currency),
		Metadata:          s.Metadata,
		ClientReferenceID: s.ClientReferenceID,
		CustomerEmail:     s.CustomerEmail,
		Created:           time.Unix(s.Created, 0).UTC(),
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			if li == nil {
				continue
			}
			out.LineItems = append(out.LineItems, LineItem{
				Description: li.Description,
				AmountTotal: li.AmountTotal,
			})
		}
	}
	return out
}
