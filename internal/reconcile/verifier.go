package reconcile

import (
	"context"
	"errors"

	"classifieds/internal/intent"
	"classifieds/internal/listing"
	"classifieds/internal/logger"
	"classifieds/internal/membership"
	"classifieds/internal/payment"
	"classifieds/internal/wallet"
)

const (
	msgPaymentNotCompleted = "Payment not completed"
	msgMissingPromotion    = "missing promotion metadata"
	msgMissingMetadata     = "missing metadata"
	msgVerificationFailed  = "payment verification failed"
)

type VerifyResult struct {
	Success bool   `json:"success"`
	Type    string `json:"type,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Plan    string `json:"plan,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Verifier handles the browser return from checkout.
type Verifier struct {
	processor payment.Processor
	fulfiller *Fulfiller
}

func NewVerifier(processor payment.Processor, fulfiller *Fulfiller) *Verifier {
	return &Verifier{processor: processor, fulfiller: fulfiller}
}

// VerifyPayment fetches the session and fulfills it once paid. Unpaid
// sessions and incomplete metadata produce a failed result without touching
// any store; processor and store errors are returned.
func (v *Verifier) VerifyPayment(ctx context.Context, sessionID string) (*VerifyResult, error) {
	s, err := v.processor.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !s.Paid() {
		return &VerifyResult{Success: false, Error: msgPaymentNotCompleted}, nil
	}

	out, err := v.fulfiller.Fulfill(ctx, s, SourceVerify)
	if err != nil {
		if isPermanent(err) {
			logger.Warn("session cannot be fulfilled", "session_id", sessionID, "error", err)
			return &VerifyResult{Success: false, Error: failureMessage(err)}, nil
		}
		return nil, err
	}

	res := &VerifyResult{Success: true, Type: string(out.Intent.Kind())}
	switch i := out.Intent.(type) {
	case intent.Promotion:
		res.Tier = i.Tier
	case intent.Subscription:
		res.Plan = i.Plan
	}
	return res, nil
}

// failureMessage keeps store and catalog detail out of the browser response.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrPaymentNotCompleted):
		return msgPaymentNotCompleted
	case errors.Is(err, intent.ErrMissingPromotionMetadata):
		return msgMissingPromotion
	case errors.Is(err, intent.ErrMissingMetadata):
		return msgMissingMetadata
	default:
		return msgVerificationFailed
	}
}

// isPermanent reports errors that no retry can fix: the session metadata is
// incomplete or names something that does not exist.
func isPermanent(err error) bool {
	for _, target := range []error{
		intent.ErrMissingPromotionMetadata,
		intent.ErrMissingMetadata,
		intent.ErrInvalidTopupAmount,
		ErrInvalidListingID,
		listing.ErrUnknownTier,
		listing.ErrListingNotFound,
		membership.ErrUnknownPlan,
		membership.ErrUnknownDuration,
		membership.ErrUserNotFound,
		wallet.ErrUserNotFound,
		wallet.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
