package reconcile

import (
	"context"
	"errors"
	"fmt"

	"classifieds/internal/intent"
	"classifieds/internal/logger"
	"classifieds/internal/membership"
	"classifieds/internal/metrics"
	"classifieds/internal/payment"
)

var (
	// ErrBadWebhook covers signature and payload failures; the processor
	// must not retry them.
	ErrBadWebhook = errors.New("bad webhook request")
	// ErrWebhookFailed means a store mutation failed; the processor should
	// redeliver.
	ErrWebhookFailed = errors.New("webhook processing failed")
)

type WebhookReceiver struct {
	processor   payment.Processor
	fulfiller   *Fulfiller
	memberships membership.Service
}

func NewWebhookReceiver(processor payment.Processor, fulfiller *Fulfiller, memberships membership.Service) *WebhookReceiver {
	return &WebhookReceiver{processor: processor, fulfiller: fulfiller, memberships: memberships}
}

// HandleEvent verifies and dispatches one delivery. A nil error means the
// event should be acknowledged, including unknown types and sessions that can
// never be fulfilled.
func (w *WebhookReceiver) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := w.processor.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrNotConfigured) {
			metrics.RecordWebhook("unknown", "not_configured")
			return err
		}
		metrics.RecordWebhook("unknown", "rejected")
		logger.Warn("webhook rejected", "error", err)
		return fmt.Errorf("%w: %v", ErrBadWebhook, err)
	}

	outcome, err := w.dispatch(ctx, ev)
	metrics.RecordWebhook(ev.Type, outcome)
	return err
}

func (w *WebhookReceiver) dispatch(ctx context.Context, ev *payment.Event) (string, error) {
	switch ev.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentSucceeded:
		if ev.Session == nil {
			return "rejected", fmt.Errorf("%w: event %s has no session", ErrBadWebhook, ev.ID)
		}
		if !ev.Session.Paid() {
			logger.Info("checkout completed without payment yet",
				"event_id", ev.ID,
				"session_id", ev.Session.ID,
				"payment_status", ev.Session.PaymentStatus,
			)
			return "ignored", nil
		}

		if _, err := w.fulfiller.Fulfill(ctx, ev.Session, SourceWebhook); err != nil {
			if isPermanent(err) {
				logger.Warn("webhook session cannot be fulfilled",
					"event_id", ev.ID,
					"session_id", ev.Session.ID,
					"error", err,
				)
				return "skipped", nil
			}
			logger.Error("webhook fulfillment failed",
				"event_id", ev.ID,
				"session_id", ev.Session.ID,
				"error", err,
			)
			return "failed", fmt.Errorf("%w: %v", ErrWebhookFailed, err)
		}
		return "processed", nil

	case payment.EventSubscriptionDeleted:
		return w.cancelMembership(ctx, ev)

	default:
		logger.Info("webhook event ignored", "event_id", ev.ID, "type", ev.Type)
		return "ignored", nil
	}
}

func (w *WebhookReceiver) cancelMembership(ctx context.Context, ev *payment.Event) (string, error) {
	if ev.Subscription == nil || ev.Subscription.Metadata[intent.KeyUserID] == "" {
		logger.Warn("subscription deletion without user id", "event_id", ev.ID)
		return "skipped", nil
	}

	userID := ev.Subscription.Metadata[intent.KeyUserID]
	if err := w.memberships.Cancel(ctx, userID); err != nil {
		if errors.Is(err, membership.ErrUserNotFound) {
			logger.Warn("subscription deletion for unknown user", "event_id", ev.ID, "user_id", userID)
			return "skipped", nil
		}
		logger.Error("membership cancellation failed", "event_id", ev.ID, "user_id", userID, "error", err)
		return "failed", fmt.Errorf("%w: %v", ErrWebhookFailed, err)
	}

	logger.Info("membership cancelled", "user_id", userID, "subscription_id", ev.Subscription.ID)
	return "processed", nil
}
