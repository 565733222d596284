package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classifieds_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CheckoutSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_checkout_sessions_total",
			Help: "Checkout sessions requested from the payment processor",
		},
		[]string{"kind", "status"},
	)

	PaymentsFulfilledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_payments_fulfilled_total",
			Help: "Paid sessions whose effect was applied, by entry point",
		},
		[]string{"source", "type"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_webhook_events_total",
			Help: "Webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	LedgerWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_ledger_writes_total",
			Help: "Ledger record attempts, split into inserted and duplicate",
		},
		[]string{"result"},
	)

	PromotionsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_promotions_applied_total",
			Help: "Listing promotions applied by tier",
		},
		[]string{"tier"},
	)

	SyncBackfilledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifieds_sync_backfilled_total",
			Help: "Transactions created by the reconciliation sync job",
		},
	)

	SyncSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_sync_skipped_total",
			Help: "Sessions skipped by the reconciliation sync job",
		},
		[]string{"reason"},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifieds_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classifieds_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	WalletCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifieds_wallet_credits_total",
			Help: "Total number of wallet top-ups credited",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordCheckout(kind, status string) {
	CheckoutSessionsTotal.WithLabelValues(kind, status).Inc()
}

func RecordFulfillment(source, txType string) {
	PaymentsFulfilledTotal.WithLabelValues(source, txType).Inc()
}

func RecordWebhook(eventType, outcome string) {
	WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func RecordLedgerWrite(created bool) {
	if created {
		LedgerWritesTotal.WithLabelValues("inserted").Inc()
		return
	}
	LedgerWritesTotal.WithLabelValues("duplicate").Inc()
}

func RecordPromotion(tier string) {
	PromotionsAppliedTotal.WithLabelValues(tier).Inc()
}

func RecordSyncBackfill() {
	SyncBackfilledTotal.Inc()
}

func RecordSyncSkip(reason string) {
	SyncSkippedTotal.WithLabelValues(reason).Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordWalletCredit() {
	WalletCreditsTotal.Inc()
}
