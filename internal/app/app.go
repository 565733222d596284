// Package app assembles repositories, services and handlers from config.
// The API server and the reconcile CLI share it.
package app

import (
	"classifieds/internal/checkout"
	"classifieds/internal/config"
	"classifieds/internal/email"
	"classifieds/internal/ledger"
	"classifieds/internal/listing"
	"classifieds/internal/membership"
	"classifieds/internal/payment"
	"classifieds/internal/reconcile"
	"classifieds/internal/server"
	"classifieds/internal/user"
	"classifieds/internal/wallet"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Processor   payment.Processor
	Listings    *listing.Applier
	Memberships membership.Service
	Users       user.Repository
	Wallet      wallet.Repository
	Ledger      *ledger.Recorder
	Email       *email.Service
	Checkout    *checkout.Service
	Fulfiller   *reconcile.Fulfiller
	Verifier    *reconcile.Verifier
	Webhooks    *reconcile.WebhookReceiver
	Syncer      *reconcile.Syncer
}

func New(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) *App {
	processor := payment.NewStripeProcessor(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.StripeCurrency,
		AllowUnsigned: cfg.AllowUnsignedWebhooks && !cfg.IsProduction(),
	})

	a := &App{
		Processor:   processor,
		Listings:    listing.NewApplier(listing.NewRepository(db)),
		Memberships: membership.NewService(membership.NewRepository(db)),
		Users:       user.NewRepository(db),
		Wallet:      wallet.NewRepository(db),
		Ledger:      ledger.NewRecorder(ledger.NewRepository(db)),
		Email: email.New(
			rdb,
			cfg.EmailFrom,
			cfg.EmailFromName,
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
		),
	}

	a.Checkout = checkout.NewService(processor, a.Listings, cfg.AppBaseURL)
	a.Fulfiller = reconcile.NewFulfiller(a.Listings, a.Memberships, a.Wallet, a.Ledger).
		WithReceipts(a.Email).
		WithUsers(a.Users)
	a.Verifier = reconcile.NewVerifier(processor, a.Fulfiller)
	a.Webhooks = reconcile.NewWebhookReceiver(processor, a.Fulfiller, a.Memberships)
	a.Syncer = reconcile.NewSyncer(processor, a.Ledger).
		WithLocker(reconcile.NewRedisLocker(rdb))

	return a
}

func (a *App) Handlers() server.Handlers {
	return server.Handlers{
		Checkout:  checkout.NewHandler(a.Checkout),
		Reconcile: reconcile.NewHandler(a.Verifier, a.Webhooks, a.Syncer),
		Ledger:    ledger.NewHandler(a.Ledger),
		Wallet:    wallet.NewHandler(a.Wallet),
		Listings:  listing.NewHandler(a.Listings),
		Users:     user.NewHandler(a.Users),
	}
}
