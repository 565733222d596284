package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"classifieds/internal/auth"
	"classifieds/internal/checkout"
	"classifieds/internal/config"
	"classifieds/internal/ledger"
	"classifieds/internal/listing"
	"classifieds/internal/membership"
	"classifieds/internal/reconcile"
	"classifieds/internal/user"
	"classifieds/internal/wallet"

	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP entry points mounted by the router.
type Handlers struct {
	Checkout  *checkout.Handler
	Reconcile *reconcile.Handler
	Ledger    *ledger.Handler
	Wallet    *wallet.Handler
	Listings  *listing.Handler
	Users     *user.Handler
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	config *config.Config
	done   chan struct{}
	once   sync.Once
}

func New(cfg *config.Config, h Handlers) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	done := make(chan struct{})
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	router.GET("/memberships/plans", membership.ListPlans)
	router.GET("/promotions/tiers", h.Listings.ListTiers)

	// Stripe authenticates itself through the signature header.
	router.POST("/webhooks/stripe", h.Reconcile.Webhook)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	checkoutGroup := router.Group("/checkout")
	checkoutGroup.Use(authMiddleware, RateLimitMiddleware(1, 5, done))
	{
		checkoutGroup.POST("/promotion", h.Checkout.CreatePromotion)
		checkoutGroup.POST("/subscription", h.Checkout.CreateSubscription)
		checkoutGroup.POST("/topup", h.Checkout.CreateTopup)
	}

	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", h.Users.GetMe)
		protected.GET("/payments/verify", h.Reconcile.VerifyPayment)
		protected.GET("/transactions", h.Ledger.ListMine)
		protected.GET("/wallet", h.Wallet.GetBalance)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)
		protected.GET("/listings/:listingID/promotion", h.Listings.GetPromotion)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/sync", h.Reconcile.Sync)
		admin.GET("/revenue", h.Ledger.Revenue)
	}

	return &Server{
		router: router,
		config: cfg,
		done:   done,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Stripe-Signature, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
