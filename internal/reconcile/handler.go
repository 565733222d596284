package reconcile

import (
	"errors"
	"io"
	"net/http"
	"time"

	"classifieds/internal/logger"
	"classifieds/internal/payment"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

type Handler struct {
	verifier *Verifier
	webhooks *WebhookReceiver
	syncer   *Syncer
}

func NewHandler(verifier *Verifier, webhooks *WebhookReceiver, syncer *Syncer) *Handler {
	return &Handler{verifier: verifier, webhooks: webhooks, syncer: syncer}
}

// VerifyPayment godoc
// @Summary      Verify a returned checkout session
// @Description  Fulfills a paid session. Safe to call more than once.
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        session_id  query  string  true  "Checkout session id"
// @Success      200  {object}  VerifyResult
// @Failure      400  {object}  VerifyResult
// @Failure      500  {object}  VerifyResult
// @Router       /payments/verify [get]
func (h *Handler) VerifyPayment(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, VerifyResult{Error: "session_id is required"})
		return
	}

	res, err := h.verifier.VerifyPayment(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, VerifyResult{Error: "Configuration Error"})
		case errors.Is(err, payment.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, VerifyResult{Error: msgVerificationFailed})
		default:
			logger.Error("payment verification failed", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, VerifyResult{Error: msgVerificationFailed})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}

// Webhook godoc
// @Summary      Stripe webhook
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header  string  true  "Webhook signature"
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Failure      503  {object}  api.ErrorResponse
// @Router       /webhooks/stripe [post]
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	err = h.webhooks.HandleEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, payment.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Configuration Error"})
	case errors.Is(err, ErrBadWebhook):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	}
}

type SyncRequest struct {
	Limit int        `json:"limit,omitempty" example:"100"`
	Since *time.Time `json:"since,omitempty"`
}

// Sync godoc
// @Summary      Backfill the ledger from Stripe
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input  body  SyncRequest  false  "Limit and lower bound"
// @Success      200  {object}  SyncResult
// @Failure      409  {object}  SyncResult
// @Failure      503  {object}  SyncResult
// @Router       /admin/sync [post]
func (h *Handler) Sync(c *gin.Context) {
	var in SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, SyncResult{Error: err.Error()})
			return
		}
	}

	res, err := h.syncer.SyncTransactions(c.Request.Context(), in.Limit, in.Since)
	if err != nil {
		status, msg := SyncFailure(err)
		c.JSON(status, SyncResult{Error: msg})
		return
	}

	c.JSON(http.StatusOK, res)
}

// SyncFailure maps a sync error to a status code and a caller-safe message.
func SyncFailure(err error) (int, string) {
	switch {
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Configuration Error"
	case errors.Is(err, ErrSyncInProgress):
		return http.StatusConflict, ErrSyncInProgress.Error()
	default:
		logger.Error("sync failed", "error", err)
		return http.StatusBadGateway, "sync failed"
	}
}
