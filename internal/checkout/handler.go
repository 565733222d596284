package checkout

import (
	"errors"
	"net/http"
	"strings"

	"classifieds/internal/api"
	"classifieds/internal/auth"
	"classifieds/internal/listing"
	"classifieds/internal/membership"
	"classifieds/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type PromotionRequest struct {
	ListingID string `json:"listing_id" binding:"required" example:"42"`
	Tier      string `json:"tier" binding:"required" example:"HOMEPAGE"`
	Email     string `json:"email,omitempty" example:"seller@example.com"`
}

type SubscriptionRequest struct {
	Plan     string `json:"plan" binding:"required" example:"PRO"`
	Duration string `json:"duration" binding:"required" example:"monthly"`
	Email    string `json:"email,omitempty"`
}

type TopupRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"25.00"`
	Email  string          `json:"email,omitempty"`
}

// CreatePromotion godoc
// @Summary      Start a promotion checkout
// @Tags         checkout
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input  body  PromotionRequest  true  "Listing and tier"
// @Success      201  {object}  Result
// @Failure      400  {object}  api.ValidationErrorResponse
// @Failure      403  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /checkout/promotion [post]
func (h *Handler) CreatePromotion(c *gin.Context) {
	var in PromotionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		api.RespondBindError(c, err)
		return
	}

	h.create(c, Request{
		Kind:       KindPromotion,
		SubjectID:  in.ListingID,
		TierOrPlan: in.Tier,
		UserEmail:  in.Email,
	})
}

// CreateSubscription godoc
// @Summary      Start a membership checkout
// @Tags         checkout
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input  body  SubscriptionRequest  true  "Plan and billing duration"
// @Success      201  {object}  Result
// @Failure      400  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /checkout/subscription [post]
func (h *Handler) CreateSubscription(c *gin.Context) {
	var in SubscriptionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		api.RespondBindError(c, err)
		return
	}

	h.create(c, Request{
		Kind:       KindSubscription,
		TierOrPlan: in.Plan,
		Duration:   in.Duration,
		UserEmail:  in.Email,
	})
}

// CreateTopup godoc
// @Summary      Start a wallet top-up checkout
// @Tags         checkout
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input  body  TopupRequest  true  "Amount in major units"
// @Success      201  {object}  Result
// @Failure      400  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /checkout/topup [post]
func (h *Handler) CreateTopup(c *gin.Context) {
	var in TopupRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		api.RespondBindError(c, err)
		return
	}

	h.create(c, Request{
		Kind:      KindTopup,
		Amount:    in.Amount,
		UserEmail: in.Email,
	})
}

func (h *Handler) create(c *gin.Context, req Request) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}
	req.UserID = userID
	if req.UserEmail == "" {
		req.UserEmail = auth.GetUserEmail(c)
	}
	req.BaseURL = RequestBaseURL(c.Request)

	res, err := h.svc.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Configuration Error"})
		case errors.Is(err, listing.ErrListingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		case errors.Is(err, ErrNotListingOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, ErrInvalidRequest),
			errors.Is(err, ErrInvalidAmount),
			errors.Is(err, listing.ErrUnknownTier),
			errors.Is(err, membership.ErrUnknownPlan),
			errors.Is(err, membership.ErrUnknownDuration):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrCheckoutFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": ErrCheckoutFailed.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": ErrCheckoutFailed.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, res)
}

// RequestBaseURL rebuilds scheme://host from proxy headers, falling back to
// the connection itself.
func RequestBaseURL(r *http.Request) string {
	proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0])
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}

	host := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0])
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return ""
	}
	return proto + "://" + host
}
