package listing

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	applier *Applier
}

func NewHandler(applier *Applier) *Handler {
	return &Handler{applier: applier}
}

type PromotionStatus struct {
	ListingID int64      `json:"listing_id"`
	Tier      Tier       `json:"tier"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
}

// ListTiers godoc
// @Summary      List promotion tiers
// @Tags         promotions
// @Produce      json
// @Success      200  {array}  TierInfo
// @Router       /promotions/tiers [get]
func (h *Handler) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, Tiers())
}

// GetPromotion godoc
// @Summary      Listing promotion status
// @Tags         promotions
// @Security     BearerAuth
// @Produce      json
// @Param        listingID  path  int  true  "Listing ID"
// @Success      200  {object}  PromotionStatus
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /listings/{listingID}/promotion [get]
func (h *Handler) GetPromotion(c *gin.Context) {
	listingID, err := strconv.ParseInt(c.Param("listingID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	l, err := h.applier.Get(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load listing"})
		return
	}

	c.JSON(http.StatusOK, PromotionStatus{
		ListingID: l.ID,
		Tier:      l.PromotionTier,
		ExpiresAt: l.PromotionExpiresAt,
		Active:    l.PromotionActive(h.applier.now()),
	})
}
