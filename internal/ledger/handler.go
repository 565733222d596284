package ledger

import (
	"net/http"
	"strconv"
	"time"

	"classifieds/internal/auth"
	"classifieds/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	DefaultRecent = 10
	MaxRecent     = 100
	DefaultPage   = 50
	MaxPage       = 100
)

type Handler struct {
	recorder *Recorder
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// Revenue godoc
// @Summary      Revenue report
// @Description  Completed revenue with an 18% VAT split, grouped by transaction type
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        since   query  string  false  "RFC3339 lower bound"
// @Param        recent  query  int     false  "Number of recent transactions, 0 to 100"
// @Success      200  {object}  RevenueStats
// @Failure      400  {object}  api.ErrorResponse
// @Router       /admin/revenue [get]
func (h *Handler) Revenue(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		since = &t
	}

	recent, err := strconv.Atoi(c.DefaultQuery("recent", strconv.Itoa(DefaultRecent)))
	if err != nil || recent < 0 || recent > MaxRecent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recent must be an integer between 0 and 100"})
		return
	}

	stats, err := h.recorder.RevenueStats(c.Request.Context(), since, recent)
	if err != nil {
		logger.Error("revenue stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load revenue"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListMine godoc
// @Summary      Own transactions
// @Tags         transactions
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query  int  false  "Page size, 1 to 100"
// @Param        offset  query  int  false  "Offset"
// @Success      200  {array}  Transaction
// @Failure      400  {object}  api.ErrorResponse
// @Router       /transactions [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPage)))
	if err != nil || limit < 1 || limit > MaxPage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	txs, err := h.recorder.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.Error("list transactions failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}
