package membership

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPlans godoc
// @Summary      List membership plans
// @Tags         memberships
// @Produce      json
// @Success      200  {array}  Plan
// @Router       /memberships/plans [get]
func ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, Plans())
}
