package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/service/kpi"
)

// KPIOverview returns the financial rollup for a date range with optional
// store and category filters. An empty range yields zero-valued metrics.
func (a *API) KPIOverview(c *gin.Context) {
	from, ok := parseDateQuery(c, "from", true)
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "to", true)
	if !ok {
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not precede from"})
		return
	}

	report, err := a.KPI.Overview(c.Request.Context(), kpi.Filter{
		From:     from,
		To:       to,
		StoreID:  c.Query("store"),
		Category: c.Query("category"),
	})
	if err != nil {
		a.Logger.Error("failed to compute KPI overview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute KPIs"})
		return
	}

	c.JSON(http.StatusOK, report)
}
