package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

type triggerRunRequest struct {
	SnapshotDate string `json:"snapshot_date" binding:"required"`
}

// TriggerRun executes the full pipeline for the requested snapshot date and
// returns the run summary.
func (a *API) TriggerRun(c *gin.Context) {
	var req triggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot_date is required"})
		return
	}

	snapshotDate, err := time.Parse(models.DateLayout, req.SnapshotDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot_date must be formatted as YYYY-MM-DD"})
		return
	}

	summary, err := a.Pipeline.Run(c.Request.Context(), snapshotDate)
	if err != nil {
		a.Logger.Error("pipeline run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline run failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
