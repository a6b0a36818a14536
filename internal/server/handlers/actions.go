package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

// ListActions returns a paginated action listing filtered by snapshot date
// and status.
func (a *API) ListActions(c *gin.Context) {
	date, ok := parseDateQuery(c, "date", false)
	if !ok {
		return
	}

	query := repository.ActionQuery{
		SnapshotDate: date,
		Page:         1,
		PageSize:     50,
	}

	if raw := c.Query("status"); raw != "" {
		status := models.ActionStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + raw})
			return
		}
		query.Status = status
	}
	if raw := c.Query("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			query.Page = page
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 && size <= 500 {
			query.PageSize = size
		}
	}

	actions, total, err := a.Actions.List(c.Request.Context(), query)
	if err != nil {
		a.Logger.Error("failed to list actions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load actions"})
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}

	c.JSON(http.StatusOK, gin.H{
		"actions":   actions,
		"total":     total,
		"page":      query.Page,
		"page_size": query.PageSize,
	})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateActionStatus is the approval-workflow boundary: the external workflow
// transitions PROPOSED -> APPROVED -> DONE or -> REJECTED. The pipeline
// itself never changes a status.
func (a *API) UpdateActionStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status := models.ActionStatus(req.Status)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}

	err := a.Actions.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
	case err != nil:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}

type recordOutcomeRequest struct {
	MeasuredAt     string  `json:"measured_at" binding:"required"`
	RecoveredValue float64 `json:"recovered_value"`
	ClearedUnits   int     `json:"cleared_units"`
	Notes          string  `json:"notes"`
}

// RecordOutcome appends the measured result of a completed action, written by
// the external operational process.
func (a *API) RecordOutcome(c *gin.Context) {
	var req recordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "measured_at is required"})
		return
	}

	measuredAt, err := time.Parse(models.DateLayout, req.MeasuredAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "measured_at must be formatted as YYYY-MM-DD"})
		return
	}
	if req.RecoveredValue < 0 || req.ClearedUnits < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recovered_value and cleared_units must not be negative"})
		return
	}

	actionID := c.Param("id")
	action, err := a.Actions.GetByID(c.Request.Context(), actionID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
		return
	}
	if err != nil {
		a.Logger.Error("failed to load action", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load action"})
		return
	}
	if action.Status != models.StatusDone {
		c.JSON(http.StatusConflict, gin.H{"error": "outcomes can only be recorded for DONE actions"})
		return
	}

	// One outcome per action, otherwise realized savings double-count.
	exists, err := a.Outcomes.HasForAction(c.Request.Context(), actionID)
	if err != nil {
		a.Logger.Error("failed to check existing outcome", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record outcome"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "an outcome is already recorded for this action"})
		return
	}

	outcome := models.ActionOutcome{
		ActionID:       actionID,
		MeasuredAt:     measuredAt,
		RecoveredValue: decimal.NewFromFloat(req.RecoveredValue),
		ClearedUnits:   req.ClearedUnits,
		Notes:          req.Notes,
	}
	if err := a.Outcomes.Append(c.Request.Context(), outcome); err != nil {
		a.Logger.Error("failed to record outcome", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record outcome"})
		return
	}

	c.Status(http.StatusCreated)
}
