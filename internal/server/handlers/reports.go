package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
	"github.com/mbodje/shelfwatch/internal/service/report"
)

// RiskReport streams the snapshot's risk scores and proposed actions as an
// Excel workbook.
func (a *API) RiskReport(c *gin.Context) {
	date, ok := parseDateQuery(c, "date", true)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	risks, err := a.Risks.Query(ctx, repository.RiskQuery{SnapshotDate: date})
	if err != nil {
		a.Logger.Error("failed to load risk scores for report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load risk scores"})
		return
	}

	actions, _, err := a.Actions.List(ctx, repository.ActionQuery{SnapshotDate: date})
	if err != nil {
		a.Logger.Error("failed to load actions for report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load actions"})
		return
	}

	f, err := report.BuildWorkbook(risks, actions)
	if err != nil {
		a.Logger.Error("failed to build risk workbook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("risk-%s.xlsx", date.Format(models.DateLayout))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		a.Logger.Error("failed to stream risk workbook", zap.Error(err))
	}
}
