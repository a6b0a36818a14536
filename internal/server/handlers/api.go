// Package handlers adapts the analytics services onto the HTTP surface.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
	"github.com/mbodje/shelfwatch/internal/repository/sheets"
	"github.com/mbodje/shelfwatch/internal/service/kpi"
	"github.com/mbodje/shelfwatch/internal/service/pipeline"
)

// API bundles the services and repositories the HTTP handlers operate on.
// SheetsSource is nil when the spreadsheet ingestion source is not configured.
type API struct {
	Pipeline     *pipeline.Service
	KPI          *kpi.Service
	Sales        repository.SalesRepository
	Inventory    repository.InventoryRepository
	Products     repository.ProductRepository
	Risks        repository.RiskRepository
	Actions      repository.ActionRepository
	Outcomes     repository.OutcomeRepository
	SheetsSource *sheets.Source
	Logger       *zap.Logger
}

// NewAPI constructs the HTTP handler set.
func NewAPI(api API) *API {
	if api.Logger == nil {
		api.Logger = zap.NewNop()
	}
	return &api
}

// parseDateQuery reads a YYYY-MM-DD query parameter. required=false returns a
// zero time for an absent parameter.
func parseDateQuery(c *gin.Context, name string, required bool) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			c.JSON(400, gin.H{"error": name + " query parameter is required"})
			return time.Time{}, false
		}
		return time.Time{}, true
	}

	parsed, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		c.JSON(400, gin.H{"error": name + " must be formatted as YYYY-MM-DD"})
		return time.Time{}, false
	}
	return models.DateOf(parsed), true
}
