package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/repository"
)

// ListRisk returns the risk rows of a snapshot date, filtered by store,
// category, minimum score and maximum days-to-expiry, ordered by descending
// risk score.
func (a *API) ListRisk(c *gin.Context) {
	date, ok := parseDateQuery(c, "date", true)
	if !ok {
		return
	}

	query := repository.RiskQuery{
		SnapshotDate: date,
		StoreID:      c.Query("store"),
	}

	if raw := c.Query("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be numeric"})
			return
		}
		query.MinScore = minScore
	}

	if raw := c.Query("max_days"); raw != "" {
		maxDays, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_days must be an integer"})
			return
		}
		query.MaxDaysToExpiry = &maxDays
	}

	if category := c.Query("category"); category != "" {
		ids, err := a.productIDsForCategory(c, category)
		if err != nil {
			a.Logger.Error("failed to resolve category", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve category"})
			return
		}
		if len(ids) == 0 {
			c.JSON(http.StatusOK, gin.H{"rows": []any{}, "count": 0})
			return
		}
		query.ProductIDs = ids
	}

	rows, err := a.Risks.Query(c.Request.Context(), query)
	if err != nil {
		a.Logger.Error("failed to query risk rows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load risk rows"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (a *API) productIDsForCategory(c *gin.Context, category string) ([]string, error) {
	products, err := a.Products.ListAll(c.Request.Context())
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, p := range products {
		if p.Category == category {
			ids = append(ids, p.ProductID)
		}
	}
	return ids, nil
}
