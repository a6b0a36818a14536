package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// The ingestion endpoints accept typed, already column-mapped rows; they
// validate domain constraints only. Rows failing validation are skipped and
// counted, never failing the whole upload.

// IngestSales upserts a batch of daily sales records.
func (a *API) IngestSales(c *gin.Context) {
	var rows []models.SalesRecord
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON array of sales records"})
		return
	}

	valid := rows[:0]
	skipped := 0
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			a.Logger.Debug("skipping invalid sales record", zap.Error(err))
			skipped++
			continue
		}
		valid = append(valid, row)
	}

	written, err := a.Sales.UpsertBatch(c.Request.Context(), valid)
	if err != nil {
		a.Logger.Error("failed to upsert sales records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store sales records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"written": written, "skipped": skipped})
}

// IngestInventory upserts a batch of inventory snapshot rows.
func (a *API) IngestInventory(c *gin.Context) {
	var rows []models.InventoryBatch
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON array of inventory batches"})
		return
	}

	valid := rows[:0]
	skipped := 0
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			a.Logger.Debug("skipping invalid inventory batch", zap.Error(err))
			skipped++
			continue
		}
		valid = append(valid, row)
	}

	written, err := a.Inventory.UpsertBatch(c.Request.Context(), valid)
	if err != nil {
		a.Logger.Error("failed to upsert inventory batches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store inventory batches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"written": written, "skipped": skipped})
}

// IngestProducts upserts a batch of catalog rows.
func (a *API) IngestProducts(c *gin.Context) {
	var rows []models.Product
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON array of products"})
		return
	}

	valid := rows[:0]
	skipped := 0
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			a.Logger.Debug("skipping invalid product", zap.Error(err))
			skipped++
			continue
		}
		valid = append(valid, row)
	}

	written, err := a.Products.UpsertBatch(c.Request.Context(), valid)
	if err != nil {
		a.Logger.Error("failed to upsert products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"written": written, "skipped": skipped})
}

// IngestSheets pulls sales, inventory and product rows from the configured
// spreadsheet in one shot.
func (a *API) IngestSheets(c *gin.Context) {
	if a.SheetsSource == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sheets ingestion is not configured"})
		return
	}

	ctx := c.Request.Context()

	sales, salesSkipped, err := a.SheetsSource.FetchSales(ctx)
	if err != nil {
		a.Logger.Error("failed to fetch sales from sheet", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read sales sheet"})
		return
	}
	inventory, invSkipped, err := a.SheetsSource.FetchInventory(ctx)
	if err != nil {
		a.Logger.Error("failed to fetch inventory from sheet", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read inventory sheet"})
		return
	}
	products, prodSkipped, err := a.SheetsSource.FetchProducts(ctx)
	if err != nil {
		a.Logger.Error("failed to fetch products from sheet", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read products sheet"})
		return
	}

	salesWritten, err := a.Sales.UpsertBatch(ctx, sales)
	if err != nil {
		a.Logger.Error("failed to upsert sheet sales", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store sales records"})
		return
	}
	invWritten, err := a.Inventory.UpsertBatch(ctx, inventory)
	if err != nil {
		a.Logger.Error("failed to upsert sheet inventory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store inventory batches"})
		return
	}
	prodWritten, err := a.Products.UpsertBatch(ctx, products)
	if err != nil {
		a.Logger.Error("failed to upsert sheet products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sales":     gin.H{"written": salesWritten, "skipped": salesSkipped},
		"inventory": gin.H{"written": invWritten, "skipped": invSkipped},
		"products":  gin.H{"written": prodWritten, "skipped": prodSkipped},
	})
}
