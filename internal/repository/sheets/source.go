// Package sheets adapts a Google Spreadsheet into an ingestion source for
// sales, inventory and product rows. Rows that fail to parse or validate are
// skipped and counted rather than failing the pull; the caller surfaces the
// counts to data-health reporting.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mbodje/shelfwatch/internal/config"
	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// Source reads typed rows from the configured spreadsheet.
type Source struct {
	service *sheetsapi.Service
	cfg     config.SheetsConfig
	logger  *zap.Logger
}

// NewSource builds a Google Sheets backed ingestion source.
func NewSource(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &Source{service: service, cfg: cfg, logger: logger}, nil
}

// FetchSales reads the sales range: date, store_id, product_id, units_sold,
// unit_price (optional). Returns the parsed rows and the skipped-row count.
func (s *Source) FetchSales(ctx context.Context) ([]models.SalesRecord, int, error) {
	rows, err := s.readRange(ctx, s.cfg.SalesRange)
	if err != nil {
		return nil, 0, err
	}

	var out []models.SalesRecord
	skipped := 0
	for i, row := range rows {
		if len(row) < 4 {
			skipped++
			continue
		}

		date, err := parseDate(row[0])
		if err != nil {
			s.logger.Debug("skip sales row with invalid date", zap.Int("row", i), zap.Error(err))
			skipped++
			continue
		}
		units, err := parseInt(row[3])
		if err != nil {
			s.logger.Debug("skip sales row with invalid units", zap.Int("row", i), zap.Error(err))
			skipped++
			continue
		}

		rec := models.SalesRecord{
			Date:      date,
			StoreID:   fmt.Sprint(row[1]),
			ProductID: fmt.Sprint(row[2]),
			UnitsSold: units,
		}
		if len(row) > 4 {
			if price, err := parseDecimal(row[4]); err == nil {
				rec.UnitPrice = price
			}
		}
		if err := rec.Validate(); err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// FetchInventory reads the inventory range: snapshot_date, store_id,
// product_id, batch_id, expiry_date, on_hand_qty, unit_cost (optional).
func (s *Source) FetchInventory(ctx context.Context) ([]models.InventoryBatch, int, error) {
	rows, err := s.readRange(ctx, s.cfg.InventoryRange)
	if err != nil {
		return nil, 0, err
	}

	var out []models.InventoryBatch
	skipped := 0
	for i, row := range rows {
		if len(row) < 6 {
			skipped++
			continue
		}

		snapshotDate, err := parseDate(row[0])
		if err != nil {
			s.logger.Debug("skip inventory row with invalid snapshot date", zap.Int("row", i), zap.Error(err))
			skipped++
			continue
		}
		expiryDate, err := parseDate(row[4])
		if err != nil {
			s.logger.Debug("skip inventory row with invalid expiry date", zap.Int("row", i), zap.Error(err))
			skipped++
			continue
		}
		qty, err := parseInt(row[5])
		if err != nil {
			skipped++
			continue
		}

		batch := models.InventoryBatch{
			SnapshotDate: snapshotDate,
			StoreID:      fmt.Sprint(row[1]),
			ProductID:    fmt.Sprint(row[2]),
			BatchID:      fmt.Sprint(row[3]),
			ExpiryDate:   expiryDate,
			OnHandQty:    qty,
		}
		if len(row) > 6 {
			if cost, err := parseDecimal(row[6]); err == nil {
				batch.UnitCost = cost
			}
		}
		if err := batch.Validate(); err != nil {
			skipped++
			continue
		}
		out = append(out, batch)
	}
	return out, skipped, nil
}

// FetchProducts reads the product range: product_id, name, category,
// list_price (optional).
func (s *Source) FetchProducts(ctx context.Context) ([]models.Product, int, error) {
	rows, err := s.readRange(ctx, s.cfg.ProductRange)
	if err != nil {
		return nil, 0, err
	}

	var out []models.Product
	skipped := 0
	for _, row := range rows {
		if len(row) < 3 {
			skipped++
			continue
		}

		product := models.Product{
			ProductID: fmt.Sprint(row[0]),
			Name:      fmt.Sprint(row[1]),
			Category:  fmt.Sprint(row[2]),
		}
		if len(row) > 3 {
			if price, err := parseDecimal(row[3]); err == nil {
				product.ListPrice = price
			}
		}
		if err := product.Validate(); err != nil {
			skipped++
			continue
		}
		out = append(out, product)
	}
	return out, skipped, nil
}

func (s *Source) readRange(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheetRange must not be empty")
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}
	return resp.Values, nil
}

func parseDate(value interface{}) (time.Time, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(str) > 10 {
		str = str[:10]
	}
	return time.Parse(models.DateLayout, str)
}

func parseInt(value interface{}) (int, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	return strconv.Atoi(str)
}

func parseDecimal(value interface{}) (decimal.Decimal, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return decimal.Decimal{}, fmt.Errorf("empty numeric value")
	}
	return decimal.NewFromString(str)
}
