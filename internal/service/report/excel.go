// Package report renders snapshot risk scores and proposed actions into an
// Excel workbook for the reporting surface.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

const (
	riskSheet   = "Risk"
	actionSheet = "Actions"
)

// BuildWorkbook renders one sheet of risk rows and one of actions. The caller
// is responsible for closing the returned file.
func BuildWorkbook(risks []models.RiskScore, actions []models.Action) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", riskSheet); err != nil {
		return nil, fmt.Errorf("rename risk sheet: %w", err)
	}
	if _, err := f.NewSheet(actionSheet); err != nil {
		return nil, fmt.Errorf("create actions sheet: %w", err)
	}

	riskHeader := []interface{}{
		"Snapshot Date", "Store", "Product", "Batch", "Days To Expiry",
		"Expected Sales", "At-Risk Units", "At-Risk Value", "Risk Score",
		"Cost Tier", "Data Completeness",
	}
	if err := f.SetSheetRow(riskSheet, "A1", &riskHeader); err != nil {
		return nil, fmt.Errorf("write risk header: %w", err)
	}
	for i, r := range risks {
		row := []interface{}{
			r.SnapshotDate.Format(models.DateLayout),
			r.StoreID,
			r.ProductID,
			r.BatchID,
			r.DaysToExpiry,
			r.ExpectedSalesToExpiry,
			r.AtRiskUnits,
			r.AtRiskValue.Round(2).InexactFloat64(),
			r.RiskScore,
			string(r.CostTier),
			string(r.Completeness),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(riskSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write risk row %d: %w", i+2, err)
		}
	}

	actionHeader := []interface{}{
		"Action ID", "Type", "Source Store", "Dest Store", "Product", "Batch",
		"Quantity", "Discount %", "Expected Savings", "Status",
	}
	if err := f.SetSheetRow(actionSheet, "A1", &actionHeader); err != nil {
		return nil, fmt.Errorf("write action header: %w", err)
	}
	for i, a := range actions {
		row := []interface{}{
			a.ActionID,
			string(a.Type),
			a.SourceStore,
			a.DestStore,
			a.ProductID,
			a.BatchID,
			a.Quantity,
			a.DiscountPct,
			a.ExpectedSavings.Round(2).InexactFloat64(),
			string(a.Status),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(actionSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write action row %d: %w", i+2, err)
		}
	}

	return f, nil
}
