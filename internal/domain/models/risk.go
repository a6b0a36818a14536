package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostTier records which step of the unit-cost fallback chain produced the
// cost used in a risk score, so consumers can weigh the number accordingly.
type CostTier string

const (
	// CostTierBatch means the batch carried its own unit cost.
	CostTierBatch CostTier = "BATCH"
	// CostTierProductAvg means the average cost across all batches of the
	// product was substituted.
	CostTierProductAvg CostTier = "PRODUCT_AVG"
	// CostTierDefault means the configured default cost was substituted.
	CostTierDefault CostTier = "DEFAULT"
)

// Valid reports whether the value is one of the closed set.
func (c CostTier) Valid() bool {
	return c == CostTierBatch || c == CostTierProductAvg || c == CostTierDefault
}

// RiskScore quantifies the expiry risk of one inventory batch at a snapshot
// date. Rows are recomputed wholesale each run so they always agree with the
// velocity snapshots and inventory batches of the same date.
type RiskScore struct {
	SnapshotDate          time.Time       `json:"snapshot_date"`
	StoreID               string          `json:"store_id"`
	ProductID             string          `json:"product_id"`
	BatchID               string          `json:"batch_id"`
	DaysToExpiry          int             `json:"days_to_expiry"`
	ExpectedSalesToExpiry float64         `json:"expected_sales_to_expiry"`
	AtRiskUnits           float64         `json:"at_risk_units"`
	AtRiskValue           decimal.Decimal `json:"at_risk_value"`
	RiskScore             float64         `json:"risk_score"`
	UnitCost              decimal.Decimal `json:"unit_cost"`
	CostTier              CostTier        `json:"cost_tier"`
	Completeness          Completeness    `json:"data_completeness"`
}

// Key returns the natural key (snapshot_date, store, product, batch).
func (r RiskScore) Key() string {
	return r.SnapshotDate.Format(DateLayout) + "|" + r.StoreID + "|" + r.ProductID + "|" + r.BatchID
}
