package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryBatch is a distinguishable inventory lot with its own expiry date,
// keyed by (snapshot_date, store, product, batch). Batches are only ever
// replaced wholesale by re-ingesting a snapshot, never partially updated.
type InventoryBatch struct {
	SnapshotDate time.Time       `json:"snapshot_date"`
	StoreID      string          `json:"store_id"`
	ProductID    string          `json:"product_id"`
	BatchID      string          `json:"batch_id"`
	ExpiryDate   time.Time       `json:"expiry_date"`
	OnHandQty    int             `json:"on_hand_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"` // zero when unknown
}

// Key returns the natural key used for upsert merging.
func (b InventoryBatch) Key() string {
	return b.SnapshotDate.Format(DateLayout) + "|" + b.StoreID + "|" + b.ProductID + "|" + b.BatchID
}

// Validate reports whether the batch is usable by the pipeline.
func (b InventoryBatch) Validate() error {
	switch {
	case b.SnapshotDate.IsZero():
		return errors.New("inventory batch: snapshot_date is required")
	case b.StoreID == "":
		return errors.New("inventory batch: store_id is required")
	case b.ProductID == "":
		return errors.New("inventory batch: product_id is required")
	case b.BatchID == "":
		return errors.New("inventory batch: batch_id is required")
	case b.ExpiryDate.IsZero():
		return errors.New("inventory batch: expiry_date is required")
	case b.OnHandQty < 0:
		return errors.New("inventory batch: on_hand_qty must not be negative")
	case b.UnitCost.IsNegative():
		return errors.New("inventory batch: unit_cost must not be negative")
	}
	return nil
}

// Product carries catalog information used for category filtering and as a
// pricing fallback when a product has no recorded selling price.
type Product struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	ListPrice decimal.Decimal `json:"list_price"` // zero when unknown
}

// Validate reports whether the product row is usable.
func (p Product) Validate() error {
	if p.ProductID == "" {
		return errors.New("product: product_id is required")
	}
	if p.ListPrice.IsNegative() {
		return errors.New("product: list_price must not be negative")
	}
	return nil
}
