package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SalesRecord captures one store/product/day of recorded sales. Records are
// immutable once ingested; re-uploads merge by upsert on the natural key.
type SalesRecord struct {
	Date      time.Time       `json:"date"`
	StoreID   string          `json:"store_id"`
	ProductID string          `json:"product_id"`
	UnitsSold int             `json:"units_sold"`
	UnitPrice decimal.Decimal `json:"unit_price"` // zero when not supplied
}

// Key returns the natural key (date, store, product) for upsert merging.
func (s SalesRecord) Key() string {
	return s.Date.Format(DateLayout) + "|" + s.StoreID + "|" + s.ProductID
}

// Validate reports whether the record is usable by the pipeline.
func (s SalesRecord) Validate() error {
	switch {
	case s.Date.IsZero():
		return errors.New("sales record: date is required")
	case s.StoreID == "":
		return errors.New("sales record: store_id is required")
	case s.ProductID == "":
		return errors.New("sales record: product_id is required")
	case s.UnitsSold < 0:
		return errors.New("sales record: units_sold must not be negative")
	case s.UnitPrice.IsNegative():
		return errors.New("sales record: unit_price must not be negative")
	}
	return nil
}

// DateLayout is the canonical, day-granular date format used across the model.
const DateLayout = "2006-01-02"

// DateOf truncates a timestamp to its UTC calendar day. Every snapshot and
// record date is normalized through this before storage or comparison.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StoreProduct identifies a store/product pair.
type StoreProduct struct {
	StoreID   string
	ProductID string
}
