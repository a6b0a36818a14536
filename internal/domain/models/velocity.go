package models

import "time"

// Completeness flags whether a velocity snapshot rests on enough trailing
// sales history to be trusted downstream.
type Completeness string

const (
	// CompletenessOK means at least half of the trailing 30 days had a record.
	CompletenessOK Completeness = "OK"
	// CompletenessInsufficient marks pairs with fewer than half of the
	// trailing 30 days recorded; the flag propagates onto risk scores so the
	// explanation boundary can cite the caveat instead of fabricating
	// certainty.
	CompletenessInsufficient Completeness = "INSUFFICIENT"
)

// Valid reports whether the value is one of the closed set.
func (c Completeness) Valid() bool {
	return c == CompletenessOK || c == CompletenessInsufficient
}

// VelocitySnapshot holds rolling sales-velocity metrics for a store/product
// pair at an as-of date. Owned exclusively by the feature engine and
// recomputed idempotently for any as-of date; downstream components read only.
type VelocitySnapshot struct {
	AsOfDate     time.Time    `json:"as_of_date"`
	StoreID      string       `json:"store_id"`
	ProductID    string       `json:"product_id"`
	V7           float64      `json:"v7"`
	V14          float64      `json:"v14"`
	V30          float64      `json:"v30"`
	Volatility   float64      `json:"volatility"`
	DaysWithData int          `json:"days_with_data"`
	Completeness Completeness `json:"data_completeness"`
}

// Pair returns the store/product pair the snapshot belongs to.
func (v VelocitySnapshot) Pair() StoreProduct {
	return StoreProduct{StoreID: v.StoreID, ProductID: v.ProductID}
}
