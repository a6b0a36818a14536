package risk

import (
	"github.com/shopspring/decimal"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// costResolver implements the three-tier unit cost fallback: the batch's own
// cost, then the product's average cost across all stores and batches of the
// snapshot, then the configured default. The chain always terminates with a
// positive cost.
type costResolver struct {
	defaultCost decimal.Decimal
	productAvg  map[string]decimal.Decimal
}

func newCostResolver(batches []models.InventoryBatch, defaultCost decimal.Decimal) *costResolver {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, b := range batches {
		if b.UnitCost.IsPositive() {
			sums[b.ProductID] = sums[b.ProductID].Add(b.UnitCost)
			counts[b.ProductID]++
		}
	}

	avg := make(map[string]decimal.Decimal, len(sums))
	for id, sum := range sums {
		avg[id] = sum.Div(decimal.NewFromInt(int64(counts[id])))
	}

	return &costResolver{defaultCost: defaultCost, productAvg: avg}
}

func (c *costResolver) resolve(batch models.InventoryBatch) (decimal.Decimal, models.CostTier) {
	if batch.UnitCost.IsPositive() {
		return batch.UnitCost, models.CostTierBatch
	}
	if avg, ok := c.productAvg[batch.ProductID]; ok {
		return avg, models.CostTierProductAvg
	}
	return c.defaultCost, models.CostTierDefault
}
