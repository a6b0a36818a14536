// Package actions implements the action generator: ranked transfer, markdown
// and liquidation recommendations for at-risk batches, each with a
// non-negative expected savings estimate.
package actions

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// Config carries the generator tunables.
type Config struct {
	// MinActionScore gates which risk rows are worth acting on.
	MinActionScore float64
	// TransferCostPerUnit estimates inter-store shipping per unit moved.
	TransferCostPerUnit decimal.Decimal
	// MarkdownUpliftMultiplier scales how strongly a discount accelerates
	// baseline velocity.
	MarkdownUpliftMultiplier float64
	// DefaultPriceMarkup derives a selling price from unit cost when no
	// recorded or list price exists.
	DefaultPriceMarkup decimal.Decimal
	// Liquidation recovery fraction of unit cost, plus handling costs.
	LiquidationRecoveryRate decimal.Decimal
	LiquidationFixedCost    decimal.Decimal
	LiquidationCostPerUnit  decimal.Decimal
}

// Inputs is the complete snapshot view the generator needs. Transfer
// evaluation requires the full velocity and inventory tables; a partial view
// would pick wrong destinations.
type Inputs struct {
	SnapshotDate  time.Time
	Risks         []models.RiskScore
	Velocities    []models.VelocitySnapshot
	Batches       []models.InventoryBatch
	Products      []models.Product
	SellingPrices map[string]decimal.Decimal // recent average per product
}

// Result carries the ranked proposals plus data-integrity warning counts
// (risk rows referencing batches absent from the snapshot).
type Result struct {
	Actions           []models.Action
	IntegrityWarnings int
}

// Generator turns risk rows into remediation proposals. Pure apart from ID
// generation and timestamps.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// NewGenerator wires an action generator.
func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// candidate is one evaluated remediation option for a batch.
type candidate struct {
	action  models.Action
	savings decimal.Decimal
}

// Generate evaluates transfer, markdown and liquidation for every actionable
// risk row and emits at most one PROPOSED action per batch: the option with
// the highest positive expected savings, ties resolved in that order. Batches
// with no positive-savings option yield nothing, which is a legitimate
// terminal outcome and not an error.
func (g *Generator) Generate(now time.Time, in Inputs) Result {
	snapshotDate := models.DateOf(in.SnapshotDate)

	velocities := make(map[models.StoreProduct]models.VelocitySnapshot, len(in.Velocities))
	for _, v := range in.Velocities {
		velocities[v.Pair()] = v
	}

	batches := make(map[string]models.InventoryBatch, len(in.Batches))
	onHand := make(map[models.StoreProduct]int)
	stores := make(map[string]bool)
	for _, b := range in.Batches {
		batches[b.Key()] = b
		onHand[models.StoreProduct{StoreID: b.StoreID, ProductID: b.ProductID}] += b.OnHandQty
		stores[b.StoreID] = true
	}

	listPrices := make(map[string]decimal.Decimal, len(in.Products))
	for _, p := range in.Products {
		listPrices[p.ProductID] = p.ListPrice
	}

	// Deterministic batch order regardless of input ordering.
	risks := make([]models.RiskScore, len(in.Risks))
	copy(risks, in.Risks)
	sort.Slice(risks, func(i, j int) bool { return risks[i].Key() < risks[j].Key() })

	result := Result{}
	scoreByBatch := make(map[string]float64, len(risks))
	for _, r := range risks {
		scoreByBatch[r.Key()] = r.RiskScore

		if _, ok := batches[r.Key()]; !ok {
			// Risk row for a batch no longer in the snapshot; exclude and
			// surface rather than propagate.
			result.IntegrityWarnings++
			g.logger.Warn("risk row references missing batch",
				zap.String("store_id", r.StoreID),
				zap.String("product_id", r.ProductID),
				zap.String("batch_id", r.BatchID))
			continue
		}

		if r.AtRiskUnits < 1 || r.RiskScore < g.cfg.MinActionScore {
			continue
		}

		var candidates []candidate
		if c, ok := g.evaluateTransfer(r, velocities, onHand); ok {
			candidates = append(candidates, c)
		}
		if c, ok := g.evaluateMarkdown(r, velocities, in.SellingPrices, listPrices); ok {
			candidates = append(candidates, c)
		}
		if c, ok := g.evaluateLiquidation(r); ok {
			candidates = append(candidates, c)
		}

		best, found := pickBest(candidates)
		if !found {
			continue
		}

		best.action.ActionID = uuid.NewString()
		best.action.CreatedAt = now
		best.action.SnapshotDate = snapshotDate
		best.action.SourceStore = r.StoreID
		best.action.ProductID = r.ProductID
		best.action.BatchID = r.BatchID
		best.action.ExpectedSavings = best.savings
		best.action.Status = models.StatusProposed
		result.Actions = append(result.Actions, best.action)
	}

	// Final ranking: descending savings, then descending risk score, then
	// batch identifier.
	sort.Slice(result.Actions, func(i, j int) bool {
		a, b := result.Actions[i], result.Actions[j]
		if !a.ExpectedSavings.Equal(b.ExpectedSavings) {
			return a.ExpectedSavings.GreaterThan(b.ExpectedSavings)
		}
		sa, sb := scoreByBatch[riskKey(a)], scoreByBatch[riskKey(b)]
		if sa != sb {
			return sa > sb
		}
		return a.BatchID < b.BatchID
	})

	return result
}

func riskKey(a models.Action) string {
	return a.SnapshotDate.Format(models.DateLayout) + "|" + a.SourceStore + "|" + a.ProductID + "|" + a.BatchID
}

// pickBest returns the candidate with the highest positive savings. Slice
// order is the tie-break, so callers append in preference order.
func pickBest(candidates []candidate) (candidate, bool) {
	var best candidate
	found := false
	for _, c := range candidates {
		if !c.savings.IsPositive() {
			continue
		}
		if !found || c.savings.GreaterThan(best.savings) {
			best = c
			found = true
		}
	}
	return best, found
}

// evaluateTransfer scans every other store carrying the product for the
// destination that maximizes savings. A destination qualifies when its v14
// exceeds the source's and it can absorb units before the batch expires:
// capacity = v14_dest * days_to_expiry - on_hand_dest.
func (g *Generator) evaluateTransfer(r models.RiskScore, velocities map[models.StoreProduct]models.VelocitySnapshot, onHand map[models.StoreProduct]int) (candidate, bool) {
	if r.DaysToExpiry <= 0 {
		return candidate{}, false
	}
	sourceV14 := velocities[models.StoreProduct{StoreID: r.StoreID, ProductID: r.ProductID}].V14

	var (
		bestStore   string
		bestQty     int
		bestSavings decimal.Decimal
		found       bool
	)
	for pair, vel := range velocities {
		if pair.ProductID != r.ProductID || pair.StoreID == r.StoreID {
			continue
		}
		if vel.V14 <= sourceV14 {
			continue
		}

		capacity := vel.V14*float64(r.DaysToExpiry) - float64(onHand[pair])
		if capacity <= 0 {
			continue
		}

		qty := int(math.Floor(math.Min(r.AtRiskUnits, capacity)))
		if qty < 1 {
			continue
		}

		savings := decimal.NewFromInt(int64(qty)).Mul(r.UnitCost.Sub(g.cfg.TransferCostPerUnit))
		switch {
		case !found,
			savings.GreaterThan(bestSavings),
			savings.Equal(bestSavings) && pair.StoreID < bestStore:
			bestStore, bestQty, bestSavings, found = pair.StoreID, qty, savings, true
		}
	}

	if !found {
		return candidate{}, false
	}
	return candidate{
		action: models.Action{
			Type:      models.ActionTransfer,
			DestStore: bestStore,
			Quantity:  bestQty,
		},
		savings: bestSavings,
	}, true
}

// evaluateMarkdown prices a risk-tiered discount: the uplift revenue from
// additional units cleared, net of margin given away on units that would have
// sold anyway.
func (g *Generator) evaluateMarkdown(r models.RiskScore, velocities map[models.StoreProduct]models.VelocitySnapshot, sellingPrices, listPrices map[string]decimal.Decimal) (candidate, bool) {
	price := g.resolvePrice(r, sellingPrices, listPrices)
	if !price.IsPositive() {
		return candidate{}, false
	}

	discount := discountForScore(r.RiskScore)
	vel := velocities[models.StoreProduct{StoreID: r.StoreID, ProductID: r.ProductID}]

	days := math.Max(0, float64(r.DaysToExpiry))
	upliftUnits := math.Min(r.AtRiskUnits, vel.V14*days*g.cfg.MarkdownUpliftMultiplier*discount)
	baselineUnits := r.ExpectedSalesToExpiry

	d := decimal.NewFromFloat(discount)
	discounted := price.Mul(decimal.NewFromInt(1).Sub(d))
	revenue := discounted.Mul(decimal.NewFromFloat(upliftUnits))
	givenAway := price.Mul(d).Mul(decimal.NewFromFloat(baselineUnits))
	savings := revenue.Sub(givenAway)

	return candidate{
		action: models.Action{
			Type:        models.ActionMarkdown,
			Quantity:    int(math.Floor(r.AtRiskUnits)),
			DiscountPct: math.Round(discount*1000) / 10,
		},
		savings: savings,
	}, true
}

// discountForScore maps risk severity tiers to discount fractions: 5% up to
// 30, 10% up to 60, then 15%-25% scaled linearly across the high tier.
func discountForScore(score float64) float64 {
	switch {
	case score <= 30:
		return 0.05
	case score <= 60:
		return 0.10
	default:
		return math.Min(0.25, 0.15+(score-60)/40*0.10)
	}
}

// resolvePrice falls back from the recent recorded selling price to the
// catalog list price to a cost-plus-markup estimate.
func (g *Generator) resolvePrice(r models.RiskScore, sellingPrices, listPrices map[string]decimal.Decimal) decimal.Decimal {
	if p, ok := sellingPrices[r.ProductID]; ok && p.IsPositive() {
		return p
	}
	if p, ok := listPrices[r.ProductID]; ok && p.IsPositive() {
		return p
	}
	return r.UnitCost.Mul(g.cfg.DefaultPriceMarkup)
}

// evaluateLiquidation values the fallback channel: a configured fraction of
// cost recovered per unit, minus handling.
func (g *Generator) evaluateLiquidation(r models.RiskScore) (candidate, bool) {
	qty := int(math.Floor(r.AtRiskUnits))
	if qty < 1 {
		return candidate{}, false
	}

	units := decimal.NewFromInt(int64(qty))
	recovery := g.cfg.LiquidationRecoveryRate.Mul(r.UnitCost).Mul(units)
	handling := g.cfg.LiquidationFixedCost.Add(g.cfg.LiquidationCostPerUnit.Mul(units))
	savings := recovery.Sub(handling)

	return candidate{
		action: models.Action{
			Type:     models.ActionLiquidate,
			Quantity: qty,
		},
		savings: savings,
	}, true
}
