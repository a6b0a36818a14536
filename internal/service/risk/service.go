// Package risk implements the risk scoring engine: a 0-100 expiry-risk
// composite per inventory batch, with at-risk unit and value estimates.
package risk

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// Weights of the composite score. Ratio dominates, urgency second, value a
// tie-breaker that keeps very expensive batches visible.
const (
	ratioWeight   = 0.50
	urgencyWeight = 0.35
	valueWeight   = 0.15
)

// Config carries the scoring tunables.
type Config struct {
	// DefaultUnitCost terminates the cost fallback chain; must be positive.
	DefaultUnitCost decimal.Decimal
	// UrgencyHalfLifeDays is the days-to-expiry at which the urgency factor
	// has decayed to one half.
	UrgencyHalfLifeDays float64
	// ValueLogCap is the at-risk value at which the log-scaled value factor
	// saturates at 1.
	ValueLogCap float64
}

// Engine scores inventory batches against the velocity snapshots of the same
// date. It is a pure function of its inputs.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine wires a risk scoring engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Score computes one risk row per inventory batch. Batches without a matching
// velocity snapshot are scored against a zero-velocity INSUFFICIENT
// substitute, never skipped. Output is ordered by natural key.
func (e *Engine) Score(snapshotDate time.Time, batches []models.InventoryBatch, velocities []models.VelocitySnapshot) []models.RiskScore {
	snapshotDate = models.DateOf(snapshotDate)

	byPair := make(map[models.StoreProduct]models.VelocitySnapshot, len(velocities))
	for _, v := range velocities {
		byPair[v.Pair()] = v
	}
	costs := newCostResolver(batches, e.cfg.DefaultUnitCost)

	rows := make([]models.RiskScore, 0, len(batches))
	substituted := 0
	for _, batch := range batches {
		vel, ok := byPair[models.StoreProduct{StoreID: batch.StoreID, ProductID: batch.ProductID}]
		if !ok {
			vel = models.VelocitySnapshot{
				AsOfDate:     snapshotDate,
				StoreID:      batch.StoreID,
				ProductID:    batch.ProductID,
				Completeness: models.CompletenessInsufficient,
			}
			substituted++
		}
		rows = append(rows, e.scoreBatch(snapshotDate, batch, vel, costs))
	}

	if substituted > 0 {
		e.logger.Warn("batches scored without a velocity snapshot",
			zap.Time("snapshot_date", snapshotDate),
			zap.Int("count", substituted))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Key() < rows[j].Key() })
	return rows
}

func (e *Engine) scoreBatch(snapshotDate time.Time, batch models.InventoryBatch, vel models.VelocitySnapshot, costs *costResolver) models.RiskScore {
	days := int(models.DateOf(batch.ExpiryDate).Sub(snapshotDate).Hours() / 24)

	// Already-expired batches sell nothing before expiry but drive urgency
	// to its maximum.
	expected := 0.0
	if days > 0 {
		expected = vel.V14 * float64(days)
	}
	atRisk := math.Max(0, float64(batch.OnHandQty)-expected)

	cost, tier := costs.resolve(batch)
	value := cost.Mul(decimal.NewFromFloat(atRisk))

	return models.RiskScore{
		SnapshotDate:          snapshotDate,
		StoreID:               batch.StoreID,
		ProductID:             batch.ProductID,
		BatchID:               batch.BatchID,
		DaysToExpiry:          days,
		ExpectedSalesToExpiry: expected,
		AtRiskUnits:           atRisk,
		AtRiskValue:           value,
		RiskScore:             e.composite(atRisk, batch.OnHandQty, days, value),
		UnitCost:              cost,
		CostTier:              tier,
		Completeness:          vel.Completeness,
	}
}

// composite blends the at-risk ratio, an urgency factor and a log-scaled
// value factor into a 0-100 score. A batch with nothing at risk scores 0
// outright, whatever its expiry.
func (e *Engine) composite(atRisk float64, onHand int, daysToExpiry int, value decimal.Decimal) float64 {
	if atRisk <= 0 || onHand <= 0 {
		return 0
	}

	ratio := atRisk / float64(onHand)
	score := 100 * (ratioWeight*ratio +
		urgencyWeight*e.urgency(daysToExpiry) +
		valueWeight*e.valueFactor(value))

	score = math.Round(score*10) / 10
	return math.Min(100, math.Max(0, score))
}

// urgency is 1 at or past expiry and decays hyperbolically with the
// configured half-life, monotonically non-increasing in days-to-expiry.
func (e *Engine) urgency(daysToExpiry int) float64 {
	if daysToExpiry <= 0 {
		return 1
	}
	return 1 / (1 + float64(daysToExpiry)/e.cfg.UrgencyHalfLifeDays)
}

// valueFactor grows logarithmically in the at-risk value and saturates at the
// configured cap, keeping a handful of very expensive batches from dominating
// the scale.
func (e *Engine) valueFactor(value decimal.Decimal) float64 {
	v := value.InexactFloat64()
	if v <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(v)/math.Log1p(e.cfg.ValueLogCap))
}
