// Package features implements the feature engine: rolling sales velocity and
// volatility metrics per store/product pair for a given as-of date.
package features

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

const (
	windowDays = 30
	// minimumRecordedDays is the completeness threshold: pairs with fewer
	// recorded days in the trailing window are flagged INSUFFICIENT.
	minimumRecordedDays = windowDays / 2
)

// Engine computes velocity snapshots. It is a pure function of its inputs and
// is safe to run repeatedly for the same as-of date.
type Engine struct {
	workers int
	logger  *zap.Logger
}

// NewEngine wires a feature engine with a bounded worker pool size.
func NewEngine(workers int, logger *zap.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{workers: workers, logger: logger}
}

// Compute builds one velocity snapshot per store/product pair for the as-of
// date. Pairs come from the sales history plus extraPairs (inventory pairs
// with no sales yet); a pair with no history at all yields a zero-velocity,
// INSUFFICIENT snapshot rather than an error. The trailing window covers the
// 30 calendar days ending the day before asOfDate. Work is spread across the
// pool since pairs are independent; results are sorted before returning so
// output is deterministic regardless of scheduling.
func (e *Engine) Compute(asOfDate time.Time, sales []models.SalesRecord, extraPairs []models.StoreProduct) []models.VelocitySnapshot {
	asOfDate = models.DateOf(asOfDate)

	// Daily units per pair, indexed by days before asOfDate (1..30).
	type pairKey struct{ store, product string }
	series := make(map[pairKey]map[int]float64)
	for _, rec := range sales {
		back := int(asOfDate.Sub(models.DateOf(rec.Date)).Hours() / 24)
		if back < 1 || back > windowDays {
			continue
		}
		key := pairKey{rec.StoreID, rec.ProductID}
		if series[key] == nil {
			series[key] = make(map[int]float64)
		}
		series[key][back] += float64(rec.UnitsSold)
	}
	for _, p := range extraPairs {
		key := pairKey{p.StoreID, p.ProductID}
		if series[key] == nil {
			series[key] = make(map[int]float64)
		}
	}

	pairs := make([]pairKey, 0, len(series))
	for key := range series {
		pairs = append(pairs, key)
	}

	jobs := make(chan pairKey)
	results := make([]models.VelocitySnapshot, 0, len(pairs))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				snap := computePair(asOfDate, key.store, key.product, series[key])
				mu.Lock()
				results = append(results, snap)
				mu.Unlock()
			}
		}()
	}
	for _, key := range pairs {
		jobs <- key
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].StoreID != results[j].StoreID {
			return results[i].StoreID < results[j].StoreID
		}
		return results[i].ProductID < results[j].ProductID
	})

	e.logger.Debug("computed velocity snapshots",
		zap.Time("as_of", asOfDate),
		zap.Int("pairs", len(results)))

	return results
}

// computePair derives the metrics for one pair from its daily series. Days
// with no record contribute zero to the sums but still count toward the
// window denominator; only DaysWithData reveals how sparse the history was.
func computePair(asOfDate time.Time, storeID, productID string, daily map[int]float64) models.VelocitySnapshot {
	var sum7, sum14, sum30 float64
	for back, units := range daily {
		sum30 += units
		if back <= 14 {
			sum14 += units
		}
		if back <= 7 {
			sum7 += units
		}
	}

	snap := models.VelocitySnapshot{
		AsOfDate:     asOfDate,
		StoreID:      storeID,
		ProductID:    productID,
		V7:           sum7 / 7,
		V14:          sum14 / 14,
		V30:          sum30 / windowDays,
		DaysWithData: len(daily),
		Volatility:   volatility(daily),
		Completeness: models.CompletenessOK,
	}
	if snap.DaysWithData < minimumRecordedDays {
		snap.Completeness = models.CompletenessInsufficient
	}
	return snap
}

// volatility is the sample standard deviation of the zero-filled trailing
// 30-day series, or 0 when fewer than two days have records.
func volatility(daily map[int]float64) float64 {
	if len(daily) < 2 {
		return 0
	}

	var sum float64
	for _, units := range daily {
		sum += units
	}
	mean := sum / windowDays

	var sq float64
	for back := 1; back <= windowDays; back++ {
		diff := daily[back] - mean
		sq += diff * diff
	}
	return math.Sqrt(sq / (windowDays - 1))
}
