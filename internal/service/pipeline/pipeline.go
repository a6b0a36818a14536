// Package pipeline orchestrates the snapshot run: feature engine, risk
// scoring, action generation, in that strict order, against one consistent
// snapshot of data.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
	actionsvc "github.com/mbodje/shelfwatch/internal/service/actions"
	"github.com/mbodje/shelfwatch/internal/service/features"
	"github.com/mbodje/shelfwatch/internal/service/risk"
)

// historyDays is the trailing sales window the feature engine consumes.
const historyDays = 30

// Service runs the full pipeline for a snapshot date. Concurrent runs of the
// same date are serialized (single-writer per snapshot date); distinct dates
// may run in parallel.
type Service struct {
	sales      repository.SalesRepository
	inventory  repository.InventoryRepository
	products   repository.ProductRepository
	velocities repository.VelocityRepository
	risks      repository.RiskRepository
	actions    repository.ActionRepository

	features  *features.Engine
	scorer    *risk.Engine
	generator *actionsvc.Generator

	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the pipeline orchestrator.
func NewService(
	sales repository.SalesRepository,
	inventory repository.InventoryRepository,
	products repository.ProductRepository,
	velocities repository.VelocityRepository,
	risks repository.RiskRepository,
	actions repository.ActionRepository,
	featureEngine *features.Engine,
	scorer *risk.Engine,
	generator *actionsvc.Generator,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sales:      sales,
		inventory:  inventory,
		products:   products,
		velocities: velocities,
		risks:      risks,
		actions:    actions,
		features:   featureEngine,
		scorer:     scorer,
		generator:  generator,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Run executes every stage for the snapshot date and reports what was
// computed. The engines are pure, so every stage runs in memory first and the
// derived sets are only persisted once the whole computation has succeeded; a
// persist failure rolls the already-written sets back to what was committed
// before the run. A failing run leaves the prior snapshot data untouched.
func (s *Service) Run(ctx context.Context, snapshotDate time.Time) (models.RunSummary, error) {
	snapshotDate = models.DateOf(snapshotDate)
	lock := s.dateLock(snapshotDate)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	summary := models.RunSummary{SnapshotDate: snapshotDate, StartedAt: started}
	log := s.logger.With(zap.Time("snapshot_date", snapshotDate))
	log.Info("pipeline run starting")

	// Stage inputs: one consistent load per run. Rows that slipped past
	// ingestion validation are dropped and counted, never propagated.
	from := snapshotDate.AddDate(0, 0, -historyDays)
	to := snapshotDate.AddDate(0, 0, -1)
	sales, err := s.sales.ListRange(ctx, from, to)
	if err != nil {
		return summary, fmt.Errorf("load sales history: %w", err)
	}
	batches, err := s.inventory.ListForSnapshot(ctx, snapshotDate)
	if err != nil {
		return summary, fmt.Errorf("load inventory snapshot: %w", err)
	}
	products, err := s.products.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("load products: %w", err)
	}
	sales, batches, skipped := dropInvalidRows(sales, batches)
	summary.SkippedRows = skipped
	if skipped > 0 {
		log.Warn("skipped rows failing validation", zap.Int("count", skipped))
	}

	// Feature engine. Inventory pairs without sales still need snapshots.
	pairs := make([]models.StoreProduct, 0, len(batches))
	for _, b := range batches {
		pairs = append(pairs, models.StoreProduct{StoreID: b.StoreID, ProductID: b.ProductID})
	}
	velocities := s.features.Compute(snapshotDate, sales, pairs)
	summary.PairsComputed = len(velocities)
	for _, v := range velocities {
		if v.Completeness == models.CompletenessInsufficient {
			summary.InsufficientPairs++
		}
	}

	// Risk scoring.
	riskRows := s.scorer.Score(snapshotDate, batches, velocities)
	summary.BatchesScored = len(riskRows)

	// Action generation over the complete snapshot view.
	result := s.generator.Generate(time.Now(), actionsvc.Inputs{
		SnapshotDate:  snapshotDate,
		Risks:         riskRows,
		Velocities:    velocities,
		Batches:       batches,
		Products:      products,
		SellingPrices: averageSellingPrices(sales),
	})
	summary.IntegrityWarnings = result.IntegrityWarnings

	if err := s.persist(ctx, snapshotDate, velocities, riskRows, result.Actions); err != nil {
		return summary, err
	}
	summary.ActionsProposed = len(result.Actions)

	summary.Duration = time.Since(started)
	log.Info("pipeline run finished",
		zap.Int("pairs", summary.PairsComputed),
		zap.Int("insufficient_pairs", summary.InsufficientPairs),
		zap.Int("batches_scored", summary.BatchesScored),
		zap.Int("actions_proposed", summary.ActionsProposed),
		zap.Int("integrity_warnings", summary.IntegrityWarnings),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// persist commits every derived set of a fully computed run. The prior
// velocity and risk sets are captured first; when a later write fails, the
// earlier ones are rolled back so the snapshot date never mixes fresh and
// stale derived data.
func (s *Service) persist(ctx context.Context, snapshotDate time.Time, velocities []models.VelocitySnapshot, riskRows []models.RiskScore, actions []models.Action) error {
	prevVelocities, err := s.velocities.ListForSnapshot(ctx, snapshotDate)
	if err != nil {
		return fmt.Errorf("load committed velocity snapshots: %w", err)
	}
	prevRisks, err := s.risks.ListForSnapshot(ctx, snapshotDate)
	if err != nil {
		return fmt.Errorf("load committed risk scores: %w", err)
	}

	if err := s.velocities.ReplaceSnapshot(ctx, snapshotDate, velocities); err != nil {
		return fmt.Errorf("persist velocity snapshots: %w", err)
	}
	if err := s.risks.ReplaceSnapshot(ctx, snapshotDate, riskRows); err != nil {
		s.rollbackVelocities(ctx, snapshotDate, prevVelocities)
		return fmt.Errorf("persist risk scores: %w", err)
	}
	if _, err := s.actions.UpsertProposed(ctx, actions); err != nil {
		s.rollbackVelocities(ctx, snapshotDate, prevVelocities)
		if rbErr := s.risks.ReplaceSnapshot(ctx, snapshotDate, prevRisks); rbErr != nil {
			s.logger.Error("failed to roll back risk scores", zap.Error(rbErr))
		}
		return fmt.Errorf("persist proposed actions: %w", err)
	}
	return nil
}

func (s *Service) rollbackVelocities(ctx context.Context, snapshotDate time.Time, prev []models.VelocitySnapshot) {
	if err := s.velocities.ReplaceSnapshot(ctx, snapshotDate, prev); err != nil {
		s.logger.Error("failed to roll back velocity snapshots", zap.Error(err))
	}
}

// dropInvalidRows filters loaded inputs through domain validation, returning
// the clean sets plus the dropped-row count.
func dropInvalidRows(sales []models.SalesRecord, batches []models.InventoryBatch) ([]models.SalesRecord, []models.InventoryBatch, int) {
	skipped := 0

	validSales := sales[:0]
	for _, rec := range sales {
		if rec.Validate() != nil {
			skipped++
			continue
		}
		validSales = append(validSales, rec)
	}

	validBatches := batches[:0]
	for _, b := range batches {
		if b.Validate() != nil {
			skipped++
			continue
		}
		validBatches = append(validBatches, b)
	}

	return validSales, validBatches, skipped
}

// averageSellingPrices derives a recent selling price per product from priced
// sales records in the loaded window.
func averageSellingPrices(sales []models.SalesRecord) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, rec := range sales {
		if !rec.UnitPrice.IsPositive() {
			continue
		}
		sums[rec.ProductID] = sums[rec.ProductID].Add(rec.UnitPrice)
		counts[rec.ProductID]++
	}

	avg := make(map[string]decimal.Decimal, len(sums))
	for id, sum := range sums {
		avg[id] = sum.Div(decimal.NewFromInt(int64(counts[id])))
	}
	return avg
}

func (s *Service) dateLock(snapshotDate time.Time) *sync.Mutex {
	key := snapshotDate.Format(models.DateLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] == nil {
		s.locks[key] = &sync.Mutex{}
	}
	return s.locks[key]
}
