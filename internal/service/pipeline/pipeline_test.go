package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
	"github.com/mbodje/shelfwatch/internal/repository/memory"
	actionsvc "github.com/mbodje/shelfwatch/internal/service/actions"
	"github.com/mbodje/shelfwatch/internal/service/features"
	"github.com/mbodje/shelfwatch/internal/service/risk"
)

var snapshot = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *Service
	sales      *memory.SalesRepository
	inventory  *memory.InventoryRepository
	products   *memory.ProductRepository
	velocities *memory.VelocityRepository
	risks      *memory.RiskRepository
	actions    *memory.ActionRepository

	featureEngine *features.Engine
	scorer        *risk.Engine
	generator     *actionsvc.Generator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	sales := memory.NewSalesRepository()
	inventory := memory.NewInventoryRepository()
	products := memory.NewProductRepository()
	velocities := memory.NewVelocityRepository()
	risks := memory.NewRiskRepository()
	actions := memory.NewActionRepository()

	// Steady history: S1 moves 2/day, S2 moves 20/day of the same product.
	var history []models.SalesRecord
	for back := 1; back <= 30; back++ {
		day := snapshot.AddDate(0, 0, -back)
		history = append(history,
			models.SalesRecord{Date: day, StoreID: "S1", ProductID: "P1", UnitsSold: 2, UnitPrice: decimal.NewFromInt(15)},
			models.SalesRecord{Date: day, StoreID: "S2", ProductID: "P1", UnitsSold: 20, UnitPrice: decimal.NewFromInt(15)},
		)
	}
	if _, err := sales.UpsertBatch(ctx, history); err != nil {
		t.Fatal(err)
	}

	batches := []models.InventoryBatch{
		{
			SnapshotDate: snapshot, StoreID: "S1", ProductID: "P1", BatchID: "B1",
			ExpiryDate: snapshot.AddDate(0, 0, 5), OnHandQty: 60, UnitCost: decimal.NewFromInt(10),
		},
		{
			SnapshotDate: snapshot, StoreID: "S2", ProductID: "P1", BatchID: "B2",
			ExpiryDate: snapshot.AddDate(0, 0, 60), OnHandQty: 5, UnitCost: decimal.NewFromInt(10),
		},
	}
	if _, err := inventory.UpsertBatch(ctx, batches); err != nil {
		t.Fatal(err)
	}
	if _, err := products.UpsertBatch(ctx, []models.Product{
		{ProductID: "P1", Name: "Yogurt", Category: "Dairy", ListPrice: decimal.NewFromInt(15)},
	}); err != nil {
		t.Fatal(err)
	}

	featureEngine := features.NewEngine(4, nil)
	scorer := risk.NewEngine(risk.Config{
		DefaultUnitCost:     decimal.NewFromInt(10),
		UrgencyHalfLifeDays: 7,
		ValueLogCap:         10000,
	}, nil)
	generator := actionsvc.NewGenerator(actionsvc.Config{
		MinActionScore:           30,
		TransferCostPerUnit:      decimal.NewFromInt(2),
		MarkdownUpliftMultiplier: 2.5,
		DefaultPriceMarkup:       decimal.NewFromFloat(1.3),
		LiquidationRecoveryRate:  decimal.NewFromFloat(0.25),
		LiquidationFixedCost:     decimal.NewFromInt(50),
		LiquidationCostPerUnit:   decimal.NewFromInt(1),
	}, nil)

	svc := NewService(sales, inventory, products, velocities, risks, actions,
		featureEngine, scorer, generator, nil)

	return fixture{
		svc:        svc,
		sales:      sales,
		inventory:  inventory,
		products:   products,
		velocities: velocities,
		risks:      risks,
		actions:    actions,

		featureEngine: featureEngine,
		scorer:        scorer,
		generator:     generator,
	}
}

func TestRun_FullPipeline(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	summary, err := fx.svc.Run(ctx, snapshot)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.PairsComputed != 2 {
		t.Errorf("PairsComputed = %d, want 2", summary.PairsComputed)
	}
	if summary.InsufficientPairs != 0 {
		t.Errorf("InsufficientPairs = %d, want 0", summary.InsufficientPairs)
	}
	if summary.BatchesScored != 2 {
		t.Errorf("BatchesScored = %d, want 2", summary.BatchesScored)
	}
	if summary.ActionsProposed != 1 {
		t.Errorf("ActionsProposed = %d, want 1", summary.ActionsProposed)
	}
	if summary.IntegrityWarnings != 0 {
		t.Errorf("IntegrityWarnings = %d, want 0", summary.IntegrityWarnings)
	}

	// The slow store's batch cannot sell through before expiry; the fast
	// store absorbs a transfer.
	acts, total, err := fx.actions.List(ctx, repository.ActionQuery{SnapshotDate: snapshot})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("actions stored = %d, want 1", total)
	}
	a := acts[0]
	if a.Type != models.ActionTransfer || a.SourceStore != "S1" || a.DestStore != "S2" {
		t.Errorf("got %s %s->%s, want TRANSFER S1->S2", a.Type, a.SourceStore, a.DestStore)
	}
	if a.Quantity != 50 {
		t.Errorf("Quantity = %d, want 50", a.Quantity)
	}

	// Healthy batch scores zero and yields no action.
	rows, err := fx.risks.ListForSnapshot(ctx, snapshot)
	if err != nil {
		t.Fatalf("ListForSnapshot failed: %v", err)
	}
	for _, r := range rows {
		if r.StoreID == "S2" && r.RiskScore != 0 {
			t.Errorf("S2 risk score = %v, want 0", r.RiskScore)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	first, err := fx.svc.Run(ctx, snapshot)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	acts, _, err := fx.actions.List(ctx, repository.ActionQuery{SnapshotDate: snapshot})
	if err != nil {
		t.Fatal(err)
	}
	originalID := acts[0].ActionID

	second, err := fx.svc.Run(ctx, snapshot)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.PairsComputed != second.PairsComputed ||
		first.BatchesScored != second.BatchesScored ||
		first.ActionsProposed != second.ActionsProposed {
		t.Errorf("summaries differ between runs: %+v vs %+v", first, second)
	}

	vels, err := fx.velocities.ListForSnapshot(ctx, snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if len(vels) != 2 {
		t.Errorf("velocity rows after rerun = %d, want 2", len(vels))
	}

	acts, total, err := fx.actions.List(ctx, repository.ActionQuery{SnapshotDate: snapshot})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("actions after rerun = %d, want the same single proposal", total)
	}
	// Re-proposing keeps the identity of the still-pending action.
	if acts[0].ActionID != originalID {
		t.Errorf("ActionID changed across reruns: %s vs %s", acts[0].ActionID, originalID)
	}
}

func TestRun_PreservesApprovedAction(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	if _, err := fx.svc.Run(ctx, snapshot); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	acts, _, err := fx.actions.List(ctx, repository.ActionQuery{SnapshotDate: snapshot})
	if err != nil {
		t.Fatal(err)
	}
	id := acts[0].ActionID

	if err := fx.actions.UpdateStatus(ctx, id, models.StatusApproved); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	if _, err := fx.svc.Run(ctx, snapshot); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	got, err := fx.actions.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("rerun reset approval status to %s", got.Status)
	}
}

// failingRiskRepository rejects every snapshot write.
type failingRiskRepository struct {
	*memory.RiskRepository
}

func (failingRiskRepository) ReplaceSnapshot(context.Context, time.Time, []models.RiskScore) error {
	return errors.New("risk store unavailable")
}

func sortedVelocities(t *testing.T, repo *memory.VelocityRepository, date time.Time) []models.VelocitySnapshot {
	t.Helper()
	vels, err := repo.ListForSnapshot(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(vels, func(i, j int) bool {
		if vels[i].StoreID != vels[j].StoreID {
			return vels[i].StoreID < vels[j].StoreID
		}
		return vels[i].ProductID < vels[j].ProductID
	})
	return vels
}

func TestRun_FailedPersistLeavesCommittedDataIntact(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	if _, err := fx.svc.Run(ctx, snapshot); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	committed := sortedVelocities(t, fx.velocities, snapshot)

	// New history for a third store changes what a recompute would write.
	var extra []models.SalesRecord
	for back := 1; back <= 30; back++ {
		extra = append(extra, models.SalesRecord{
			Date: snapshot.AddDate(0, 0, -back), StoreID: "S3", ProductID: "P1",
			UnitsSold: 7, UnitPrice: decimal.NewFromInt(15),
		})
	}
	if _, err := fx.sales.UpsertBatch(ctx, extra); err != nil {
		t.Fatal(err)
	}

	broken := NewService(fx.sales, fx.inventory, fx.products, fx.velocities,
		failingRiskRepository{fx.risks}, fx.actions,
		fx.featureEngine, fx.scorer, fx.generator, nil)

	if _, err := broken.Run(ctx, snapshot); err == nil {
		t.Fatal("Run succeeded despite the risk store rejecting writes")
	}

	// The failed run must not leave fresh velocities paired with stale risk
	// rows. The committed snapshot stays exactly as the last good run left it.
	after := sortedVelocities(t, fx.velocities, snapshot)
	if !reflect.DeepEqual(after, committed) {
		t.Errorf("failed run altered committed velocities:\nbefore: %+v\nafter:  %+v", committed, after)
	}

	rows, err := fx.risks.ListForSnapshot(ctx, snapshot)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("risk rows after failed run = %d, want the 2 committed rows", len(rows))
	}
}

func TestRun_CountsSkippedRows(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	// A negative quantity fails validation and must be excluded from the
	// window, not fed into the engines.
	if _, err := fx.sales.UpsertBatch(ctx, []models.SalesRecord{
		{Date: snapshot.AddDate(0, 0, -3), StoreID: "S9", ProductID: "P1", UnitsSold: -4, UnitPrice: decimal.NewFromInt(15)},
	}); err != nil {
		t.Fatal(err)
	}

	summary, err := fx.svc.Run(ctx, snapshot)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.SkippedRows != 1 {
		t.Errorf("SkippedRows = %d, want 1", summary.SkippedRows)
	}
	if summary.PairsComputed != 2 {
		t.Errorf("PairsComputed = %d, want 2 (skipped row must not create a pair)", summary.PairsComputed)
	}
}
