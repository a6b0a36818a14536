package kpi

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository/memory"
)

var (
	from = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
)

func action(id, store, product string, status models.ActionStatus, savings int64) models.Action {
	return models.Action{
		ActionID:        id,
		CreatedAt:       from.Add(24 * time.Hour),
		SnapshotDate:    from,
		Type:            models.ActionLiquidate,
		SourceStore:     store,
		ProductID:       product,
		BatchID:         "B-" + id,
		Quantity:        1,
		ExpectedSavings: decimal.NewFromInt(savings),
		Status:          status,
	}
}

func TestAggregate_EmptyInputs(t *testing.T) {
	report := Aggregate(Filter{From: from, To: to}, nil, nil, nil, nil)

	if !report.TotalAtRiskValue.IsZero() || !report.ProposedSavings.IsZero() || !report.RealizedSavings.IsZero() {
		t.Errorf("money fields = %s/%s/%s, want all zero",
			report.TotalAtRiskValue, report.ProposedSavings, report.RealizedSavings)
	}
	if report.CompletionRate != 0 || report.ActionsTotal != 0 || report.AvgDaysToExpiry != 0 {
		t.Errorf("rate/count fields nonzero on empty input: %+v", report)
	}
	if report.HighRiskBatches+report.MediumRiskBatches+report.LowRiskBatches != 0 {
		t.Errorf("risk bands nonzero on empty input: %+v", report)
	}
}

func TestAggregate_Rollup(t *testing.T) {
	risks := []models.RiskScore{
		{RiskScore: 80, DaysToExpiry: 2, AtRiskValue: decimal.NewFromInt(500)},
		{RiskScore: 50, DaysToExpiry: 6, AtRiskValue: decimal.NewFromInt(200)},
		{RiskScore: 10, DaysToExpiry: 10, AtRiskValue: decimal.NewFromInt(50)},
	}
	actions := []models.Action{
		action("a1", "S1", "P1", models.StatusProposed, 100),
		action("a2", "S1", "P1", models.StatusApproved, 50),
		action("a3", "S1", "P1", models.StatusDone, 80),
		action("a4", "S1", "P1", models.StatusRejected, 25),
	}
	outcomes := []models.ActionOutcome{
		{ActionID: "a3", MeasuredAt: to, RecoveredValue: decimal.NewFromInt(40)},
		{ActionID: "a4", MeasuredAt: to, RecoveredValue: decimal.NewFromInt(999)},
	}

	report := Aggregate(Filter{From: from, To: to}, risks, actions, outcomes, nil)

	if want := decimal.NewFromInt(750); !report.TotalAtRiskValue.Equal(want) {
		t.Errorf("TotalAtRiskValue = %s, want %s", report.TotalAtRiskValue, want)
	}
	if report.HighRiskBatches != 1 || report.MediumRiskBatches != 1 || report.LowRiskBatches != 1 {
		t.Errorf("risk bands = %d/%d/%d, want 1/1/1",
			report.HighRiskBatches, report.MediumRiskBatches, report.LowRiskBatches)
	}
	if want := 18.0 / 3; report.AvgDaysToExpiry != want {
		t.Errorf("AvgDaysToExpiry = %v, want %v", report.AvgDaysToExpiry, want)
	}

	// Proposed savings cover PROPOSED and APPROVED only.
	if want := decimal.NewFromInt(150); !report.ProposedSavings.Equal(want) {
		t.Errorf("ProposedSavings = %s, want %s", report.ProposedSavings, want)
	}
	// Realized savings count only outcomes of DONE actions.
	if want := decimal.NewFromInt(40); !report.RealizedSavings.Equal(want) {
		t.Errorf("RealizedSavings = %s, want %s", report.RealizedSavings, want)
	}
	if report.ActionsTotal != 4 || report.ActionsDone != 1 {
		t.Errorf("ActionsTotal/Done = %d/%d, want 4/1", report.ActionsTotal, report.ActionsDone)
	}
	// Rejected actions fall out of the completion denominator.
	if want := 1.0 / 3; math.Abs(report.CompletionRate-want) > 1e-9 {
		t.Errorf("CompletionRate = %v, want %v", report.CompletionRate, want)
	}
}

func TestAggregate_StoreAndCategoryFilter(t *testing.T) {
	actions := []models.Action{
		action("a1", "S1", "P1", models.StatusProposed, 100),
		action("a2", "S2", "P1", models.StatusProposed, 50),
		action("a3", "S1", "P2", models.StatusProposed, 30),
	}
	categories := map[string]string{"P1": "Dairy", "P2": "Bakery"}

	report := Aggregate(Filter{From: from, To: to, StoreID: "S1", Category: "Dairy"}, nil, actions, nil, categories)
	if report.ActionsTotal != 1 {
		t.Errorf("ActionsTotal = %d, want 1 after filtering", report.ActionsTotal)
	}
	if want := decimal.NewFromInt(100); !report.ProposedSavings.Equal(want) {
		t.Errorf("ProposedSavings = %s, want %s", report.ProposedSavings, want)
	}
}

func TestOverview_UnknownCategoryMatchesNothing(t *testing.T) {
	ctx := context.Background()
	risks := memory.NewRiskRepository()
	actionsRepo := memory.NewActionRepository()
	outcomes := memory.NewOutcomeRepository()
	products := memory.NewProductRepository()

	if _, err := products.UpsertBatch(ctx, []models.Product{{ProductID: "P1", Category: "Dairy"}}); err != nil {
		t.Fatal(err)
	}
	if err := risks.ReplaceSnapshot(ctx, to, []models.RiskScore{
		{SnapshotDate: to, StoreID: "S1", ProductID: "P1", BatchID: "B1", RiskScore: 90, AtRiskValue: decimal.NewFromInt(100)},
	}); err != nil {
		t.Fatal(err)
	}

	svc := NewService(risks, actionsRepo, outcomes, products, nil)

	report, err := svc.Overview(ctx, Filter{From: from, To: to, Category: "Frozen"})
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if !report.TotalAtRiskValue.IsZero() || report.ActionsTotal != 0 {
		t.Errorf("unknown category should match nothing, got %+v", report)
	}

	report, err = svc.Overview(ctx, Filter{From: from, To: to, Category: "Dairy"})
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if want := decimal.NewFromInt(100); !report.TotalAtRiskValue.Equal(want) {
		t.Errorf("TotalAtRiskValue = %s, want %s", report.TotalAtRiskValue, want)
	}
}
