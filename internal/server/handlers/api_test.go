package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository/memory"
	actionsvc "github.com/mbodje/shelfwatch/internal/service/actions"
	"github.com/mbodje/shelfwatch/internal/service/features"
	"github.com/mbodje/shelfwatch/internal/service/kpi"
	"github.com/mbodje/shelfwatch/internal/service/pipeline"
	"github.com/mbodje/shelfwatch/internal/service/risk"
)

var snapshot = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type env struct {
	engine  *gin.Engine
	actions *memory.ActionRepository
	risks   *memory.RiskRepository
}

func newEnv(t *testing.T) env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sales := memory.NewSalesRepository()
	inventory := memory.NewInventoryRepository()
	products := memory.NewProductRepository()
	velocities := memory.NewVelocityRepository()
	risks := memory.NewRiskRepository()
	actions := memory.NewActionRepository()
	outcomes := memory.NewOutcomeRepository()

	featureEngine := features.NewEngine(2, nil)
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

	pipelineSvc := pipeline.NewService(sales, inventory, products, velocities, risks, actions,
		featureEngine, scorer, generator, nil)
	kpiSvc := kpi.NewService(risks, actions, outcomes, products, nil)

	api := NewAPI(API{
		Pipeline:  pipelineSvc,
		KPI:       kpiSvc,
		Sales:     sales,
		Inventory: inventory,
		Products:  products,
		Risks:     risks,
		Actions:   actions,
		Outcomes:  outcomes,
	})

	engine := gin.New()
	engine.POST("/api/runs", api.TriggerRun)
	engine.GET("/api/risk", api.ListRisk)
	engine.GET("/api/actions", api.ListActions)
	engine.PATCH("/api/actions/:id", api.UpdateActionStatus)
	engine.POST("/api/actions/:id/outcome", api.RecordOutcome)
	engine.GET("/api/kpis", api.KPIOverview)
	engine.POST("/api/ingest/sales", api.IngestSales)
	engine.POST("/api/ingest/inventory", api.IngestInventory)
	engine.POST("/api/ingest/products", api.IngestProducts)

	return env{engine: engine, actions: actions, risks: risks}
}

func (e env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func TestIngestSales_CountsSkippedRows(t *testing.T) {
	e := newEnv(t)

	rows := []map[string]any{
		{"date": snapshot, "store_id": "S1", "product_id": "P1", "units_sold": 4},
		{"date": snapshot, "store_id": "", "product_id": "P1", "units_sold": 4},
		{"date": snapshot, "store_id": "S1", "product_id": "P2", "units_sold": -1},
	}
	rec := e.do(t, http.MethodPost, "/api/ingest/sales", rows)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Written int `json:"written"`
		Skipped int `json:"skipped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Written != 1 || resp.Skipped != 2 {
		t.Errorf("written/skipped = %d/%d, want 1/2", resp.Written, resp.Skipped)
	}
}

func TestIngestSales_RejectsNonArrayBody(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/ingest/sales", map[string]any{"not": "an array"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListRisk_RequiresDate(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/risk", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListRisk_FiltersByScore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rows := []models.RiskScore{
		{SnapshotDate: snapshot, StoreID: "S1", ProductID: "P1", BatchID: "B1", RiskScore: 80},
		{SnapshotDate: snapshot, StoreID: "S1", ProductID: "P2", BatchID: "B2", RiskScore: 20},
	}
	if err := e.risks.ReplaceSnapshot(ctx, snapshot, rows); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodGet, "/api/risk?date=2026-03-01&min_score=50", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestActionLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	act := models.Action{
		ActionID:        "a1",
		CreatedAt:       snapshot,
		SnapshotDate:    snapshot,
		Type:            models.ActionLiquidate,
		SourceStore:     "S1",
		ProductID:       "P1",
		BatchID:         "B1",
		Quantity:        5,
		ExpectedSavings: decimal.NewFromInt(25),
		Status:          models.StatusProposed,
	}
	if _, err := e.actions.UpsertProposed(ctx, []models.Action{act}); err != nil {
		t.Fatal(err)
	}

	// Outcome before completion is a conflict.
	rec := e.do(t, http.MethodPost, "/api/actions/a1/outcome",
		map[string]any{"measured_at": "2026-03-05", "recovered_value": 20.0})
	if rec.Code != http.StatusConflict {
		t.Errorf("premature outcome status = %d, want 409", rec.Code)
	}

	// Illegal transition.
	rec = e.do(t, http.MethodPatch, "/api/actions/a1", map[string]any{"status": "DONE"})
	if rec.Code != http.StatusConflict {
		t.Errorf("PROPOSED -> DONE status = %d, want 409", rec.Code)
	}

	for _, status := range []string{"APPROVED", "DONE"} {
		rec = e.do(t, http.MethodPatch, "/api/actions/a1", map[string]any{"status": status})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("transition to %s status = %d, body %s", status, rec.Code, rec.Body)
		}
	}

	rec = e.do(t, http.MethodPost, "/api/actions/a1/outcome",
		map[string]any{"measured_at": "2026-03-05", "recovered_value": 20.0, "cleared_units": 5})
	if rec.Code != http.StatusCreated {
		t.Errorf("outcome status = %d, body %s", rec.Code, rec.Body)
	}

	// A second outcome would double-count realized savings.
	rec = e.do(t, http.MethodPost, "/api/actions/a1/outcome",
		map[string]any{"measured_at": "2026-03-06", "recovered_value": 20.0, "cleared_units": 5})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate outcome status = %d, want 409", rec.Code)
	}

	rec = e.do(t, http.MethodPatch, "/api/actions/missing", map[string]any{"status": "APPROVED"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", rec.Code)
	}
}

func TestKPIOverview_ValidatesRange(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/kpis?from=2026-03-07&to=2026-03-01", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/kpis?from=2026-03-01&to=2026-03-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var report kpi.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if !report.TotalAtRiskValue.IsZero() || report.ActionsTotal != 0 {
		t.Errorf("empty dataset should roll up to zeros, got %+v", report)
	}
}

func TestTriggerRun_ValidatesBody(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/runs", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing date status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/runs", map[string]any{"snapshot_date": "03/01/2026"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed date status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/runs", map[string]any{"snapshot_date": "2026-03-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if !summary.SnapshotDate.Equal(snapshot) {
		t.Errorf("SnapshotDate = %v, want %v", summary.SnapshotDate, snapshot)
	}
}
