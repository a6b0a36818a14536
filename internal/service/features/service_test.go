package features

import (
	"math"
	"testing"
	"time"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

var asOf = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// daysBack returns the calendar day n days before the as-of date.
func daysBack(n int) time.Time {
	return asOf.AddDate(0, 0, -n)
}

func record(store, product string, back, units int) models.SalesRecord {
	return models.SalesRecord{
		Date:      daysBack(back),
		StoreID:   store,
		ProductID: product,
		UnitsSold: units,
	}
}

func findSnapshot(t *testing.T, snaps []models.VelocitySnapshot, store, product string) models.VelocitySnapshot {
	t.Helper()
	for _, s := range snaps {
		if s.StoreID == store && s.ProductID == product {
			return s
		}
	}
	t.Fatalf("no snapshot for %s/%s", store, product)
	return models.VelocitySnapshot{}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute_WindowAverages(t *testing.T) {
	engine := NewEngine(4, nil)

	// 2 units/day on the 20 most recent window days.
	var sales []models.SalesRecord
	for back := 1; back <= 20; back++ {
		sales = append(sales, record("S1", "P1", back, 2))
	}

	snaps := engine.Compute(asOf, sales, nil)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}

	snap := findSnapshot(t, snaps, "S1", "P1")
	if !almostEqual(snap.V7, 2.0) {
		t.Errorf("V7 = %v, want 2.0", snap.V7)
	}
	if !almostEqual(snap.V14, 2.0) {
		t.Errorf("V14 = %v, want 2.0", snap.V14)
	}
	// 40 units total over a fixed 30-day denominator.
	if !almostEqual(snap.V30, 40.0/30.0) {
		t.Errorf("V30 = %v, want %v", snap.V30, 40.0/30.0)
	}
	if snap.DaysWithData != 20 {
		t.Errorf("DaysWithData = %d, want 20", snap.DaysWithData)
	}
	if snap.Completeness != models.CompletenessOK {
		t.Errorf("Completeness = %s, want OK", snap.Completeness)
	}
	if !snap.AsOfDate.Equal(asOf) {
		t.Errorf("AsOfDate = %v, want %v", snap.AsOfDate, asOf)
	}
}

func TestCompute_WindowBoundaries(t *testing.T) {
	engine := NewEngine(1, nil)

	sales := []models.SalesRecord{
		record("S1", "P1", 0, 100),  // as-of day itself, excluded
		record("S1", "P1", 30, 3),   // oldest in-window day
		record("S1", "P1", 31, 100), // past the window, excluded
	}

	snaps := engine.Compute(asOf, sales, nil)
	snap := findSnapshot(t, snaps, "S1", "P1")
	if !almostEqual(snap.V30, 3.0/30.0) {
		t.Errorf("V30 = %v, want %v", snap.V30, 3.0/30.0)
	}
	if snap.DaysWithData != 1 {
		t.Errorf("DaysWithData = %d, want 1", snap.DaysWithData)
	}
}

func TestCompute_InsufficientHistory(t *testing.T) {
	engine := NewEngine(2, nil)

	// 14 recorded days is one short of the threshold.
	var sales []models.SalesRecord
	for back := 1; back <= 14; back++ {
		sales = append(sales, record("S1", "P1", back, 1))
	}
	for back := 1; back <= 15; back++ {
		sales = append(sales, record("S1", "P2", back, 1))
	}

	snaps := engine.Compute(asOf, sales, nil)

	if got := findSnapshot(t, snaps, "S1", "P1").Completeness; got != models.CompletenessInsufficient {
		t.Errorf("14 recorded days: Completeness = %s, want INSUFFICIENT", got)
	}
	if got := findSnapshot(t, snaps, "S1", "P2").Completeness; got != models.CompletenessOK {
		t.Errorf("15 recorded days: Completeness = %s, want OK", got)
	}
}

func TestCompute_PairWithoutHistory(t *testing.T) {
	engine := NewEngine(2, nil)

	extra := []models.StoreProduct{{StoreID: "S9", ProductID: "P9"}}
	snaps := engine.Compute(asOf, nil, extra)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}

	snap := snaps[0]
	if snap.V7 != 0 || snap.V14 != 0 || snap.V30 != 0 {
		t.Errorf("velocities = %v/%v/%v, want all zero", snap.V7, snap.V14, snap.V30)
	}
	if snap.Volatility != 0 {
		t.Errorf("Volatility = %v, want 0", snap.Volatility)
	}
	if snap.Completeness != models.CompletenessInsufficient {
		t.Errorf("Completeness = %s, want INSUFFICIENT", snap.Completeness)
	}
}

func TestVolatility(t *testing.T) {
	t.Run("fewer than two recorded days", func(t *testing.T) {
		if got := volatility(map[int]float64{1: 5}); got != 0 {
			t.Errorf("volatility = %v, want 0", got)
		}
	})

	t.Run("constant full series", func(t *testing.T) {
		daily := make(map[int]float64)
		for back := 1; back <= 30; back++ {
			daily[back] = 5
		}
		if got := volatility(daily); !almostEqual(got, 0) {
			t.Errorf("volatility = %v, want 0", got)
		}
	})

	t.Run("sparse series over zero-filled window", func(t *testing.T) {
		daily := map[int]float64{1: 3, 2: 3}
		// mean over 30 days = 0.2; variance uses the n-1 denominator.
		want := math.Sqrt((2*math.Pow(3-0.2, 2) + 28*math.Pow(0-0.2, 2)) / 29)
		if got := volatility(daily); !almostEqual(got, want) {
			t.Errorf("volatility = %v, want %v", got, want)
		}
	})
}

func TestCompute_Deterministic(t *testing.T) {
	engine := NewEngine(8, nil)

	var sales []models.SalesRecord
	for s := 0; s < 5; s++ {
		for p := 0; p < 5; p++ {
			for back := 1; back <= 30; back++ {
				sales = append(sales, record(
					string(rune('A'+s)), string(rune('a'+p)), back, (s+p+back)%4))
			}
		}
	}

	first := engine.Compute(asOf, sales, nil)
	second := engine.Compute(asOf, sales, nil)

	if len(first) != 25 || len(second) != 25 {
		t.Fatalf("expected 25 snapshots, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("snapshot %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
