// Package repository defines the storage contracts the analytics pipeline
// depends on. The engines themselves never touch storage; the pipeline
// orchestrator loads inputs through these interfaces and persists outputs
// back, so the algorithmic core stays decoupled from the storage engine.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mbodje/shelfwatch/internal/domain/models"
)

// ErrNotFound is returned when a lookup by key matches nothing.
var ErrNotFound = errors.New("repository: not found")

// SalesRepository stores immutable daily sales records, merged by upsert on
// (date, store, product).
type SalesRepository interface {
	UpsertBatch(ctx context.Context, records []models.SalesRecord) (int, error)
	// ListRange returns every record with from <= date <= to.
	ListRange(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error)
}

// InventoryRepository stores inventory batch snapshots, merged by upsert on
// (snapshot_date, store, product, batch).
type InventoryRepository interface {
	UpsertBatch(ctx context.Context, batches []models.InventoryBatch) (int, error)
	ListForSnapshot(ctx context.Context, snapshotDate time.Time) ([]models.InventoryBatch, error)
}

// ProductRepository stores catalog rows keyed by product ID.
type ProductRepository interface {
	UpsertBatch(ctx context.Context, products []models.Product) (int, error)
	GetByID(ctx context.Context, productID string) (*models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
}

// VelocityRepository stores derived velocity snapshots. ReplaceSnapshot
// overwrites every row of the given as-of date wholesale, which is what makes
// recomputation idempotent.
type VelocityRepository interface {
	ReplaceSnapshot(ctx context.Context, asOfDate time.Time, snapshots []models.VelocitySnapshot) error
	ListForSnapshot(ctx context.Context, asOfDate time.Time) ([]models.VelocitySnapshot, error)
}

// RiskQuery narrows a risk score listing. Zero values mean "no filter";
// MaxDaysToExpiry uses a nil pointer because 0 is a meaningful bound.
type RiskQuery struct {
	SnapshotDate    time.Time
	StoreID         string
	ProductIDs      []string
	MinScore        float64
	MaxDaysToExpiry *int
}

// RiskRepository stores risk scores, replaced wholesale per snapshot date.
type RiskRepository interface {
	ReplaceSnapshot(ctx context.Context, snapshotDate time.Time, rows []models.RiskScore) error
	ListForSnapshot(ctx context.Context, snapshotDate time.Time) ([]models.RiskScore, error)
	// Query returns rows matching the filter, ordered by descending risk score.
	Query(ctx context.Context, q RiskQuery) ([]models.RiskScore, error)
}

// ActionQuery narrows and paginates an action listing.
type ActionQuery struct {
	SnapshotDate time.Time // zero value: all dates
	Status       models.ActionStatus
	Page         int // 1-based
	PageSize     int
}

// ActionRepository stores recommended actions. UpsertProposed is keyed by
// (snapshot_date, source_store, product, batch): re-proposing for a batch
// that already has a PROPOSED row updates it in place, preserving the
// original action ID, and never touches rows the approval workflow has moved
// past PROPOSED.
type ActionRepository interface {
	UpsertProposed(ctx context.Context, actions []models.Action) (int, error)
	GetByID(ctx context.Context, actionID string) (*models.Action, error)
	// List returns one page of matches plus the total match count.
	List(ctx context.Context, q ActionQuery) ([]models.Action, int, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Action, error)
	// UpdateStatus applies an approval-workflow transition; it fails with
	// ErrNotFound for unknown IDs and rejects disallowed transitions.
	UpdateStatus(ctx context.Context, actionID string, status models.ActionStatus) error
}

// OutcomeRepository stores append-only measured outcomes of completed actions.
type OutcomeRepository interface {
	Append(ctx context.Context, outcome models.ActionOutcome) error
	HasForAction(ctx context.Context, actionID string) (bool, error)
	ListMeasuredBetween(ctx context.Context, from, to time.Time) ([]models.ActionOutcome, error)
}
