// Package memory provides in-memory implementations of the repository
// contracts. They back the test suites and local runs without a database and
// mirror the Mongo implementations' upsert and replace semantics exactly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

// SalesRepository provides in-memory sales record storage.
type SalesRepository struct {
	mu      sync.RWMutex
	records map[string]models.SalesRecord
}

// NewSalesRepository creates a new in-memory sales repository.
func NewSalesRepository() *SalesRepository {
	return &SalesRepository{records: make(map[string]models.SalesRecord)}
}

// Verify interface compliance
var _ repository.SalesRepository = (*SalesRepository)(nil)

// UpsertBatch merges records by natural key and returns the count written.
func (r *SalesRepository) UpsertBatch(_ context.Context, records []models.SalesRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		rec.Date = models.DateOf(rec.Date)
		r.records[rec.Key()] = rec
	}
	return len(records), nil
}

// ListRange returns every record with from <= date <= to, ordered by
// (date, store, product) for determinism.
func (r *SalesRepository) ListRange(_ context.Context, from, to time.Time) ([]models.SalesRecord, error) {
	from, to = models.DateOf(from), models.DateOf(to)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.SalesRecord
	for _, rec := range r.records {
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// InventoryRepository provides in-memory inventory batch storage.
type InventoryRepository struct {
	mu      sync.RWMutex
	batches map[string]models.InventoryBatch
}

// NewInventoryRepository creates a new in-memory inventory repository.
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{batches: make(map[string]models.InventoryBatch)}
}

// Verify interface compliance
var _ repository.InventoryRepository = (*InventoryRepository)(nil)

// UpsertBatch merges batches by natural key and returns the count written.
func (r *InventoryRepository) UpsertBatch(_ context.Context, batches []models.InventoryBatch) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batches {
		b.SnapshotDate = models.DateOf(b.SnapshotDate)
		b.ExpiryDate = models.DateOf(b.ExpiryDate)
		r.batches[b.Key()] = b
	}
	return len(batches), nil
}

// ListForSnapshot returns the batches of one snapshot date, ordered by key.
func (r *InventoryRepository) ListForSnapshot(_ context.Context, snapshotDate time.Time) ([]models.InventoryBatch, error) {
	snapshotDate = models.DateOf(snapshotDate)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.InventoryBatch
	for _, b := range r.batches {
		if b.SnapshotDate.Equal(snapshotDate) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// ProductRepository provides in-memory catalog storage.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

// NewProductRepository creates a new in-memory product repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]models.Product)}
}

// Verify interface compliance
var _ repository.ProductRepository = (*ProductRepository)(nil)

// UpsertBatch merges products by ID and returns the count written.
func (r *ProductRepository) UpsertBatch(_ context.Context, products []models.Product) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range products {
		r.products[p.ProductID] = p
	}
	return len(products), nil
}

// GetByID returns one product or repository.ErrNotFound.
func (r *ProductRepository) GetByID(_ context.Context, productID string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// ListAll returns every product, ordered by ID.
func (r *ProductRepository) ListAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
