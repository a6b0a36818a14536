package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

// VelocityRepository provides in-memory velocity snapshot storage.
type VelocityRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]models.VelocitySnapshot // keyed by as-of date
}

// NewVelocityRepository creates a new in-memory velocity repository.
func NewVelocityRepository() *VelocityRepository {
	return &VelocityRepository{snapshots: make(map[string][]models.VelocitySnapshot)}
}

// Verify interface compliance
var _ repository.VelocityRepository = (*VelocityRepository)(nil)

// ReplaceSnapshot overwrites every snapshot of the given as-of date.
func (r *VelocityRepository) ReplaceSnapshot(_ context.Context, asOfDate time.Time, snapshots []models.VelocitySnapshot) error {
	key := models.DateOf(asOfDate).Format(models.DateLayout)

	rows := make([]models.VelocitySnapshot, len(snapshots))
	copy(rows, snapshots)
	for i := range rows {
		rows[i].AsOfDate = models.DateOf(rows[i].AsOfDate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[key] = rows
	return nil
}

// ListForSnapshot returns the snapshots of one as-of date.
func (r *VelocityRepository) ListForSnapshot(_ context.Context, asOfDate time.Time) ([]models.VelocitySnapshot, error) {
	key := models.DateOf(asOfDate).Format(models.DateLayout)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.VelocitySnapshot, len(r.snapshots[key]))
	copy(out, r.snapshots[key])
	return out, nil
}

// RiskRepository provides in-memory risk score storage.
type RiskRepository struct {
	mu   sync.RWMutex
	rows map[string][]models.RiskScore // keyed by snapshot date
}

// NewRiskRepository creates a new in-memory risk repository.
func NewRiskRepository() *RiskRepository {
	return &RiskRepository{rows: make(map[string][]models.RiskScore)}
}

// Verify interface compliance
var _ repository.RiskRepository = (*RiskRepository)(nil)

// ReplaceSnapshot overwrites every risk row of the given snapshot date.
func (r *RiskRepository) ReplaceSnapshot(_ context.Context, snapshotDate time.Time, rows []models.RiskScore) error {
	key := models.DateOf(snapshotDate).Format(models.DateLayout)

	copied := make([]models.RiskScore, len(rows))
	copy(copied, rows)
	for i := range copied {
		copied[i].SnapshotDate = models.DateOf(copied[i].SnapshotDate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[key] = copied
	return nil
}

// ListForSnapshot returns the risk rows of one snapshot date.
func (r *RiskRepository) ListForSnapshot(_ context.Context, snapshotDate time.Time) ([]models.RiskScore, error) {
	key := models.DateOf(snapshotDate).Format(models.DateLayout)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RiskScore, len(r.rows[key]))
	copy(out, r.rows[key])
	return out, nil
}

// Query returns matching rows ordered by descending risk score.
func (r *RiskRepository) Query(ctx context.Context, q repository.RiskQuery) ([]models.RiskScore, error) {
	rows, err := r.ListForSnapshot(ctx, q.SnapshotDate)
	if err != nil {
		return nil, err
	}

	var products map[string]bool
	if len(q.ProductIDs) > 0 {
		products = make(map[string]bool, len(q.ProductIDs))
		for _, id := range q.ProductIDs {
			products[id] = true
		}
	}

	var out []models.RiskScore
	for _, row := range rows {
		if q.StoreID != "" && row.StoreID != q.StoreID {
			continue
		}
		if products != nil && !products[row.ProductID] {
			continue
		}
		if row.RiskScore < q.MinScore {
			continue
		}
		if q.MaxDaysToExpiry != nil && row.DaysToExpiry > *q.MaxDaysToExpiry {
			continue
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}
