package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

// ActionRepository provides in-memory action storage.
type ActionRepository struct {
	mu      sync.RWMutex
	byBatch map[string]models.Action // keyed by Action.BatchKey()
}

// NewActionRepository creates a new in-memory action repository.
func NewActionRepository() *ActionRepository {
	return &ActionRepository{byBatch: make(map[string]models.Action)}
}

// Verify interface compliance
var _ repository.ActionRepository = (*ActionRepository)(nil)

// UpsertProposed writes proposals keyed by (snapshot, store, product, batch).
// An existing PROPOSED row for the same batch is updated in place keeping its
// action ID and creation time; rows the approval workflow already moved past
// PROPOSED are left untouched.
func (r *ActionRepository) UpsertProposed(_ context.Context, actions []models.Action) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for _, a := range actions {
		a.SnapshotDate = models.DateOf(a.SnapshotDate)
		key := a.BatchKey()
		if existing, ok := r.byBatch[key]; ok {
			if existing.Status != models.StatusProposed {
				continue
			}
			a.ActionID = existing.ActionID
			a.CreatedAt = existing.CreatedAt
		}
		r.byBatch[key] = a
		written++
	}
	return written, nil
}

// GetByID returns one action or repository.ErrNotFound.
func (r *ActionRepository) GetByID(_ context.Context, actionID string) (*models.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.byBatch {
		if a.ActionID == actionID {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List returns one page of matches plus the total match count. Results are
// ordered by descending expected savings, matching the generator's ranking.
func (r *ActionRepository) List(_ context.Context, q repository.ActionQuery) ([]models.Action, int, error) {
	r.mu.RLock()
	var matches []models.Action
	for _, a := range r.byBatch {
		if !q.SnapshotDate.IsZero() && !a.SnapshotDate.Equal(models.DateOf(q.SnapshotDate)) {
			continue
		}
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		matches = append(matches, a)
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].ExpectedSavings.Equal(matches[j].ExpectedSavings) {
			return matches[i].ExpectedSavings.GreaterThan(matches[j].ExpectedSavings)
		}
		return matches[i].BatchKey() < matches[j].BatchKey()
	})

	total := len(matches)
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = total
	}
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

// ListCreatedBetween returns actions created within [from, to].
func (r *ActionRepository) ListCreatedBetween(_ context.Context, from, to time.Time) ([]models.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Action
	for _, a := range r.byBatch {
		created := models.DateOf(a.CreatedAt)
		if created.Before(models.DateOf(from)) || created.After(models.DateOf(to)) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BatchKey() < out[j].BatchKey() })
	return out, nil
}

// UpdateStatus applies an approval-workflow transition.
func (r *ActionRepository) UpdateStatus(_ context.Context, actionID string, status models.ActionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid action status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, a := range r.byBatch {
		if a.ActionID != actionID {
			continue
		}
		if !a.Status.CanTransitionTo(status) {
			return fmt.Errorf("action %s: transition %s -> %s not allowed", actionID, a.Status, status)
		}
		a.Status = status
		r.byBatch[key] = a
		return nil
	}
	return repository.ErrNotFound
}

// OutcomeRepository provides in-memory, append-only outcome storage.
type OutcomeRepository struct {
	mu       sync.RWMutex
	outcomes []models.ActionOutcome
}

// NewOutcomeRepository creates a new in-memory outcome repository.
func NewOutcomeRepository() *OutcomeRepository {
	return &OutcomeRepository{}
}

// Verify interface compliance
var _ repository.OutcomeRepository = (*OutcomeRepository)(nil)

// Append records one measured outcome.
func (r *OutcomeRepository) Append(_ context.Context, outcome models.ActionOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

// HasForAction reports whether an outcome was already recorded for an action.
func (r *OutcomeRepository) HasForAction(_ context.Context, actionID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.outcomes {
		if o.ActionID == actionID {
			return true, nil
		}
	}
	return false, nil
}

// ListMeasuredBetween returns outcomes measured within [from, to].
func (r *OutcomeRepository) ListMeasuredBetween(_ context.Context, from, to time.Time) ([]models.ActionOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ActionOutcome
	for _, o := range r.outcomes {
		measured := models.DateOf(o.MeasuredAt)
		if measured.Before(models.DateOf(from)) || measured.After(models.DateOf(to)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActionID < out[j].ActionID })
	return out, nil
}
