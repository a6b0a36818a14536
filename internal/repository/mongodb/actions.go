package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

type actionDoc struct {
	ActionID        string    `bson:"action_id"`
	CreatedAt       time.Time `bson:"created_at"`
	SnapshotDate    time.Time `bson:"snapshot_date"`
	Type            string    `bson:"action_type"`
	SourceStore     string    `bson:"source_store"`
	DestStore       string    `bson:"dest_store,omitempty"`
	ProductID       string    `bson:"product_id"`
	BatchID         string    `bson:"batch_id"`
	Quantity        int       `bson:"quantity"`
	DiscountPct     float64   `bson:"discount_pct,omitempty"`
	ExpectedSavings float64   `bson:"expected_savings"`
	Status          string    `bson:"status"`
}

func toActionDoc(a models.Action) actionDoc {
	return actionDoc{
		ActionID:        a.ActionID,
		CreatedAt:       a.CreatedAt,
		SnapshotDate:    models.DateOf(a.SnapshotDate),
		Type:            string(a.Type),
		SourceStore:     a.SourceStore,
		DestStore:       a.DestStore,
		ProductID:       a.ProductID,
		BatchID:         a.BatchID,
		Quantity:        a.Quantity,
		DiscountPct:     a.DiscountPct,
		ExpectedSavings: a.ExpectedSavings.InexactFloat64(),
		Status:          string(a.Status),
	}
}

func (d actionDoc) model() models.Action {
	return models.Action{
		ActionID:        d.ActionID,
		CreatedAt:       d.CreatedAt.UTC(),
		SnapshotDate:    d.SnapshotDate.UTC(),
		Type:            models.ActionType(d.Type),
		SourceStore:     d.SourceStore,
		DestStore:       d.DestStore,
		ProductID:       d.ProductID,
		BatchID:         d.BatchID,
		Quantity:        d.Quantity,
		DiscountPct:     d.DiscountPct,
		ExpectedSavings: decimal.NewFromFloat(d.ExpectedSavings),
		Status:          models.ActionStatus(d.Status),
	}
}

func actionBatchFilter(a models.Action) bson.M {
	return bson.M{
		"snapshot_date": models.DateOf(a.SnapshotDate),
		"source_store":  a.SourceStore,
		"product_id":    a.ProductID,
		"batch_id":      a.BatchID,
	}
}

// ActionRepository stores recommended actions.
type ActionRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.ActionRepository = (*ActionRepository)(nil)

// UpsertProposed writes proposals keyed by (snapshot, store, product, batch).
// An existing PROPOSED row is updated in place keeping its ID and creation
// time; rows already moved past PROPOSED by the approval workflow are left
// untouched. The pipeline serializes writers per snapshot date, so the
// read-then-write here cannot interleave with another run of the same date.
func (r *ActionRepository) UpsertProposed(ctx context.Context, actions []models.Action) (int, error) {
	written := 0
	for _, a := range actions {
		var existing actionDoc
		err := r.coll.FindOne(ctx, actionBatchFilter(a)).Decode(&existing)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			if _, err := r.coll.InsertOne(ctx, toActionDoc(a)); err != nil {
				return written, fmt.Errorf("insert action: %w", err)
			}
			written++
		case err != nil:
			return written, fmt.Errorf("find existing action: %w", err)
		case existing.Status == string(models.StatusProposed):
			a.ActionID = existing.ActionID
			a.CreatedAt = existing.CreatedAt
			if _, err := r.coll.ReplaceOne(ctx, actionBatchFilter(a), toActionDoc(a)); err != nil {
				return written, fmt.Errorf("replace proposed action: %w", err)
			}
			written++
		}
	}
	return written, nil
}

// GetByID returns one action or repository.ErrNotFound.
func (r *ActionRepository) GetByID(ctx context.Context, actionID string) (*models.Action, error) {
	var doc actionDoc
	err := r.coll.FindOne(ctx, bson.M{"action_id": actionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find action %s: %w", actionID, err)
	}
	a := doc.model()
	return &a, nil
}

// List returns one page of matches plus the total match count, ordered by
// descending expected savings.
func (r *ActionRepository) List(ctx context.Context, q repository.ActionQuery) ([]models.Action, int, error) {
	filter := bson.M{}
	if !q.SnapshotDate.IsZero() {
		filter["snapshot_date"] = models.DateOf(q.SnapshotDate)
	}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count actions: %w", err)
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "expected_savings", Value: -1},
		{Key: "source_store", Value: 1},
		{Key: "product_id", Value: 1},
		{Key: "batch_id", Value: 1},
	})
	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * q.PageSize)).SetLimit(int64(q.PageSize))
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find actions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Action
	for cursor.Next(ctx) {
		var doc actionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode action: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, int(total), cursor.Err()
}

// ListCreatedBetween returns actions created within [from, to].
func (r *ActionRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]models.Action, error) {
	filter := bson.M{"created_at": bson.M{
		"$gte": models.DateOf(from),
		"$lt":  models.DateOf(to).AddDate(0, 0, 1),
	}}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find actions by creation: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Action
	for cursor.Next(ctx) {
		var doc actionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode action: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, cursor.Err()
}

// UpdateStatus applies an approval-workflow transition.
func (r *ActionRepository) UpdateStatus(ctx context.Context, actionID string, status models.ActionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid action status %q", status)
	}

	current, err := r.GetByID(ctx, actionID)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(status) {
		return fmt.Errorf("action %s: transition %s -> %s not allowed", actionID, current.Status, status)
	}

	_, err = r.coll.UpdateOne(ctx,
		bson.M{"action_id": actionID},
		bson.M{"$set": bson.M{"status": string(status)}})
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	return nil
}

type outcomeDoc struct {
	ActionID       string    `bson:"action_id"`
	MeasuredAt     time.Time `bson:"measured_at"`
	RecoveredValue float64   `bson:"recovered_value"`
	ClearedUnits   int       `bson:"cleared_units"`
	Notes          string    `bson:"notes,omitempty"`
}

// OutcomeRepository stores append-only measured outcomes.
type OutcomeRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.OutcomeRepository = (*OutcomeRepository)(nil)

// Append records one measured outcome.
func (r *OutcomeRepository) Append(ctx context.Context, outcome models.ActionOutcome) error {
	doc := outcomeDoc{
		ActionID:       outcome.ActionID,
		MeasuredAt:     outcome.MeasuredAt,
		RecoveredValue: outcome.RecoveredValue.InexactFloat64(),
		ClearedUnits:   outcome.ClearedUnits,
		Notes:          outcome.Notes,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert action outcome: %w", err)
	}
	return nil
}

// HasForAction reports whether an outcome was already recorded for an action.
func (r *OutcomeRepository) HasForAction(ctx context.Context, actionID string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"action_id": actionID})
	if err != nil {
		return false, fmt.Errorf("count outcomes for action %s: %w", actionID, err)
	}
	return count > 0, nil
}

// ListMeasuredBetween returns outcomes measured within [from, to].
func (r *OutcomeRepository) ListMeasuredBetween(ctx context.Context, from, to time.Time) ([]models.ActionOutcome, error) {
	filter := bson.M{"measured_at": bson.M{
		"$gte": models.DateOf(from),
		"$lt":  models.DateOf(to).AddDate(0, 0, 1),
	}}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find action outcomes: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.ActionOutcome
	for cursor.Next(ctx) {
		var doc outcomeDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode action outcome: %w", err)
		}
		out = append(out, models.ActionOutcome{
			ActionID:       doc.ActionID,
			MeasuredAt:     doc.MeasuredAt.UTC(),
			RecoveredValue: decimal.NewFromFloat(doc.RecoveredValue),
			ClearedUnits:   doc.ClearedUnits,
			Notes:          doc.Notes,
		})
	}
	return out, cursor.Err()
}
