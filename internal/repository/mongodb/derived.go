package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbodje/shelfwatch/internal/domain/models"
	"github.com/mbodje/shelfwatch/internal/repository"
)

type velocityDoc struct {
	AsOfDate     time.Time `bson:"as_of_date"`
	StoreID      string    `bson:"store_id"`
	ProductID    string    `bson:"product_id"`
	V7           float64   `bson:"v7"`
	V14          float64   `bson:"v14"`
	V30          float64   `bson:"v30"`
	Volatility   float64   `bson:"volatility"`
	DaysWithData int       `bson:"days_with_data"`
	Completeness string    `bson:"data_completeness"`
}

func toVelocityDoc(v models.VelocitySnapshot) velocityDoc {
	return velocityDoc{
		AsOfDate:     models.DateOf(v.AsOfDate),
		StoreID:      v.StoreID,
		ProductID:    v.ProductID,
		V7:           v.V7,
		V14:          v.V14,
		V30:          v.V30,
		Volatility:   v.Volatility,
		DaysWithData: v.DaysWithData,
		Completeness: string(v.Completeness),
	}
}

func (d velocityDoc) model() models.VelocitySnapshot {
	return models.VelocitySnapshot{
		AsOfDate:     d.AsOfDate.UTC(),
		StoreID:      d.StoreID,
		ProductID:    d.ProductID,
		V7:           d.V7,
		V14:          d.V14,
		V30:          d.V30,
		Volatility:   d.Volatility,
		DaysWithData: d.DaysWithData,
		Completeness: models.Completeness(d.Completeness),
	}
}

// VelocityRepository stores derived velocity snapshots per as-of date.
type VelocityRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.VelocityRepository = (*VelocityRepository)(nil)

// ReplaceSnapshot overwrites every snapshot of the as-of date. The pipeline
// serializes writers per date, so delete-then-insert is safe here.
func (r *VelocityRepository) ReplaceSnapshot(ctx context.Context, asOfDate time.Time, snapshots []models.VelocitySnapshot) error {
	date := models.DateOf(asOfDate)
	if _, err := r.coll.DeleteMany(ctx, bson.M{"as_of_date": date}); err != nil {
		return fmt.Errorf("clear velocity snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(snapshots))
	for _, v := range snapshots {
		docs = append(docs, toVelocityDoc(v))
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert velocity snapshot: %w", err)
	}
	return nil
}

// ListForSnapshot returns the snapshots of one as-of date.
func (r *VelocityRepository) ListForSnapshot(ctx context.Context, asOfDate time.Time) ([]models.VelocitySnapshot, error) {
	filter := bson.M{"as_of_date": models.DateOf(asOfDate)}
	opts := options.Find().SetSort(bson.D{{Key: "store_id", Value: 1}, {Key: "product_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find velocity snapshot: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.VelocitySnapshot
	for cursor.Next(ctx) {
		var doc velocityDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode velocity snapshot: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, cursor.Err()
}

type riskDoc struct {
	SnapshotDate          time.Time `bson:"snapshot_date"`
	StoreID               string    `bson:"store_id"`
	ProductID             string    `bson:"product_id"`
	BatchID               string    `bson:"batch_id"`
	DaysToExpiry          int       `bson:"days_to_expiry"`
	ExpectedSalesToExpiry float64   `bson:"expected_sales_to_expiry"`
	AtRiskUnits           float64   `bson:"at_risk_units"`
	AtRiskValue           float64   `bson:"at_risk_value"`
	RiskScore             float64   `bson:"risk_score"`
	UnitCost              float64   `bson:"unit_cost"`
	CostTier              string    `bson:"cost_tier"`
	Completeness          string    `bson:"data_completeness"`
}

func toRiskDoc(r models.RiskScore) riskDoc {
	return riskDoc{
		SnapshotDate:          models.DateOf(r.SnapshotDate),
		StoreID:               r.StoreID,
		ProductID:             r.ProductID,
		BatchID:               r.BatchID,
		DaysToExpiry:          r.DaysToExpiry,
		ExpectedSalesToExpiry: r.ExpectedSalesToExpiry,
		AtRiskUnits:           r.AtRiskUnits,
		AtRiskValue:           r.AtRiskValue.InexactFloat64(),
		RiskScore:             r.RiskScore,
		UnitCost:              r.UnitCost.InexactFloat64(),
		CostTier:              string(r.CostTier),
		Completeness:          string(r.Completeness),
	}
}

func (d riskDoc) model() models.RiskScore {
	return models.RiskScore{
		SnapshotDate:          d.SnapshotDate.UTC(),
		StoreID:               d.StoreID,
		ProductID:             d.ProductID,
		BatchID:               d.BatchID,
		DaysToExpiry:          d.DaysToExpiry,
		ExpectedSalesToExpiry: d.ExpectedSalesToExpiry,
		AtRiskUnits:           d.AtRiskUnits,
		AtRiskValue:           decimal.NewFromFloat(d.AtRiskValue),
		RiskScore:             d.RiskScore,
		UnitCost:              decimal.NewFromFloat(d.UnitCost),
		CostTier:              models.CostTier(d.CostTier),
		Completeness:          models.Completeness(d.Completeness),
	}
}

// RiskRepository stores risk scores per snapshot date.
type RiskRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.RiskRepository = (*RiskRepository)(nil)

// ReplaceSnapshot overwrites every risk row of the snapshot date.
func (r *RiskRepository) ReplaceSnapshot(ctx context.Context, snapshotDate time.Time, rows []models.RiskScore) error {
	date := models.DateOf(snapshotDate)
	if _, err := r.coll.DeleteMany(ctx, bson.M{"snapshot_date": date}); err != nil {
		return fmt.Errorf("clear risk snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toRiskDoc(row))
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert risk snapshot: %w", err)
	}
	return nil
}

// ListForSnapshot returns the risk rows of one snapshot date.
func (r *RiskRepository) ListForSnapshot(ctx context.Context, snapshotDate time.Time) ([]models.RiskScore, error) {
	return r.find(ctx, bson.M{"snapshot_date": models.DateOf(snapshotDate)})
}

// Query returns matching rows ordered by descending risk score.
func (r *RiskRepository) Query(ctx context.Context, q repository.RiskQuery) ([]models.RiskScore, error) {
	filter := bson.M{"snapshot_date": models.DateOf(q.SnapshotDate)}
	if q.StoreID != "" {
		filter["store_id"] = q.StoreID
	}
	if len(q.ProductIDs) > 0 {
		filter["product_id"] = bson.M{"$in": q.ProductIDs}
	}
	if q.MinScore > 0 {
		filter["risk_score"] = bson.M{"$gte": q.MinScore}
	}
	if q.MaxDaysToExpiry != nil {
		filter["days_to_expiry"] = bson.M{"$lte": *q.MaxDaysToExpiry}
	}
	return r.find(ctx, filter)
}

func (r *RiskRepository) find(ctx context.Context, filter bson.M) ([]models.RiskScore, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "risk_score", Value: -1},
		{Key: "store_id", Value: 1},
		{Key: "product_id", Value: 1},
		{Key: "batch_id", Value: 1},
	})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find risk rows: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.RiskScore
	for cursor.Next(ctx) {
		var doc riskDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode risk row: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, cursor.Err()
}
