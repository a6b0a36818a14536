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

type salesDoc struct {
	Date      time.Time `bson:"date"`
	StoreID   string    `bson:"store_id"`
	ProductID string    `bson:"product_id"`
	UnitsSold int       `bson:"units_sold"`
	UnitPrice float64   `bson:"unit_price"`
}

func toSalesDoc(r models.SalesRecord) salesDoc {
	return salesDoc{
		Date:      models.DateOf(r.Date),
		StoreID:   r.StoreID,
		ProductID: r.ProductID,
		UnitsSold: r.UnitsSold,
		UnitPrice: r.UnitPrice.InexactFloat64(),
	}
}

func (d salesDoc) model() models.SalesRecord {
	return models.SalesRecord{
		Date:      d.Date.UTC(),
		StoreID:   d.StoreID,
		ProductID: d.ProductID,
		UnitsSold: d.UnitsSold,
		UnitPrice: decimal.NewFromFloat(d.UnitPrice),
	}
}

// SalesRepository stores daily sales records keyed by (date, store, product).
type SalesRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.SalesRepository = (*SalesRepository)(nil)

// UpsertBatch merges records by natural key using a bulk replace-upsert.
func (r *SalesRepository) UpsertBatch(ctx context.Context, records []models.SalesRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		doc := toSalesDoc(rec)
		filter := bson.M{"date": doc.Date, "store_id": doc.StoreID, "product_id": doc.ProductID}
		writes = append(writes, mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(doc).SetUpsert(true))
	}

	res, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert sales: %w", err)
	}
	return int(res.UpsertedCount + res.ModifiedCount + res.MatchedCount), nil
}

// ListRange returns every record with from <= date <= to.
func (r *SalesRepository) ListRange(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error) {
	filter := bson.M{"date": bson.M{"$gte": models.DateOf(from), "$lte": models.DateOf(to)}}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "store_id", Value: 1}, {Key: "product_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find sales range: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.SalesRecord
	for cursor.Next(ctx) {
		var doc salesDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode sales record: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, cursor.Err()
}

type inventoryDoc struct {
	SnapshotDate time.Time `bson:"snapshot_date"`
	StoreID      string    `bson:"store_id"`
	ProductID    string    `bson:"product_id"`
	BatchID      string    `bson:"batch_id"`
	ExpiryDate   time.Time `bson:"expiry_date"`
	OnHandQty    int       `bson:"on_hand_qty"`
	UnitCost     float64   `bson:"unit_cost"`
}

func toInventoryDoc(b models.InventoryBatch) inventoryDoc {
	return inventoryDoc{
		SnapshotDate: models.DateOf(b.SnapshotDate),
		StoreID:      b.StoreID,
		ProductID:    b.ProductID,
		BatchID:      b.BatchID,
		ExpiryDate:   models.DateOf(b.ExpiryDate),
		OnHandQty:    b.OnHandQty,
		UnitCost:     b.UnitCost.InexactFloat64(),
	}
}

func (d inventoryDoc) model() models.InventoryBatch {
	return models.InventoryBatch{
		SnapshotDate: d.SnapshotDate.UTC(),
		StoreID:      d.StoreID,
		ProductID:    d.ProductID,
		BatchID:      d.BatchID,
		ExpiryDate:   d.ExpiryDate.UTC(),
		OnHandQty:    d.OnHandQty,
		UnitCost:     decimal.NewFromFloat(d.UnitCost),
	}
}

// InventoryRepository stores inventory batches keyed by
// (snapshot_date, store, product, batch).
type InventoryRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.InventoryRepository = (*InventoryRepository)(nil)

// UpsertBatch merges batches by natural key using a bulk replace-upsert.
func (r *InventoryRepository) UpsertBatch(ctx context.Context, batches []models.InventoryBatch) (int, error) {
	if len(batches) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(batches))
	for _, b := range batches {
		doc := toInventoryDoc(b)
		filter := bson.M{
			"snapshot_date": doc.SnapshotDate,
			"store_id":      doc.StoreID,
			"product_id":    doc.ProductID,
			"batch_id":      doc.BatchID,
		}
		writes = append(writes, mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(doc).SetUpsert(true))
	}

	res, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert inventory: %w", err)
	}
	return int(res.UpsertedCount + res.ModifiedCount + res.MatchedCount), nil
}

// ListForSnapshot returns the batches of one snapshot date.
func (r *InventoryRepository) ListForSnapshot(ctx context.Context, snapshotDate time.Time) ([]models.InventoryBatch, error) {
	filter := bson.M{"snapshot_date": models.DateOf(snapshotDate)}
	opts := options.Find().SetSort(bson.D{{Key: "store_id", Value: 1}, {Key: "product_id", Value: 1}, {Key: "batch_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find inventory snapshot: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.InventoryBatch
	for cursor.Next(ctx) {
		var doc inventoryDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode inventory batch: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, cursor.Err()
}

type productDoc struct {
	ProductID string  `bson:"product_id"`
	Name      string  `bson:"name"`
	Category  string  `bson:"category"`
	ListPrice float64 `bson:"list_price"`
}

func (d productDoc) model() models.Product {
	return models.Product{
		ProductID: d.ProductID,
		Name:      d.Name,
		Category:  d.Category,
		ListPrice: decimal.NewFromFloat(d.ListPrice),
	}
}

// ProductRepository stores catalog rows keyed by product ID.
type ProductRepository struct {
	coll *mongo.Collection
}

// Verify interface compliance
var _ repository.ProductRepository = (*ProductRepository)(nil)

// UpsertBatch merges products by ID.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []models.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(products))
	for _, p := range products {
		doc := productDoc{ProductID: p.ProductID, Name: p.Name, Category: p.Category, ListPrice: p.ListPrice.InexactFloat64()}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"product_id": doc.ProductID}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	res, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert products: %w", err)
	}
	return int(res.UpsertedCount + res.ModifiedCount + res.MatchedCount), nil
}

// GetByID returns one product or repository.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, productID string) (*models.Product, error) {
	var doc productDoc
	err := r.coll.FindOne(ctx, bson.M{"product_id": productID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", productID, err)
	}
	p := doc.model()
	return &p, nil
}

// ListAll returns every product ordered by ID.
func (r *ProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "product_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		out = append(out, doc.model())
	}
	return out, cursor.Err()
}
