// Package mongodb implements the repository contracts on MongoDB. Monetary
// decimals are stored as float64 document fields and converted at the
// boundary, keeping the driver free of custom codecs.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	collSales     = "sales_daily"
	collInventory = "inventory_batches"
	collProducts  = "products"
	collVelocity  = "velocity_snapshots"
	collRisk      = "batch_risk"
	collActions   = "actions"
	collOutcomes  = "action_outcomes"
)

// Store owns the client connection and hands out per-entity repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}

	return &Store{client: client, db: db}, nil
}

// ensureIndexes creates the uniqueness constraints the upsert paths rely on.
// The action batch key must be unique so concurrent processes cannot race the
// find-then-insert in UpsertProposed into duplicate proposals.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collActions).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "snapshot_date", Value: 1},
			{Key: "source_store", Value: 1},
			{Key: "product_id", Value: 1},
			{Key: "batch_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create action batch index: %w", err)
	}
	return nil
}

// Sales returns the sales record repository.
func (s *Store) Sales() *SalesRepository { return &SalesRepository{coll: s.db.Collection(collSales)} }

// Inventory returns the inventory batch repository.
func (s *Store) Inventory() *InventoryRepository {
	return &InventoryRepository{coll: s.db.Collection(collInventory)}
}

// Products returns the product catalog repository.
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{coll: s.db.Collection(collProducts)}
}

// Velocities returns the velocity snapshot repository.
func (s *Store) Velocities() *VelocityRepository {
	return &VelocityRepository{coll: s.db.Collection(collVelocity)}
}

// Risks returns the risk score repository.
func (s *Store) Risks() *RiskRepository { return &RiskRepository{coll: s.db.Collection(collRisk)} }

// Actions returns the action repository.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{coll: s.db.Collection(collActions)}
}

// Outcomes returns the action outcome repository.
func (s *Store) Outcomes() *OutcomeRepository {
	return &OutcomeRepository{coll: s.db.Collection(collOutcomes)}
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
