package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const (
	collTransactions = "transactions"
	collBaselines    = "baselines"
	collSettings     = "settings"
	collUsers        = "users"
	collLessons      = "lessons"
	collChallenges   = "challenges"

	databaseName = "fingrow"
)

// Connect opens a client against the document store and verifies connectivity.
// Server selection is bounded so a down store fails fast instead of hanging
// the caller.
func Connect(ctx context.Context, uri string) (*mongo.Database, func(), error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping document store: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	}
	return client.Database(databaseName), cleanup, nil
}

// EnsureIndexes creates the indexes the repositories rely on. Safe to call on
// every startup; existing indexes are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	_, err := db.Collection(collTransactions).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_recurring", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("transactions indexes: %w", err)
	}

	_, err = db.Collection(collBaselines).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("baselines index: %w", err)
	}

	_, err = db.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	return nil
}
