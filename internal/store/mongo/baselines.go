package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fingrow/fingrow/internal/finance"
)

// BaselineRepository persists the per-user monthly deposit baseline.
// It implements finance.BaselineStore.
type BaselineRepository struct {
	coll *mongo.Collection
}

// NewBaselineRepository creates a repository over the given database.
func NewBaselineRepository(db *mongo.Database) *BaselineRepository {
	return &BaselineRepository{coll: db.Collection(collBaselines)}
}

// Get returns the user's baseline, or (nil, nil) when none is set.
func (r *BaselineRepository) Get(ctx context.Context, userID string) (*finance.Baseline, error) {
	var b finance.Baseline
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get baseline: %w", err)
	}
	return &b, nil
}

// Upsert replaces the user's baseline, creating it when absent. The unique
// index on user_id guarantees at most one active baseline per user.
func (r *BaselineRepository) Upsert(ctx context.Context, b *finance.Baseline) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"user_id": b.UserID}, b, opts); err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

// Delete removes the user's baseline entirely.
func (r *BaselineRepository) Delete(ctx context.Context, userID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("delete baseline: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
