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

// Challenge is a shared goal users join and complete for points.
type Challenge struct {
	ID           string    `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description" bson:"description"`
	Category     string    `json:"category" bson:"category"`
	TargetAmount *float64  `json:"targetAmount,omitempty" bson:"target_amount,omitempty"`
	DurationDays int       `json:"durationDays" bson:"duration_days"`
	PointsAward  int       `json:"pointsAward" bson:"points_award"`
	Participants []string  `json:"participants" bson:"participants"`
	CompletedBy  []string  `json:"completedBy" bson:"completed_by"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_ts"`
}

// ChallengeRepository persists challenges.
type ChallengeRepository struct {
	coll *mongo.Collection
}

// NewChallengeRepository creates a repository over the given database.
func NewChallengeRepository(db *mongo.Database) *ChallengeRepository {
	return &ChallengeRepository{coll: db.Collection(collChallenges)}
}

// List returns all challenges, newest first.
func (r *ChallengeRepository) List(ctx context.Context) ([]Challenge, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_ts", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	challenges := []Challenge{}
	if err := cursor.All(ctx, &challenges); err != nil {
		return nil, fmt.Errorf("decode challenges: %w", err)
	}
	return challenges, nil
}

// Get returns a challenge by ID.
func (r *ChallengeRepository) Get(ctx context.Context, id string) (*Challenge, error) {
	var c Challenge
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &c, nil
}

// Insert stores a new challenge.
func (r *ChallengeRepository) Insert(ctx context.Context, c *Challenge) error {
	if c.Participants == nil {
		c.Participants = []string{}
	}
	if c.CompletedBy == nil {
		c.CompletedBy = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// Join adds the user to the participant list; joining twice is a no-op.
func (r *ChallengeRepository) Join(ctx context.Context, id, userID string) (*Challenge, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c Challenge
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"participants": userID}},
		opts,
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("join challenge: %w", err)
	}
	return &c, nil
}

// Complete marks the challenge done for a participant. It reports false when
// the user had already completed it, so points are awarded at most once. A
// user who never joined gets ErrNotFound.
func (r *ChallengeRepository) Complete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "participants": userID, "completed_by": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"completed_by": userID}},
	)
	if err != nil {
		return false, fmt.Errorf("complete challenge: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the challenge does not exist, the user never joined, or
		// completion was already recorded. Disambiguate for the caller.
		var c Challenge
		findErr := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
		if errors.Is(findErr, mongo.ErrNoDocuments) {
			return false, ErrNotFound
		}
		if findErr != nil {
			return false, fmt.Errorf("complete challenge: %w", findErr)
		}
		for _, p := range c.Participants {
			if p == userID {
				return false, nil // already completed
			}
		}
		return false, ErrNotFound // never joined
	}
	return true, nil
}

// UpsertByTitle creates or replaces a challenge keyed by its title, used by
// the content seeder. An existing challenge keeps its ID and membership.
func (r *ChallengeRepository) UpsertByTitle(ctx context.Context, c *Challenge) error {
	var existing Challenge
	err := r.coll.FindOne(ctx, bson.M{"title": c.Title}).Decode(&existing)
	if err == nil {
		c.ID = existing.ID
		c.Participants = existing.Participants
		c.CompletedBy = existing.CompletedBy
		c.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("find challenge by title: %w", err)
	}
	if c.Participants == nil {
		c.Participants = []string{}
	}
	if c.CompletedBy == nil {
		c.CompletedBy = []string{}
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, opts); err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	return nil
}
