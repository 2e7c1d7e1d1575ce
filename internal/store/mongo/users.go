package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// pointsPerLevel is the gamification ladder step.
const pointsPerLevel = 500

// User is an account holder. Points accrue from passed lesson quizzes and
// completed challenges; Level is derived from points on read.
type User struct {
	ID               string    `json:"id" bson:"_id"`
	ExternalID       string    `json:"externalId,omitempty" bson:"external_id,omitempty"`
	Email            string    `json:"email" bson:"email"`
	DisplayName      string    `json:"displayName" bson:"display_name"`
	Points           int       `json:"points" bson:"points"`
	Level            int       `json:"level" bson:"-"`
	JoinedChallenges []string  `json:"joinedChallenges" bson:"joined_challenges"`
	CompletedLessons []string  `json:"completedLessons" bson:"completed_lessons"`
	CreatedAt        time.Time `json:"createdAt" bson:"created_ts"`
}

func (u *User) deriveLevel() {
	u.Level = 1 + u.Points/pointsPerLevel
}

// UserRepository persists account holders.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a repository over the given database.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(collUsers)}
}

// Insert stores a new user.
func (r *UserRepository) Insert(ctx context.Context, u *User) error {
	if u.JoinedChallenges == nil {
		u.JoinedChallenges = []string{}
	}
	if u.CompletedLessons == nil {
		u.CompletedLessons = []string{}
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get returns a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.deriveLevel()
	return &u, nil
}

// List returns all users.
func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := []User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for i := range users {
		users[i].deriveLevel()
	}
	return users, nil
}

// CompleteLesson marks a lesson completed and awards its points exactly once.
// It reports false when the user had already completed the lesson.
func (r *UserRepository) CompleteLesson(ctx context.Context, userID, lessonID string, points int) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "completed_lessons": bson.M{"$ne": lessonID}},
		bson.M{
			"$addToSet": bson.M{"completed_lessons": lessonID},
			"$inc":      bson.M{"points": points},
		},
	)
	if err != nil {
		return false, fmt.Errorf("complete lesson: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// JoinChallenge records challenge membership idempotently.
func (r *UserRepository) JoinChallenge(ctx context.Context, userID, challengeID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"joined_challenges": challengeID}},
	)
	if err != nil {
		return fmt.Errorf("join challenge: %w", err)
	}
	return nil
}

// AwardPoints increments the user's points.
func (r *UserRepository) AwardPoints(ctx context.Context, userID string, points int) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{"points": points}},
	)
	if err != nil {
		return fmt.Errorf("award points: %w", err)
	}
	return nil
}
