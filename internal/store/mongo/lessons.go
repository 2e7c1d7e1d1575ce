package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Question is one multiple-choice quiz question.
type Question struct {
	Prompt      string   `json:"prompt" bson:"prompt"`
	Options     []string `json:"options" bson:"options"`
	AnswerIndex int      `json:"answerIndex" bson:"answer_index"`
}

// Lesson is an educational unit with an attached quiz.
type Lesson struct {
	ID           string     `json:"id" bson:"_id"`
	Title        string     `json:"title" bson:"title"`
	Category     string     `json:"category" bson:"category"`
	Content      string     `json:"content" bson:"content"`
	PassingScore int        `json:"passingScore" bson:"passing_score"`
	Questions    []Question `json:"questions" bson:"questions"`
	PointsAward  int        `json:"pointsAward" bson:"points_award"`
}

// LessonRepository persists lessons.
type LessonRepository struct {
	coll *mongo.Collection
}

// NewLessonRepository creates a repository over the given database.
func NewLessonRepository(db *mongo.Database) *LessonRepository {
	return &LessonRepository{coll: db.Collection(collLessons)}
}

// List returns all lessons.
func (r *LessonRepository) List(ctx context.Context) ([]Lesson, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "title", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	lessons := []Lesson{}
	if err := cursor.All(ctx, &lessons); err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return lessons, nil
}

// Get returns a lesson by ID.
func (r *LessonRepository) Get(ctx context.Context, id string) (*Lesson, error) {
	var l Lesson
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &l, nil
}

// Insert stores a new lesson.
func (r *LessonRepository) Insert(ctx context.Context, l *Lesson) error {
	if _, err := r.coll.InsertOne(ctx, l); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

// UpsertByTitle creates or replaces a lesson keyed by its title, used by the
// content seeder so reruns stay idempotent. An existing lesson keeps its ID.
func (r *LessonRepository) UpsertByTitle(ctx context.Context, l *Lesson) error {
	var existing Lesson
	err := r.coll.FindOne(ctx, bson.M{"title": l.Title}).Decode(&existing)
	if err == nil {
		l.ID = existing.ID
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("find lesson by title: %w", err)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": l.ID}, l, opts); err != nil {
		return fmt.Errorf("upsert lesson: %w", err)
	}
	return nil
}
