package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Settings is the per-user singleton of four fixed sections. Section contents
// are schemaless documents, matching the original flexible shape.
type Settings struct {
	UserID            string                 `json:"userId" bson:"_id"`
	Profile           map[string]interface{} `json:"profile" bson:"profile"`
	Notifications     map[string]interface{} `json:"notifications" bson:"notifications"`
	PrivacySettings   map[string]interface{} `json:"privacySettings" bson:"privacy_settings"`
	FinancialSettings map[string]interface{} `json:"financialSettings" bson:"financial_settings"`
}

// SettingsSections are the only section names the PATCH route accepts.
var SettingsSections = map[string]string{
	"profile":           "profile",
	"notifications":     "notifications",
	"privacySettings":   "privacy_settings",
	"financialSettings": "financial_settings",
}

func emptySettings(userID string) *Settings {
	return &Settings{
		UserID:            userID,
		Profile:           map[string]interface{}{},
		Notifications:     map[string]interface{}{},
		PrivacySettings:   map[string]interface{}{},
		FinancialSettings: map[string]interface{}{},
	}
}

// SettingsRepository persists per-user settings with upsert semantics: the
// document is created lazily on first write.
type SettingsRepository struct {
	coll *mongo.Collection
}

// NewSettingsRepository creates a repository over the given database.
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{coll: db.Collection(collSettings)}
}

// Get returns the user's settings. A user who has never written settings gets
// the empty four-section document rather than an error.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*Settings, error) {
	var s Settings
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return emptySettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	normalizeSettings(&s)
	return &s, nil
}

// Put replaces the whole settings document, creating it when absent.
func (r *SettingsRepository) Put(ctx context.Context, s *Settings) error {
	normalizeSettings(s)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": s.UserID}, s, opts); err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// PatchSection merges the given keys into one named section, leaving the
// other sections untouched, and returns the merged document. Unknown sections
// are rejected with ErrNotFound semantics by the caller; here the bson field
// must already be resolved via SettingsSections.
func (r *SettingsRepository) PatchSection(ctx context.Context, userID, bsonSection string, patch map[string]interface{}) (*Settings, error) {
	set := bson.M{}
	for key, value := range patch {
		set[bsonSection+"."+key] = value
	}
	if len(set) == 0 {
		return r.Get(ctx, userID)
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var s Settings
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(&s)
	if err != nil {
		return nil, fmt.Errorf("patch settings section: %w", err)
	}
	normalizeSettings(&s)
	return &s, nil
}

// normalizeSettings guarantees all four sections are non-nil maps so partial
// documents created by section patches still render every section.
func normalizeSettings(s *Settings) {
	if s.Profile == nil {
		s.Profile = map[string]interface{}{}
	}
	if s.Notifications == nil {
		s.Notifications = map[string]interface{}{}
	}
	if s.PrivacySettings == nil {
		s.PrivacySettings = map[string]interface{}{}
	}
	if s.FinancialSettings == nil {
		s.FinancialSettings = map[string]interface{}{}
	}
}
