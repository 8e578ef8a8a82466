package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const preferencesCollection = "notification_preferences"

// PreferencesRepository handles notification preferences data operations
type PreferencesRepository struct {
	client *mongodb.MongoClient
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(client *mongodb.MongoClient) *PreferencesRepository {
	return &PreferencesRepository{client: client}
}

// GetByUserID retrieves preferences for a specific user. A missing
// document yields permissive defaults: absence of preferences must
// never suppress delivery.
func (r *PreferencesRepository) GetByUserID(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	var prefs domain.NotificationPreferences
	err := r.client.WithRetry(ctx, "preferences_find", func(ctx context.Context) error {
		return r.client.Collection(preferencesCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&prefs)
	})

	if err == mongo.ErrNoDocuments {
		return &domain.NotificationPreferences{
			UserID:       userID,
			PushEnabled:  true,
			EmailEnabled: true,
			Categories:   make(map[string]bool),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Upsert creates or replaces a user's preferences
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *domain.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now()
	if prefs.CreatedAt.IsZero() {
		prefs.CreatedAt = prefs.UpdatedAt
	}

	return r.client.WithRetry(ctx, "preferences_upsert", func(ctx context.Context) error {
		filter := bson.M{"user_id": prefs.UserID}
		update := bson.M{"$set": prefs}
		opts := options.Update().SetUpsert(true)
		_, err := r.client.Collection(preferencesCollection).UpdateOne(ctx, filter, update, opts)
		return err
	})
}
