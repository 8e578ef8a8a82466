package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const notificationsCollection = "notifications"

// NotificationRepository handles delivery audit records
type NotificationRepository struct {
	client *mongodb.MongoClient
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(client *mongodb.MongoClient) *NotificationRepository {
	return &NotificationRepository{client: client}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	n.ID = primitive.NewObjectID()
	n.Status = domain.NotificationStatusPending
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt

	return r.client.WithRetry(ctx, "notification_create", func(ctx context.Context) error {
		_, err := r.client.Collection(notificationsCollection).InsertOne(ctx, n)
		return err
	})
}

// FindByID finds a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*domain.Notification, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid notification id "+id, err)
	}

	var n domain.Notification
	err = r.client.WithRetry(ctx, "notification_find", func(ctx context.Context) error {
		return r.client.Collection(notificationsCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&n)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("notification not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkStatus updates a notification's delivery status
func (r *NotificationRepository) MarkStatus(ctx context.Context, id string, status domain.NotificationStatus, sendErr error) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NewValidationError("invalid notification id "+id, err)
	}

	now := time.Now()
	set := bson.M{"status": status, "updated_at": now}
	if status == domain.NotificationStatusSent {
		set["sent_at"] = now
	}
	if sendErr != nil {
		set["error"] = sendErr.Error()
	}

	return r.client.WithRetry(ctx, "notification_mark", func(ctx context.Context) error {
		_, err := r.client.Collection(notificationsCollection).UpdateOne(ctx,
			bson.M{"_id": objectID}, bson.M{"$set": set})
		return err
	})
}

// DeleteOlderThan removes terminal notification records past the cutoff
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":     bson.M{"$in": []domain.NotificationStatus{domain.NotificationStatusSent, domain.NotificationStatusSkipped, domain.NotificationStatusFailed}},
		"updated_at": bson.M{"$lt": cutoff},
	}

	var deleted int64
	err := r.client.WithRetry(ctx, "notification_delete_old", func(ctx context.Context) error {
		res, err := r.client.Collection(notificationsCollection).DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	return deleted, err
}
