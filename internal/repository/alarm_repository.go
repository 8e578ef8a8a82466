package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	"github.com/vhvplatform/go-reminder-engine/internal/recurrence"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const alarmsCollection = "alarms"

// AlarmRepository handles alarm data operations
type AlarmRepository struct {
	client *mongodb.MongoClient
}

// NewAlarmRepository creates a new alarm repository
func NewAlarmRepository(client *mongodb.MongoClient) *AlarmRepository {
	return &AlarmRepository{client: client}
}

// Create creates a new alarm, rejecting malformed recurrence rules
func (r *AlarmRepository) Create(ctx context.Context, alarm *domain.Alarm) error {
	if err := recurrence.ValidateAlarmRule(alarm.RecurrenceRule); err != nil {
		return err
	}

	alarm.ID = primitive.NewObjectID()
	alarm.CreatedAt = time.Now()
	alarm.UpdatedAt = alarm.CreatedAt

	return r.client.WithRetry(ctx, "alarm_create", func(ctx context.Context) error {
		_, err := r.client.Collection(alarmsCollection).InsertOne(ctx, alarm)
		return err
	})
}

// FindByID finds an alarm owned by the given user
func (r *AlarmRepository) FindByID(ctx context.Context, id, userID string) (*domain.Alarm, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid alarm id "+id, err)
	}

	var alarm domain.Alarm
	err = r.client.WithRetry(ctx, "alarm_find", func(ctx context.Context) error {
		filter := bson.M{"_id": objectID, "user_id": userID}
		return r.client.Collection(alarmsCollection).FindOne(ctx, filter).Decode(&alarm)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("alarm not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &alarm, nil
}

// FindEnabled returns every enabled alarm, for the startup
// reconciliation pass.
func (r *AlarmRepository) FindEnabled(ctx context.Context) ([]*domain.Alarm, error) {
	return r.find(ctx, "alarm_find_enabled", bson.M{"enabled": true})
}

// FindByLinkedTask finds alarms paired with a task's due date
func (r *AlarmRepository) FindByLinkedTask(ctx context.Context, userID, taskID string) ([]*domain.Alarm, error) {
	filter := bson.M{"user_id": userID, "linked_task_id": taskID}
	return r.find(ctx, "alarm_find_by_task", filter)
}

// FindByRoutine finds alarms paired with a routine's occurrences
func (r *AlarmRepository) FindByRoutine(ctx context.Context, userID, routineID string) ([]*domain.Alarm, error) {
	filter := bson.M{"user_id": userID, "routine_id": routineID}
	return r.find(ctx, "alarm_find_by_routine", filter)
}

func (r *AlarmRepository) find(ctx context.Context, op string, filter bson.M) ([]*domain.Alarm, error) {
	var alarms []*domain.Alarm
	err := r.client.WithRetry(ctx, op, func(ctx context.Context) error {
		cursor, err := r.client.Collection(alarmsCollection).Find(ctx, filter)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		alarms = alarms[:0]
		return cursor.All(ctx, &alarms)
	})
	if err != nil {
		return nil, err
	}
	return alarms, nil
}

// DeleteByID deletes one alarm owned by the given user
func (r *AlarmRepository) DeleteByID(ctx context.Context, id, userID string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NewValidationError("invalid alarm id "+id, err)
	}
	return r.client.WithRetry(ctx, "alarm_delete", func(ctx context.Context) error {
		_, err := r.client.Collection(alarmsCollection).DeleteOne(ctx, bson.M{"_id": objectID, "user_id": userID})
		return err
	})
}

// DeleteByLinkedTask deletes alarms paired with a task's due date
func (r *AlarmRepository) DeleteByLinkedTask(ctx context.Context, userID, taskID string) (int64, error) {
	filter := bson.M{"user_id": userID, "linked_task_id": taskID}
	return r.deleteMany(ctx, "alarm_delete_by_task", filter)
}

// DeleteByRoutine deletes alarms paired with a routine's occurrences
func (r *AlarmRepository) DeleteByRoutine(ctx context.Context, userID, routineID string) (int64, error) {
	filter := bson.M{"user_id": userID, "routine_id": routineID}
	return r.deleteMany(ctx, "alarm_delete_by_routine", filter)
}

// DeleteSpentOneShots deletes disabled or rung one-shot alarms older
// than the cutoff, during the periodic cleanup pass.
func (r *AlarmRepository) DeleteSpentOneShots(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"recurrence_rule": bson.M{"$in": []interface{}{"", nil}},
		"time":            bson.M{"$lt": cutoff},
	}
	return r.deleteMany(ctx, "alarm_delete_spent", filter)
}

func (r *AlarmRepository) deleteMany(ctx context.Context, op string, filter bson.M) (int64, error) {
	var deleted int64
	err := r.client.WithRetry(ctx, op, func(ctx context.Context) error {
		res, err := r.client.Collection(alarmsCollection).DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	return deleted, err
}
