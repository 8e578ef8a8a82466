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

const remindersCollection = "reminders"

// ReminderRepository handles reminder data operations
type ReminderRepository struct {
	client *mongodb.MongoClient
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(client *mongodb.MongoClient) *ReminderRepository {
	return &ReminderRepository{client: client}
}

// Create creates a new reminder after validating its schedule payload
func (r *ReminderRepository) Create(ctx context.Context, reminder *domain.Reminder) error {
	if err := reminder.Schedule.Validate(); err != nil {
		return err
	}

	reminder.ID = primitive.NewObjectID()
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = reminder.CreatedAt

	return r.client.WithRetry(ctx, "reminder_create", func(ctx context.Context) error {
		_, err := r.client.Collection(remindersCollection).InsertOne(ctx, reminder)
		return err
	})
}

// FindByID finds a reminder by ID
func (r *ReminderRepository) FindByID(ctx context.Context, id string) (*domain.Reminder, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid reminder id "+id, err)
	}

	var reminder domain.Reminder
	err = r.client.WithRetry(ctx, "reminder_find", func(ctx context.Context) error {
		return r.client.Collection(remindersCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&reminder)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("reminder not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// FindByTarget finds all reminders owned by one (user, target) pair
func (r *ReminderRepository) FindByTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) ([]*domain.Reminder, error) {
	filter := bson.M{
		"user_id":     userID,
		"target_type": target,
		"target_id":   targetID,
	}
	return r.find(ctx, "reminder_find_by_target", filter)
}

// FindByRoutine finds all reminders linked to a routine via the schedule payload
func (r *ReminderRepository) FindByRoutine(ctx context.Context, userID, routineID string) ([]*domain.Reminder, error) {
	filter := bson.M{
		"user_id":             userID,
		"schedule.routine_id": routineID,
	}
	return r.find(ctx, "reminder_find_by_routine", filter)
}

// FindByRoutineTask finds all reminders linked to one routine task
func (r *ReminderRepository) FindByRoutineTask(ctx context.Context, userID, routineTaskID string) ([]*domain.Reminder, error) {
	filter := bson.M{
		"user_id":                  userID,
		"schedule.routine_task_id": routineTaskID,
	}
	return r.find(ctx, "reminder_find_by_routine_task", filter)
}

// FindTimeTriggered returns every TIME-triggered reminder, for the
// startup reconciliation pass.
func (r *ReminderRepository) FindTimeTriggered(ctx context.Context) ([]*domain.Reminder, error) {
	filter := bson.M{"trigger": bson.M{"$in": []domain.TriggerKind{domain.TriggerTime, domain.TriggerBoth}}}
	return r.find(ctx, "reminder_find_time_triggered", filter)
}

func (r *ReminderRepository) find(ctx context.Context, op string, filter bson.M) ([]*domain.Reminder, error) {
	var reminders []*domain.Reminder
	err := r.client.WithRetry(ctx, op, func(ctx context.Context) error {
		cursor, err := r.client.Collection(remindersCollection).Find(ctx, filter)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		reminders = reminders[:0]
		return cursor.All(ctx, &reminders)
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

// DeleteByID deletes a reminder by ID
func (r *ReminderRepository) DeleteByID(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NewValidationError("invalid reminder id "+id, err)
	}
	return r.client.WithRetry(ctx, "reminder_delete", func(ctx context.Context) error {
		_, err := r.client.Collection(remindersCollection).DeleteOne(ctx, bson.M{"_id": objectID})
		return err
	})
}

// DeleteByTarget deletes all reminders owned by one (user, target) pair
// and returns the number removed.
func (r *ReminderRepository) DeleteByTarget(ctx context.Context, userID string, target domain.TargetType, targetID string) (int64, error) {
	filter := bson.M{
		"user_id":     userID,
		"target_type": target,
		"target_id":   targetID,
	}
	return r.deleteMany(ctx, "reminder_delete_by_target", filter)
}

// DeleteByRoutine deletes all reminders linked to a routine
func (r *ReminderRepository) DeleteByRoutine(ctx context.Context, userID, routineID string) (int64, error) {
	filter := bson.M{
		"user_id":             userID,
		"schedule.routine_id": routineID,
	}
	return r.deleteMany(ctx, "reminder_delete_by_routine", filter)
}

// DeleteByRoutineTask deletes all reminders linked to one routine task
func (r *ReminderRepository) DeleteByRoutineTask(ctx context.Context, userID, routineTaskID string) (int64, error) {
	filter := bson.M{
		"user_id":                  userID,
		"schedule.routine_task_id": routineTaskID,
	}
	return r.deleteMany(ctx, "reminder_delete_by_routine_task", filter)
}

// DeleteSpentOneOffs deletes one-off reminders whose instant is before
// the cutoff. The periodic cleanup pass is the backstop for terminal
// reminders left behind by failed fires.
func (r *ReminderRepository) DeleteSpentOneOffs(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{"schedule.at": bson.M{"$ne": nil, "$lt": cutoff}}
	return r.deleteMany(ctx, "reminder_delete_spent", filter)
}

func (r *ReminderRepository) deleteMany(ctx context.Context, op string, filter bson.M) (int64, error) {
	var deleted int64
	err := r.client.WithRetry(ctx, op, func(ctx context.Context) error {
		res, err := r.client.Collection(remindersCollection).DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	return deleted, err
}
