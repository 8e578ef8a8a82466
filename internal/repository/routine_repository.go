package repository

import (
	"context"

	"github.com/vhvplatform/go-reminder-engine/internal/domain"
	apperrors "github.com/vhvplatform/go-reminder-engine/internal/shared/errors"
	"github.com/vhvplatform/go-reminder-engine/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	routinesCollection     = "routines"
	routineTasksCollection = "routine_tasks"
)

// RoutineRepository reads routines and routine tasks. The engine never
// writes these; their CRUD lives with the owning service.
type RoutineRepository struct {
	client *mongodb.MongoClient
}

// NewRoutineRepository creates a new routine repository
func NewRoutineRepository(client *mongodb.MongoClient) *RoutineRepository {
	return &RoutineRepository{client: client}
}

// FindByID finds a routine by ID
func (r *RoutineRepository) FindByID(ctx context.Context, id string) (*domain.Routine, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid routine id "+id, err)
	}

	var routine domain.Routine
	err = r.client.WithRetry(ctx, "routine_find", func(ctx context.Context) error {
		return r.client.Collection(routinesCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&routine)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("routine not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &routine, nil
}

// FindTaskByID finds a routine task by ID
func (r *RoutineRepository) FindTaskByID(ctx context.Context, id string) (*domain.RoutineTask, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid routine task id "+id, err)
	}

	var task domain.RoutineTask
	err = r.client.WithRetry(ctx, "routine_task_find", func(ctx context.Context) error {
		return r.client.Collection(routineTasksCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&task)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("routine task not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindTasks lists the enabled tasks of one routine
func (r *RoutineRepository) FindTasks(ctx context.Context, routineID string) ([]*domain.RoutineTask, error) {
	var tasks []*domain.RoutineTask
	err := r.client.WithRetry(ctx, "routine_tasks_find", func(ctx context.Context) error {
		filter := bson.M{"routine_id": routineID, "enabled": true}
		cursor, err := r.client.Collection(routineTasksCollection).Find(ctx, filter)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		tasks = tasks[:0]
		return cursor.All(ctx, &tasks)
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
