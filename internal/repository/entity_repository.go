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
	tasksCollection      = "tasks"
	goalsCollection      = "goals"
	milestonesCollection = "milestones"
)

// EntityRepository reads the owning domain entities (tasks, goals,
// milestones). The fire handler uses it to re-check owner state at
// execution time, which is the authoritative cancellation guard.
type EntityRepository struct {
	client *mongodb.MongoClient
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(client *mongodb.MongoClient) *EntityRepository {
	return &EntityRepository{client: client}
}

// FindTask finds a live (not soft-deleted) task
func (r *EntityRepository) FindTask(ctx context.Context, id string) (*domain.Task, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid task id "+id, err)
	}

	var task domain.Task
	err = r.client.WithRetry(ctx, "task_find", func(ctx context.Context) error {
		filter := bson.M{"_id": objectID, "deleted_at": nil}
		return r.client.Collection(tasksCollection).FindOne(ctx, filter).Decode(&task)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("task not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindGoal finds a live goal
func (r *EntityRepository) FindGoal(ctx context.Context, id string) (*domain.Goal, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid goal id "+id, err)
	}

	var goal domain.Goal
	err = r.client.WithRetry(ctx, "goal_find", func(ctx context.Context) error {
		filter := bson.M{"_id": objectID, "deleted_at": nil}
		return r.client.Collection(goalsCollection).FindOne(ctx, filter).Decode(&goal)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("goal not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// FindMilestone finds a live milestone
func (r *EntityRepository) FindMilestone(ctx context.Context, id string) (*domain.Milestone, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid milestone id "+id, err)
	}

	var milestone domain.Milestone
	err = r.client.WithRetry(ctx, "milestone_find", func(ctx context.Context) error {
		filter := bson.M{"_id": objectID, "deleted_at": nil}
		return r.client.Collection(milestonesCollection).FindOne(ctx, filter).Decode(&milestone)
	})
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.NewNotFoundError("milestone not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}
