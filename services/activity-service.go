package services

import (
	"context"
	"fmt"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"
	"studioflow-project/backend/realtime"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ActivityService struct {
	activityCollection *mongo.Collection
	dispatcher         *realtime.Dispatcher
}

func NewActivityService(activityCollection *mongo.Collection, dispatcher *realtime.Dispatcher) *ActivityService {
	return &ActivityService{
		activityCollection: activityCollection,
		dispatcher:         dispatcher,
	}
}

// Record appends one activity entry for a mutation on a project, stage or
// task. Activity writes never fail the mutation they describe; errors are
// logged and swallowed.
func (s *ActivityService) Record(ctx context.Context, projectID, userID string, action models.ActivityAction, entityType string) {
	entry := models.ActivityLog{
		ID:         primitive.NewObjectID(),
		ProjectID:  projectID,
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		CreatedAt:  time.Now(),
	}

	if _, err := s.activityCollection.InsertOne(ctx, entry); err != nil {
		logging.Logger.Errorf("Event ID: ACTIVITY_RECORD_FAILED, Description: Failed to record %s on %s for project %s: %v", action, entityType, projectID, err)
		return
	}

	s.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventInsert,
		Collection: "activity_logs",
		ID:         entry.ID.Hex(),
		CreatedAt:  entry.CreatedAt,
		Record:     entry,
		Fields:     map[string]string{"projectId": entry.ProjectID},
	})
}

// ByProject returns the newest activity entries for one project.
func (s *ActivityService) ByProject(ctx context.Context, projectID string, limit int64) ([]models.ActivityLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.activityCollection.Find(ctx, bson.M{"projectId": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity log: %v", err)
	}
	defer cursor.Close(ctx)

	entries := []models.ActivityLog{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode activity log: %v", err)
	}
	return entries, nil
}

// DeleteByProject removes all entries of a deleted project.
func (s *ActivityService) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := s.activityCollection.DeleteMany(ctx, bson.M{"projectId": projectID})
	return err
}
