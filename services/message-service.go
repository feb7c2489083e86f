package services

import (
	"context"
	"fmt"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"
	"studioflow-project/backend/realtime"
	"studioflow-project/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageService manages the append-only discussion thread of a project.
// Messages are never edited or deleted individually; project cascade delete
// removes them wholesale.
type MessageService struct {
	messagesCollection *mongo.Collection
	projectsCollection *mongo.Collection
	notifier           Notifier
	dispatcher         *realtime.Dispatcher
}

func NewMessageService(db *mongo.Database, notifier Notifier, dispatcher *realtime.Dispatcher) *MessageService {
	return &MessageService{
		messagesCollection: db.Collection("messages"),
		projectsCollection: db.Collection("projects"),
		notifier:           notifier,
		dispatcher:         dispatcher,
	}
}

// Post appends one message to the project thread. The project owner is
// notified unless they posted the message themselves.
func (s *MessageService) Post(ctx context.Context, principal models.Principal, projectID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", utils.ErrValidation)
	}
	projectObjectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project id", utils.ErrValidation)
	}

	var project models.Project
	if err := s.projectsCollection.FindOne(ctx, bson.M{"_id": projectObjectID}).Decode(&project); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify project: %v", err)
	}

	message := models.Message{
		ID:        primitive.NewObjectID(),
		ProjectID: projectID,
		UserID:    principal.ID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if _, err := s.messagesCollection.InsertOne(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to post message: %v", err)
	}

	s.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventInsert,
		Collection: "messages",
		ID:         message.ID.Hex(),
		CreatedAt:  message.CreatedAt,
		Record:     message,
		Fields:     map[string]string{"projectId": projectID},
	})

	if project.CreatedBy != "" && project.CreatedBy != principal.ID {
		n := models.Notification{
			UserID:  project.CreatedBy,
			Title:   "New message in " + project.Name,
			Message: fmt.Sprintf("%s posted a message in %s.", principal.FullName, project.Name),
			Type:    models.NotificationInfo,
			Link:    "/projects/" + projectID,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			logging.Logger.Warnf("Event ID: NOTIFICATION_FANOUT_FAILED, Description: Notification for recipient %s dropped: %v", n.UserID, err)
		}
	}
	return &message, nil
}

// ByProject returns the thread of one project, newest first.
func (s *MessageService) ByProject(ctx context.Context, projectID string) ([]models.Message, error) {
	var messages []models.Message
	err := utils.RetryRead(ctx, 3, func() error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := s.messagesCollection.Find(ctx, bson.M{"projectId": projectID}, opts)
		if err != nil {
			return fmt.Errorf("failed to retrieve messages: %v", err)
		}
		defer cursor.Close(ctx)

		messages = []models.Message{}
		if err := cursor.All(ctx, &messages); err != nil {
			return fmt.Errorf("failed to decode messages: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
