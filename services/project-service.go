package services

import (
	"context"
	"fmt"
	"time"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"
	"studioflow-project/backend/realtime"
	"studioflow-project/backend/storage"
	"studioflow-project/backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProjectService struct {
	projectsCollection *mongo.Collection
	stagesCollection   *mongo.Collection
	tasksCollection    *mongo.Collection
	messagesCollection *mongo.Collection
	filesCollection    *mongo.Collection
	activity           *ActivityService
	workflow           *WorkflowService
	blobs              *storage.BlobStore
	dispatcher         *realtime.Dispatcher
}

func NewProjectService(
	db *mongo.Database,
	activity *ActivityService,
	workflow *WorkflowService,
	blobs *storage.BlobStore,
	dispatcher *realtime.Dispatcher,
) *ProjectService {
	return &ProjectService{
		projectsCollection: db.Collection("projects"),
		stagesCollection:   db.Collection("project_stages"),
		tasksCollection:    db.Collection("tasks"),
		messagesCollection: db.Collection("messages"),
		filesCollection:    db.Collection("files"),
		activity:           activity,
		workflow:           workflow,
		blobs:              blobs,
		dispatcher:         dispatcher,
	}
}

// Create inserts a new project owned by the creating principal.
func (s *ProjectService) Create(ctx context.Context, principalID string, project models.Project) (*models.Project, error) {
	if project.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", utils.ErrValidation)
	}
	if project.Status == "" {
		project.Status = models.ProjectPlanning
	}
	if !models.ValidProjectStatus(project.Status) {
		return nil, fmt.Errorf("%w: unknown project status %q", utils.ErrValidation, project.Status)
	}

	project.ID = primitive.NewObjectID()
	project.CreatedBy = principalID
	project.CreatedAt = time.Now()

	if _, err := s.projectsCollection.InsertOne(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %v", err)
	}

	s.activity.Record(ctx, project.ID.Hex(), principalID, models.ActivityInsert, "projects")
	s.publishProject(models.EventInsert, project)
	return &project, nil
}

// List returns every project, newest first.
func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := utils.RetryRead(ctx, 3, func() error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := s.projectsCollection.Find(ctx, bson.M{}, opts)
		if err != nil {
			return fmt.Errorf("failed to retrieve projects: %v", err)
		}
		defer cursor.Close(ctx)

		projects = []models.Project{}
		if err := cursor.All(ctx, &projects); err != nil {
			return fmt.Errorf("failed to decode projects: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// Get returns one project by id.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	objectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project id", utils.ErrValidation)
	}

	var project models.Project
	if err := s.projectsCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&project); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve project: %v", err)
	}
	return &project, nil
}

// Update overwrites the mutable fields of a project. Concurrent writers
// resolve last-write-wins at the store.
func (s *ProjectService) Update(ctx context.Context, principalID, projectID string, update models.Project) (*models.Project, error) {
	objectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project id", utils.ErrValidation)
	}
	if update.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", utils.ErrValidation)
	}
	if !models.ValidProjectStatus(update.Status) {
		return nil, fmt.Errorf("%w: unknown project status %q", utils.ErrValidation, update.Status)
	}

	set := bson.M{
		"name":        update.Name,
		"clientName":  update.ClientName,
		"status":      update.Status,
		"description": update.Description,
		"startDate":   update.StartDate,
		"dueDate":     update.DueDate,
	}
	result, err := s.projectsCollection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %v", err)
	}
	if result.MatchedCount == 0 {
		return nil, utils.ErrNotFound
	}

	var project models.Project
	if err := s.projectsCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to retrieve updated project: %v", err)
	}

	s.activity.Record(ctx, projectID, principalID, models.ActivityUpdate, "projects")
	s.publishProject(models.EventUpdate, project)
	return &project, nil
}

// Delete removes a project and cascades over its stages, tasks, messages,
// files, activity entries and graph nodes. Partial failures after the
// project document is gone are logged and skipped so the delete converges.
func (s *ProjectService) Delete(ctx context.Context, principalID, projectID string) error {
	objectID, err := primitive.ObjectIDFromHex(projectID)
	if err != nil {
		return fmt.Errorf("%w: invalid project id", utils.ErrValidation)
	}

	result, err := s.projectsCollection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete project: %v", err)
	}
	if result.DeletedCount == 0 {
		return utils.ErrNotFound
	}

	filter := bson.M{"projectId": projectID}
	if _, err := s.stagesCollection.DeleteMany(ctx, filter); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to delete stages of project %s: %v", projectID, err)
	}
	if _, err := s.tasksCollection.DeleteMany(ctx, filter); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to delete tasks of project %s: %v", projectID, err)
	}
	if _, err := s.messagesCollection.DeleteMany(ctx, filter); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to delete messages of project %s: %v", projectID, err)
	}
	s.deleteProjectFiles(ctx, projectID)
	if err := s.activity.DeleteByProject(ctx, projectID); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to delete activity log of project %s: %v", projectID, err)
	}
	if err := s.workflow.RemoveProjectNodes(ctx, projectID); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to delete graph nodes of project %s: %v", projectID, err)
	}

	s.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventDelete,
		Collection: "projects",
		ID:         projectID,
		Fields:     map[string]string{"projectId": projectID},
	})
	logging.Logger.Infof("Event ID: PROJECT_DELETED, Description: Project %s deleted by %s with all dependent records.", projectID, principalID)
	return nil
}

func (s *ProjectService) deleteProjectFiles(ctx context.Context, projectID string) {
	cursor, err := s.filesCollection.Find(ctx, bson.M{"projectId": projectID})
	if err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to list files of project %s: %v", projectID, err)
		return
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err := cursor.All(ctx, &files); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to decode files of project %s: %v", projectID, err)
		return
	}
	for _, f := range files {
		if !f.IsLink {
			if err := s.blobs.Remove(f.StoragePath); err != nil {
				logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to remove blob %s of project %s: %v", f.StoragePath, projectID, err)
			}
		}
	}
	if _, err := s.filesCollection.DeleteMany(ctx, bson.M{"projectId": projectID}); err != nil {
		logging.Logger.Errorf("Event ID: PROJECT_CASCADE_FAILED, Description: Failed to delete file records of project %s: %v", projectID, err)
	}
}

// StatusCounts aggregates the number of projects per status for the
// dashboard summary.
func (s *ProjectService) StatusCounts(ctx context.Context) (map[models.ProjectStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.projectsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate project statuses: %v", err)
	}
	defer cursor.Close(ctx)

	counts := map[models.ProjectStatus]int{}
	for cursor.Next(ctx) {
		var row struct {
			Status models.ProjectStatus `bson:"_id"`
			Count  int                  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode status count: %v", err)
		}
		counts[row.Status] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %v", err)
	}
	return counts, nil
}

// CreateStage appends one pipeline stage to a project. Order defaults to the
// end of the pipeline.
func (s *ProjectService) CreateStage(ctx context.Context, principalID string, stage models.ProjectStage) (*models.ProjectStage, error) {
	if stage.Name == "" {
		return nil, fmt.Errorf("%w: stage name is required", utils.ErrValidation)
	}
	if _, err := s.Get(ctx, stage.ProjectID); err != nil {
		return nil, err
	}

	if stage.OrderIndex == 0 {
		count, err := s.stagesCollection.CountDocuments(ctx, bson.M{"projectId": stage.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("failed to count stages: %v", err)
		}
		stage.OrderIndex = int(count) + 1
	}

	stage.ID = primitive.NewObjectID()
	stage.CreatedAt = time.Now()

	if _, err := s.stagesCollection.InsertOne(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to create stage: %v", err)
	}

	s.activity.Record(ctx, stage.ProjectID, principalID, models.ActivityInsert, "project_stages")
	s.publishStage(models.EventInsert, stage)
	return &stage, nil
}

// Stages returns the pipeline of one project in stage order.
func (s *ProjectService) Stages(ctx context.Context, projectID string) ([]models.ProjectStage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}})
	cursor, err := s.stagesCollection.Find(ctx, bson.M{"projectId": projectID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve stages: %v", err)
	}
	defer cursor.Close(ctx)

	stages := []models.ProjectStage{}
	if err := cursor.All(ctx, &stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages: %v", err)
	}
	return stages, nil
}

// UpdateStage overwrites the name, status and position of one stage.
func (s *ProjectService) UpdateStage(ctx context.Context, principalID, stageID string, update models.ProjectStage) (*models.ProjectStage, error) {
	objectID, err := primitive.ObjectIDFromHex(stageID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid stage id", utils.ErrValidation)
	}
	if update.Name == "" {
		return nil, fmt.Errorf("%w: stage name is required", utils.ErrValidation)
	}

	set := bson.M{
		"name":       update.Name,
		"status":     update.Status,
		"orderIndex": update.OrderIndex,
	}
	result, err := s.stagesCollection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("failed to update stage: %v", err)
	}
	if result.MatchedCount == 0 {
		return nil, utils.ErrNotFound
	}

	var stage models.ProjectStage
	if err := s.stagesCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&stage); err != nil {
		return nil, fmt.Errorf("failed to retrieve updated stage: %v", err)
	}

	s.activity.Record(ctx, stage.ProjectID, principalID, models.ActivityUpdate, "project_stages")
	s.publishStage(models.EventUpdate, stage)
	return &stage, nil
}

// DeleteStage removes one stage from the pipeline.
func (s *ProjectService) DeleteStage(ctx context.Context, principalID, stageID string) error {
	objectID, err := primitive.ObjectIDFromHex(stageID)
	if err != nil {
		return fmt.Errorf("%w: invalid stage id", utils.ErrValidation)
	}

	var stage models.ProjectStage
	if err := s.stagesCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&stage); err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.ErrNotFound
		}
		return fmt.Errorf("failed to retrieve stage: %v", err)
	}

	if _, err := s.stagesCollection.DeleteOne(ctx, bson.M{"_id": objectID}); err != nil {
		return fmt.Errorf("failed to delete stage: %v", err)
	}

	s.activity.Record(ctx, stage.ProjectID, principalID, models.ActivityDelete, "project_stages")
	s.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventDelete,
		Collection: "project_stages",
		ID:         stageID,
		Fields:     map[string]string{"projectId": stage.ProjectID},
	})
	return nil
}

func (s *ProjectService) publishProject(eventType models.EventType, project models.Project) {
	s.dispatcher.Publish(models.ChangeEvent{
		Type:       eventType,
		Collection: "projects",
		ID:         project.ID.Hex(),
		CreatedAt:  project.CreatedAt,
		Record:     project,
		Fields:     map[string]string{"projectId": project.ID.Hex()},
	})
}

func (s *ProjectService) publishStage(eventType models.EventType, stage models.ProjectStage) {
	s.dispatcher.Publish(models.ChangeEvent{
		Type:       eventType,
		Collection: "project_stages",
		ID:         stage.ID.Hex(),
		CreatedAt:  stage.CreatedAt,
		Record:     stage,
		Fields:     map[string]string{"projectId": stage.ProjectID},
	})
}
