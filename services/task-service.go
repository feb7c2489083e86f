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

type TaskService struct {
	tasksCollection    *mongo.Collection
	projectsCollection *mongo.Collection
	activity           *ActivityService
	workflow           *WorkflowService
	notifier           Notifier
	dispatcher         *realtime.Dispatcher
}

func NewTaskService(
	db *mongo.Database,
	activity *ActivityService,
	workflow *WorkflowService,
	notifier Notifier,
	dispatcher *realtime.Dispatcher,
) *TaskService {
	return &TaskService{
		tasksCollection:    db.Collection("tasks"),
		projectsCollection: db.Collection("projects"),
		activity:           activity,
		workflow:           workflow,
		notifier:           notifier,
		dispatcher:         dispatcher,
	}
}

// Create inserts a task into a project and mirrors it into the dependency
// graph. An assignee set at creation is notified.
func (s *TaskService) Create(ctx context.Context, principalID string, task models.Task) (*models.Task, error) {
	if task.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", utils.ErrValidation)
	}
	projectObjectID, err := primitive.ObjectIDFromHex(task.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid project id", utils.ErrValidation)
	}
	if err := s.projectsCollection.FindOne(ctx, bson.M{"_id": projectObjectID}).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify project: %v", err)
	}

	if task.Status == "" {
		task.Status = models.TaskTodo
	}
	if !models.ValidTaskStatus(task.Status) {
		return nil, fmt.Errorf("%w: unknown task status %q", utils.ErrValidation, task.Status)
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if !models.ValidTaskPriority(task.Priority) {
		return nil, fmt.Errorf("%w: unknown task priority %q", utils.ErrValidation, task.Priority)
	}

	task.ID = primitive.NewObjectID()
	task.CreatedBy = principalID
	task.CreatedAt = time.Now()

	if _, err := s.tasksCollection.InsertOne(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %v", err)
	}

	if err := s.workflow.EnsureTaskNode(ctx, models.TaskNode{
		ID:        task.ID.Hex(),
		ProjectID: task.ProjectID,
		Title:     task.Title,
		Status:    string(task.Status),
	}); err != nil {
		logging.Logger.Errorf("Event ID: TASK_GRAPH_SYNC_FAILED, Description: Failed to mirror task %s into the graph: %v", task.ID.Hex(), err)
	}

	s.activity.Record(ctx, task.ProjectID, principalID, models.ActivityInsert, "tasks")
	s.publish(models.EventInsert, task)
	if task.AssignedTo != "" {
		s.notifyAssignment(ctx, task)
	}
	return &task, nil
}

// ByProject returns the tasks of one project, newest first.
func (s *TaskService) ByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := utils.RetryRead(ctx, 3, func() error {
		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := s.tasksCollection.Find(ctx, bson.M{"projectId": projectID}, opts)
		if err != nil {
			return fmt.Errorf("failed to retrieve tasks: %v", err)
		}
		defer cursor.Close(ctx)

		tasks = []models.Task{}
		if err := cursor.All(ctx, &tasks); err != nil {
			return fmt.Errorf("failed to decode tasks: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns one task by id.
func (s *TaskService) Get(ctx context.Context, taskID string) (*models.Task, error) {
	objectID, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid task id", utils.ErrValidation)
	}

	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&task); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve task: %v", err)
	}
	return &task, nil
}

// Update overwrites the mutable fields of a task. A changed assignee is
// notified; a changed status goes through the same dependency gate as
// ChangeStatus.
func (s *TaskService) Update(ctx context.Context, principalID, taskID string, update models.Task) (*models.Task, error) {
	current, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if update.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", utils.ErrValidation)
	}
	if !models.ValidTaskStatus(update.Status) {
		return nil, fmt.Errorf("%w: unknown task status %q", utils.ErrValidation, update.Status)
	}
	if !models.ValidTaskPriority(update.Priority) {
		return nil, fmt.Errorf("%w: unknown task priority %q", utils.ErrValidation, update.Priority)
	}
	if update.Status != current.Status {
		if err := s.checkDependencyGate(ctx, taskID, update.Status); err != nil {
			return nil, err
		}
	}

	set := bson.M{
		"title":       update.Title,
		"description": update.Description,
		"status":      update.Status,
		"priority":    update.Priority,
		"assignedTo":  update.AssignedTo,
		"dueDate":     update.DueDate,
	}
	result, err := s.tasksCollection.UpdateOne(ctx, bson.M{"_id": current.ID}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %v", err)
	}
	if result.MatchedCount == 0 {
		return nil, utils.ErrNotFound
	}

	var task models.Task
	if err := s.tasksCollection.FindOne(ctx, bson.M{"_id": current.ID}).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to retrieve updated task: %v", err)
	}

	s.activity.Record(ctx, task.ProjectID, principalID, models.ActivityUpdate, "tasks")
	s.publish(models.EventUpdate, task)
	if task.AssignedTo != "" && task.AssignedTo != current.AssignedTo {
		s.notifyAssignment(ctx, task)
	}
	if update.Status != current.Status {
		s.afterStatusChange(ctx, task)
	}
	return &task, nil
}

// ChangeStatus moves a task through todo, in_progress and completed. Starting
// a task is refused while a dependency is unfinished; completing one unblocks
// its dependents and notifies the task creator.
func (s *TaskService) ChangeStatus(ctx context.Context, principalID, taskID string, status models.TaskStatus) (*models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: unknown task status %q", utils.ErrValidation, status)
	}
	current, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if err := s.checkDependencyGate(ctx, taskID, status); err != nil {
		return nil, err
	}

	result, err := s.tasksCollection.UpdateOne(ctx, bson.M{"_id": current.ID}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %v", err)
	}
	if result.MatchedCount == 0 {
		return nil, utils.ErrNotFound
	}

	task := *current
	task.Status = status

	s.activity.Record(ctx, task.ProjectID, principalID, models.ActivityUpdate, "tasks")
	s.publish(models.EventUpdate, task)
	s.afterStatusChange(ctx, task)
	return &task, nil
}

// Delete removes a task and its graph node.
func (s *TaskService) Delete(ctx context.Context, principalID, taskID string) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}

	if _, err := s.tasksCollection.DeleteOne(ctx, bson.M{"_id": task.ID}); err != nil {
		return fmt.Errorf("failed to delete task: %v", err)
	}

	if err := s.workflow.RemoveTaskNode(ctx, taskID); err != nil {
		logging.Logger.Errorf("Event ID: TASK_GRAPH_SYNC_FAILED, Description: Failed to remove task %s from the graph: %v", taskID, err)
	}

	s.activity.Record(ctx, task.ProjectID, principalID, models.ActivityDelete, "tasks")
	s.dispatcher.Publish(models.ChangeEvent{
		Type:       models.EventDelete,
		Collection: "tasks",
		ID:         taskID,
		Fields:     map[string]string{"projectId": task.ProjectID, "assignedTo": task.AssignedTo},
	})
	return nil
}

// checkDependencyGate refuses leaving todo while a dependency of the task is
// still unfinished.
func (s *TaskService) checkDependencyGate(ctx context.Context, taskID string, status models.TaskStatus) error {
	if status == models.TaskTodo {
		return nil
	}
	blocked, err := s.workflow.IsBlocked(ctx, taskID)
	if err != nil {
		logging.Logger.Errorf("Event ID: TASK_GRAPH_SYNC_FAILED, Description: Failed to read blocked flag of task %s: %v", taskID, err)
		return fmt.Errorf("failed to check task dependencies: %v", err)
	}
	if blocked {
		return fmt.Errorf("%w: cannot start task due to unfinished dependency", utils.ErrValidation)
	}
	return nil
}

func (s *TaskService) afterStatusChange(ctx context.Context, task models.Task) {
	if err := s.workflow.UpdateStatusAndUnblockDependents(ctx, task.ID.Hex(), task.Status); err != nil {
		logging.Logger.Errorf("Event ID: TASK_GRAPH_SYNC_FAILED, Description: Failed to propagate status of task %s: %v", task.ID.Hex(), err)
	}
	if task.Status == models.TaskCompleted && task.CreatedBy != "" {
		s.notify(ctx, models.Notification{
			UserID:  task.CreatedBy,
			Title:   "Task completed",
			Message: fmt.Sprintf("The task %q was completed.", task.Title),
			Type:    models.NotificationSuccess,
			Link:    "/projects/" + task.ProjectID,
		})
	}
}

func (s *TaskService) notifyAssignment(ctx context.Context, task models.Task) {
	s.notify(ctx, models.Notification{
		UserID:  task.AssignedTo,
		Title:   "New task assignment",
		Message: fmt.Sprintf("You were assigned the task %q.", task.Title),
		Type:    models.NotificationInfo,
		Link:    "/projects/" + task.ProjectID,
	})
}

// notify fans out through the circuit-broken notifier; delivery failures
// never fail the task mutation.
func (s *TaskService) notify(ctx context.Context, n models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		logging.Logger.Warnf("Event ID: NOTIFICATION_FANOUT_FAILED, Description: Notification for recipient %s dropped: %v", n.UserID, err)
	}
}

func (s *TaskService) publish(eventType models.EventType, task models.Task) {
	s.dispatcher.Publish(models.ChangeEvent{
		Type:       eventType,
		Collection: "tasks",
		ID:         task.ID.Hex(),
		CreatedAt:  task.CreatedAt,
		Record:     task,
		Fields:     map[string]string{"projectId": task.ProjectID, "assignedTo": task.AssignedTo},
	})
}
