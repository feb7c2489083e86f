package services

import (
	"context"
	"fmt"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// WorkflowService keeps the task dependency graph in Neo4j. A task depends
// on another when it cannot start before the other is completed; the blocked
// flag on each node caches whether any dependency is still unfinished.
type WorkflowService struct {
	Driver neo4j.DriverWithContext
}

func NewWorkflowService(driver neo4j.DriverWithContext) *WorkflowService {
	return &WorkflowService{Driver: driver}
}

// EnsureTaskNode mirrors a task into the graph. Existing nodes are left
// untouched except for the status, which follows the store.
func (s *WorkflowService) EnsureTaskNode(ctx context.Context, task models.TaskNode) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (t:Task {id: $id})
			ON CREATE SET
				t.projectId = $projectId,
				t.title = $title,
				t.blocked = $blocked
			SET t.status = $status
		`
		params := map[string]any{
			"id":        task.ID,
			"projectId": task.ProjectID,
			"title":     task.Title,
			"status":    task.Status,
			"blocked":   task.Blocked,
		}
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})

	return err
}

// AddDependency records that rel.ToTaskID cannot start before rel.FromTaskID
// is completed. The relation is rejected when either task is missing from
// the graph, when it already exists, or when it would close a cycle.
func (s *WorkflowService) AddDependency(ctx context.Context, rel models.TaskDependencyRelation) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	exist, err := s.TasksExist(ctx, rel.FromTaskID, rel.ToTaskID)
	if err != nil {
		return fmt.Errorf("failed to check task existence: %v", err)
	}
	if !exist {
		return fmt.Errorf("one or both tasks do not exist")
	}

	exists, err := s.DependencyExists(ctx, rel.FromTaskID, rel.ToTaskID)
	if err != nil {
		return fmt.Errorf("failed to check if dependency exists: %v", err)
	}
	if exists {
		return fmt.Errorf("dependency already exists")
	}

	hasCycle, err := s.CreatesCycle(ctx, rel.FromTaskID, rel.ToTaskID)
	if err != nil {
		return fmt.Errorf("failed to check cycle: %v", err)
	}
	if hasCycle {
		return fmt.Errorf("cannot add dependency: cycle detected")
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (from:Task {id: $fromId}), (to:Task {id: $toId})
			MERGE (to)-[:DEPENDS_ON]->(from)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"fromId": rel.FromTaskID,
			"toId":   rel.ToTaskID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to create dependency relation: %v", err)
	}

	if err := s.UpdateBlockedStatus(ctx, rel.ToTaskID); err != nil {
		return err
	}

	logging.Logger.Infof("Event ID: DEPENDENCY_ADDED, Description: Dependency added: %s depends on %s", rel.ToTaskID, rel.FromTaskID)
	return nil
}

// RemoveDependency drops the relation and recomputes the blocked flag of the
// dependent task.
func (s *WorkflowService) RemoveDependency(ctx context.Context, rel models.TaskDependencyRelation) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (to:Task {id: $toId})-[r:DEPENDS_ON]->(from:Task {id: $fromId})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"fromId": rel.FromTaskID,
			"toId":   rel.ToTaskID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to remove dependency relation: %v", err)
	}

	return s.UpdateBlockedStatus(ctx, rel.ToTaskID)
}

// CreatesCycle reports whether adding to -> from would close a dependency
// cycle. A self-dependency is a cycle by definition.
func (s *WorkflowService) CreatesCycle(ctx context.Context, fromID, toID string) (bool, error) {
	if fromID == toID {
		return true, nil
	}
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (from:Task {id: $fromId}), (to:Task {id: $toId})
			RETURN EXISTS((from)-[:DEPENDS_ON*1..]->(to)) AS hasCycle
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"fromId": fromID,
			"toId":   toID,
		})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			val, ok := res.Record().Values[0].(bool)
			if !ok {
				return false, fmt.Errorf("unexpected result type")
			}
			return val, nil
		}
		return false, nil
	})
	if err != nil {
		return false, fmt.Errorf("cycle detection failed: %v", err)
	}

	return result.(bool), nil
}

func (s *WorkflowService) TasksExist(ctx context.Context, id1, id2 string) (bool, error) {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (a:Task {id: $id1})
			OPTIONAL MATCH (b:Task {id: $id2})
			RETURN a IS NOT NULL AND b IS NOT NULL AS bothExist
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"id1": id1,
			"id2": id2,
		})
		if err != nil {
			return false, err
		}
		if res.Next(ctx) {
			return res.Record().Values[0].(bool), nil
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}

	return result.(bool), nil
}

func (s *WorkflowService) DependencyExists(ctx context.Context, fromID, toID string) (bool, error) {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (to:Task {id: $toId})-[r:DEPENDS_ON]->(from:Task {id: $fromId})
			RETURN COUNT(r) > 0 AS exists
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"fromId": fromID,
			"toId":   toID,
		})
		if err != nil {
			return false, err
		}
		if res.Next(ctx) {
			return res.Record().Values[0].(bool), nil
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// GetDependencies returns the tasks this task depends on.
func (s *WorkflowService) GetDependencies(ctx context.Context, taskID string) ([]models.TaskNode, error) {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (to:Task {id: $taskId})-[:DEPENDS_ON]->(from:Task)
			RETURN from.id AS id, from.projectId AS projectId, from.title AS title,
			       from.status AS status, from.blocked AS blocked
		`
		res, err := tx.Run(ctx, query, map[string]any{"taskId": taskID})
		if err != nil {
			return nil, err
		}

		dependencies := []models.TaskNode{}
		for res.Next(ctx) {
			record := res.Record()

			id, _ := record.Get("id")
			projectID, _ := record.Get("projectId")
			title, _ := record.Get("title")
			status, _ := record.Get("status")
			blocked, _ := record.Get("blocked")

			node := models.TaskNode{
				ID:        id.(string),
				ProjectID: projectID.(string),
				Title:     title.(string),
				Status:    status.(string),
				Blocked:   blocked.(bool),
			}
			dependencies = append(dependencies, node)
		}

		return dependencies, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]models.TaskNode), nil
}

// UpdateBlockedStatus recomputes the blocked flag of one task from the
// current status of its dependencies. A task is blocked while any dependency
// is not yet completed.
func (s *WorkflowService) UpdateBlockedStatus(ctx context.Context, taskID string) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	dependencies, err := s.GetDependencies(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to fetch dependencies: %v", err)
	}

	isBlocked := false
	for _, dep := range dependencies {
		if dep.Status != string(models.TaskCompleted) {
			isBlocked = true
			break
		}
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (t:Task {id: $taskId})
			SET t.blocked = $isBlocked
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"taskId":    taskID,
			"isBlocked": isBlocked,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to update blocked status: %v", err)
	}

	return nil
}

// IsBlocked reads the cached blocked flag for a task. Tasks missing from the
// graph are never blocked.
func (s *WorkflowService) IsBlocked(ctx context.Context, taskID string) (bool, error) {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (t:Task {id: $taskId})
			RETURN t IS NOT NULL AND t.blocked AS blocked
		`
		res, err := tx.Run(ctx, query, map[string]any{"taskId": taskID})
		if err != nil {
			return false, err
		}
		if res.Next(ctx) {
			val, ok := res.Record().Values[0].(bool)
			return ok && val, nil
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// UpdateStatusAndUnblockDependents propagates a status change into the graph
// and recomputes the blocked flag of every task depending on this one.
func (s *WorkflowService) UpdateStatusAndUnblockDependents(ctx context.Context, taskID string, status models.TaskStatus) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (t:Task {id: $taskId})
			SET t.status = $status
			WITH t
			OPTIONAL MATCH (dependent:Task)-[:DEPENDS_ON]->(t)
			RETURN collect(dependent.id) AS dependents
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"taskId": taskID,
			"status": string(status),
		})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			raw, _ := res.Record().Get("dependents")
			values, _ := raw.([]any)
			dependents := []string{}
			for _, v := range values {
				if id, ok := v.(string); ok {
					dependents = append(dependents, id)
				}
			}
			return dependents, nil
		}
		return []string{}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to propagate task status: %v", err)
	}

	for _, dependentID := range result.([]string) {
		if err := s.UpdateBlockedStatus(ctx, dependentID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTaskNode deletes a task node together with its dependency relations,
// then recomputes the blocked flag of former dependents.
func (s *WorkflowService) RemoveTaskNode(ctx context.Context, taskID string) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (t:Task {id: $taskId})
			OPTIONAL MATCH (dependent:Task)-[:DEPENDS_ON]->(t)
			WITH t, collect(dependent.id) AS dependents
			DETACH DELETE t
			RETURN dependents
		`
		res, err := tx.Run(ctx, query, map[string]any{"taskId": taskID})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			raw, _ := res.Record().Get("dependents")
			values, _ := raw.([]any)
			dependents := []string{}
			for _, v := range values {
				if id, ok := v.(string); ok {
					dependents = append(dependents, id)
				}
			}
			return dependents, nil
		}
		return []string{}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove task node: %v", err)
	}

	for _, dependentID := range result.([]string) {
		if err := s.UpdateBlockedStatus(ctx, dependentID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveProjectNodes deletes every task node of a project. Used by project
// cascade delete; no blocked recomputation is needed because dependents are
// confined to the same project.
func (s *WorkflowService) RemoveProjectNodes(ctx context.Context, projectID string) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (t:Task {projectId: $projectId})
			DETACH DELETE t
		`
		_, err := tx.Run(ctx, query, map[string]any{"projectId": projectID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to remove project task nodes: %v", err)
	}
	return nil
}
