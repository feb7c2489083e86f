package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/models"
	"studioflow-project/backend/services"
	"studioflow-project/backend/utils"
)

// FunctionsHandler exposes the function-style endpoints: privileged
// operations that re-validate authorization server-side on every call
// instead of trusting any client-side gate.
type FunctionsHandler struct {
	users *services.UserService
	tasks *services.TaskService
	roles *auth.RoleStore
}

func NewFunctionsHandler(users *services.UserService, tasks *services.TaskService, roles *auth.RoleStore) *FunctionsHandler {
	return &FunctionsHandler{users: users, tasks: tasks, roles: roles}
}

// ListUsers returns the merged profile+role view. Admin only.
func (h *FunctionsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceUsers, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

type taskOperationRequest struct {
	Operation string       `json:"operation"`
	TaskID    string       `json:"taskId,omitempty"`
	Task      *models.Task `json:"task,omitempty"`
}

// TaskOperations is the CREATE/UPDATE/DELETE envelope endpoint for tasks.
// Authorization is checked here per operation, the same way the individual
// task routes check it.
func (h *FunctionsHandler) TaskOperations(w http.ResponseWriter, r *http.Request) {
	var req taskOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	switch strings.ToUpper(req.Operation) {
	case "CREATE":
		principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceTasks, "")
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		if req.Task == nil {
			utils.WriteError(w, fmt.Errorf("%w: task payload is required", utils.ErrValidation))
			return
		}
		task, err := h.tasks.Create(r.Context(), principal.ID, *req.Task)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusCreated, map[string]any{"task": task})

	case "UPDATE":
		principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceTasks, "")
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		if req.TaskID == "" || req.Task == nil {
			utils.WriteError(w, fmt.Errorf("%w: taskId and task payload are required", utils.ErrValidation))
			return
		}
		task, err := h.tasks.Update(r.Context(), principal.ID, req.TaskID, *req.Task)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]any{"task": task})

	case "DELETE":
		principal, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceTasks, "")
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		if req.TaskID == "" {
			utils.WriteError(w, fmt.Errorf("%w: taskId is required", utils.ErrValidation))
			return
		}
		if err := h.tasks.Delete(r.Context(), principal.ID, req.TaskID); err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})

	default:
		utils.WriteError(w, fmt.Errorf("%w: unknown operation %q", utils.ErrValidation, req.Operation))
	}
}
