package handlers

import (
	"encoding/json"
	"net/http"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/models"
	"studioflow-project/backend/services"
	"studioflow-project/backend/utils"

	"github.com/gorilla/mux"
)

type TaskHandler struct {
	service  *services.TaskService
	workflow *services.WorkflowService
	roles    *auth.RoleStore
}

func NewTaskHandler(service *services.TaskService, workflow *services.WorkflowService, roles *auth.RoleStore) *TaskHandler {
	return &TaskHandler{service: service, workflow: workflow, roles: roles}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceTasks, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}
	task.ProjectID = mux.Vars(r)["projectId"]

	created, err := h.service.Create(r.Context(), principal.ID, task)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) ByProject(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceTasks, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	tasks, err := h.service.ByProject(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionRead, auth.ResourceTasks, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	task, err := h.service.Get(r.Context(), mux.Vars(r)["taskId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceTasks, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var task models.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	updated, err := h.service.Update(r.Context(), principal.ID, mux.Vars(r)["taskId"], task)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceTasks, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	task, err := h.service.ChangeStatus(r.Context(), principal.ID, mux.Vars(r)["taskId"], req.Status)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceTasks, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), principal.ID, mux.Vars(r)["taskId"]); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDependency links two tasks in the dependency graph.
func (h *TaskHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceTasks, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	var rel models.TaskDependencyRelation
	if err := json.NewDecoder(r.Body).Decode(&rel); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}
	rel.ToTaskID = mux.Vars(r)["taskId"]

	if err := h.workflow.AddDependency(r.Context(), rel); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, rel)
}

func (h *TaskHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceTasks, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	vars := mux.Vars(r)
	rel := models.TaskDependencyRelation{
		FromTaskID: vars["dependsOnId"],
		ToTaskID:   vars["taskId"],
	}
	if err := h.workflow.RemoveDependency(r.Context(), rel); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Dependencies(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionRead, auth.ResourceTasks, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	dependencies, err := h.workflow.GetDependencies(r.Context(), mux.Vars(r)["taskId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, dependencies)
}
