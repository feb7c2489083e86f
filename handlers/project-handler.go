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

type ProjectHandler struct {
	service *services.ProjectService
	roles   *auth.RoleStore
}

func NewProjectHandler(service *services.ProjectService, roles *auth.RoleStore) *ProjectHandler {
	return &ProjectHandler{service: service, roles: roles}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceProjects, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var project models.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	created, err := h.service.Create(r.Context(), principal.ID, project)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceProjects, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	projects, err := h.service.List(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionRead, auth.ResourceProjects, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	project, err := h.service.Get(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceProjects, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var project models.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	updated, err := h.service.Update(r.Context(), principal.ID, mux.Vars(r)["projectId"], project)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceProjects, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), principal.ID, mux.Vars(r)["projectId"]); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatusCounts backs the dashboard summary widget.
func (h *ProjectHandler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceProjects, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	counts, err := h.service.StatusCounts(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, counts)
}

func (h *ProjectHandler) CreateStage(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceStages, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var stage models.ProjectStage
	if err := json.NewDecoder(r.Body).Decode(&stage); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}
	stage.ProjectID = mux.Vars(r)["projectId"]

	created, err := h.service.CreateStage(r.Context(), principal.ID, stage)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

func (h *ProjectHandler) Stages(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceStages, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	stages, err := h.service.Stages(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stages)
}

func (h *ProjectHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceStages, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var stage models.ProjectStage
	if err := json.NewDecoder(r.Body).Decode(&stage); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	updated, err := h.service.UpdateStage(r.Context(), principal.ID, mux.Vars(r)["stageId"], stage)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

func (h *ProjectHandler) DeleteStage(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceStages, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.DeleteStage(r.Context(), principal.ID, mux.Vars(r)["stageId"]); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
