package handlers

import (
	"net/http"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/services"
	"studioflow-project/backend/utils"

	"github.com/gorilla/mux"
)

// activityQueryLimit caps the per-project activity feed.
const activityQueryLimit = 20

type ActivityHandler struct {
	service *services.ActivityService
	roles   *auth.RoleStore
}

func NewActivityHandler(service *services.ActivityService, roles *auth.RoleStore) *ActivityHandler {
	return &ActivityHandler{service: service, roles: roles}
}

func (h *ActivityHandler) ByProject(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceActivityLogs, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	entries, err := h.service.ByProject(r.Context(), mux.Vars(r)["projectId"], activityQueryLimit)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, entries)
}
