package handlers

import (
	"encoding/json"
	"net/http"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/services"
	"studioflow-project/backend/utils"

	"github.com/gorilla/mux"
)

type MessageHandler struct {
	service *services.MessageService
	roles   *auth.RoleStore
}

func NewMessageHandler(service *services.MessageService, roles *auth.RoleStore) *MessageHandler {
	return &MessageHandler{service: service, roles: roles}
}

func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceMessages, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	message, err := h.service.Post(r.Context(), principal, mux.Vars(r)["projectId"], req.Content)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, message)
}

func (h *MessageHandler) ByProject(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceMessages, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	messages, err := h.service.ByProject(r.Context(), mux.Vars(r)["projectId"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, messages)
}
