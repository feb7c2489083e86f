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

type SupportHandler struct {
	service *services.SupportService
	roles   *auth.RoleStore
}

func NewSupportHandler(service *services.SupportService, roles *auth.RoleStore) *SupportHandler {
	return &SupportHandler{service: service, roles: roles}
}

func (h *SupportHandler) Open(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionCreate, auth.ResourceSupport, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var ticket models.SupportTicket
	if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	created, err := h.service.Open(r.Context(), principal.ID, ticket)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

// Mine lists the tickets opened by the calling principal.
func (h *SupportHandler) Mine(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionList, auth.ResourceSupport, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	tickets, err := h.service.ByReporter(r.Context(), principal.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

// All lists the whole queue. Admin only.
func (h *SupportHandler) All(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceSupportAdmin, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	tickets, err := h.service.All(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, tickets)
}

// Update moves a ticket through the queue. Admin only.
func (h *SupportHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceSupportAdmin, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		Status     models.TicketStatus `json:"status"`
		AdminNotes string              `json:"adminNotes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	ticket, err := h.service.Update(r.Context(), principal.ID, mux.Vars(r)["ticketId"], req.Status, req.AdminNotes)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ticket)
}
