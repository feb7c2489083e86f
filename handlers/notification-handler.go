package handlers

import (
	"net/http"
	"time"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/services"
	"studioflow-project/backend/utils"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	service *services.NotificationService
	roles   *auth.RoleStore
}

func NewNotificationHandler(service *services.NotificationService, roles *auth.RoleStore) *NotificationHandler {
	return &NotificationHandler{service: service, roles: roles}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionList, auth.ResourceNotifications, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	notifications, err := h.service.ByRecipient(r.Context(), principal.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionRead, auth.ResourceNotifications, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), principal.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceNotifications, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	createdAt, err := parseCreatedAt(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.MarkRead(r.Context(), principal.ID, mux.Vars(r)["notificationId"], createdAt); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceNotifications, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.MarkAllRead(r.Context(), principal.ID); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "all notifications marked as read"})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceNotifications, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	createdAt, err := parseCreatedAt(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), principal.ID, mux.Vars(r)["notificationId"], createdAt); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseCreatedAt reads the createdAt query parameter that addresses a row in
// the clustered notifications table.
func parseCreatedAt(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("createdAt")
	if raw == "" {
		return time.Time{}, utils.ErrValidation
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, utils.ErrValidation
	}
	return createdAt, nil
}
