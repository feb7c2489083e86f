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

type UserHandler struct {
	service *services.UserService
	roles   *auth.RoleStore
}

func NewUserHandler(service *services.UserService, roles *auth.RoleStore) *UserHandler {
	return &UserHandler{service: service, roles: roles}
}

// Me returns the profile of the calling principal.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionRead, auth.ResourceUsers, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	profile, err := h.service.Get(r.Context(), principal.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}

// UpdateMe changes the display name of the calling principal.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceUsers, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		FullName string `json:"fullName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), principal.ID, req.FullName)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceUsers, ownPrincipal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	if err := h.service.ChangePassword(r.Context(), principal.ID, req.OldPassword, req.NewPassword); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// ListUsers is the admin user-management view.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionList, auth.ResourceUsers, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

// ChangeRole reassigns the role of a principal. Admin only.
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	if _, err := authorize(r, h.roles, auth.ActionUpdate, auth.ResourceUserRoles, ""); err != nil {
		utils.WriteError(w, err)
		return
	}

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	userID := mux.Vars(r)["userId"]
	if err := h.service.ChangeRole(r.Context(), userID, req.Role); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "role changed"})
}

// DeleteUser removes an account. Admin only; self-delete is refused.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	principal, err := authorize(r, h.roles, auth.ActionDelete, auth.ResourceUsers, "")
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), principal.ID, userID); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
