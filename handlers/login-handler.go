package handlers

import (
	"encoding/json"
	"net/http"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/middleware"
	"studioflow-project/backend/services"
	"studioflow-project/backend/utils"
)

// LoginHandler exposes the unauthenticated account endpoints: signup, signin
// and the password reset flow.
type LoginHandler struct {
	service *services.UserService
}

func NewLoginHandler(service *services.UserService) *LoginHandler {
	return &LoginHandler{service: service}
}

func (h *LoginHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		FullName string `json:"fullName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	profile, err := h.service.Register(r.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, profile)
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	token, profile, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  profile,
	})
}

// Logout only acknowledges; tokens are short-lived and the client discards
// its copy.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if principal, ok := middleware.PrincipalFrom(r); ok {
		logging.Logger.Infof("Event ID: USER_LOGOUT, Description: User %s logged out.", principal.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LoginHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "if the email exists, a reset code was sent"})
}

func (h *LoginHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, utils.ErrValidation)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}
