package handlers

import (
	"net/http"

	"studioflow-project/backend/auth"
	"studioflow-project/backend/middleware"
	"studioflow-project/backend/models"
	"studioflow-project/backend/utils"
)

// authorize resolves the request principal and asks the policy evaluator
// whether the action is allowed. ownerID is passed through for resources
// where ownership matters.
func authorize(r *http.Request, roles *auth.RoleStore, action auth.Action, kind auth.ResourceKind, ownerID string) (models.Principal, error) {
	principal, ok := middleware.PrincipalFrom(r)
	if !ok {
		return models.Principal{}, utils.ErrUnauthenticated
	}
	roleSet := roles.Roles(r.Context(), principal.ID)
	if !auth.CanPerform(principal.ID, roleSet, action, kind, ownerID) {
		return principal, utils.ErrForbidden
	}
	return principal, nil
}

// ownPrincipal returns the caller's own id, for actions on resources the
// caller owns by definition (their profile, their notifications).
func ownPrincipal(r *http.Request) string {
	if principal, ok := middleware.PrincipalFrom(r); ok {
		return principal.ID
	}
	return ""
}
