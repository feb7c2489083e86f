package middleware

import (
	"context"
	"net/http"
	"strings"

	"studioflow-project/backend/models"
	"studioflow-project/backend/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Authenticate validates the bearer token and stores the principal in the
// request context. Requests without a valid token are rejected with 401.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.WriteError(w, utils.ErrUnauthenticated)
			return
		}

		claims, err := utils.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.WriteError(w, utils.ErrUnauthenticated)
			return
		}

		principal := models.Principal{
			ID:       claims.UserID,
			Email:    claims.Email,
			FullName: claims.FullName,
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFrom returns the authenticated principal of the request, if any.
func PrincipalFrom(r *http.Request) (models.Principal, bool) {
	principal, ok := r.Context().Value(principalKey).(models.Principal)
	return principal, ok
}

// CORS answers preflight requests and stamps the CORS headers the web client
// needs.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
