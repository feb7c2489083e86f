package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"studioflow-project/backend/utils"
)

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	handler := Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	handler := Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with an invalid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticatePutsPrincipalInContext(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := utils.GenerateToken("u1", "ana@studio.example", "Ana Petrovic")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var handlerRan bool
	handler := Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
		principal, ok := PrincipalFrom(r)
		if !ok {
			t.Fatal("principal missing from request context")
		}
		if principal.ID != "u1" || principal.Email != "ana@studio.example" {
			t.Errorf("unexpected principal %+v", principal)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !handlerRan {
		t.Fatalf("handler not reached, status %d", rec.Code)
	}
}
