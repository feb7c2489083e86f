package auth

import (
	"context"
	"errors"
	"testing"

	"studioflow-project/backend/models"
)

type fakeRolesSource struct {
	assignments map[string][]models.RoleAssignment
	err         error
	calls       int
}

func (f *fakeRolesSource) RolesFor(ctx context.Context, principalID string) ([]models.RoleAssignment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.assignments[principalID], nil
}

func TestRoleStoreResolvesAndCaches(t *testing.T) {
	source := &fakeRolesSource{assignments: map[string][]models.RoleAssignment{
		"u1": {{UserID: "u1", Role: models.RoleAdmin}},
	}}
	store := NewRoleStore(source)

	roles := store.Roles(context.Background(), "u1")
	if !roles.Has(models.RoleAdmin) {
		t.Fatal("expected admin role")
	}
	store.Roles(context.Background(), "u1")
	store.Roles(context.Background(), "u1")
	if source.calls != 1 {
		t.Errorf("source called %d times, want 1 (cached)", source.calls)
	}
}

func TestRoleStoreFailsClosed(t *testing.T) {
	source := &fakeRolesSource{err: errors.New("store down")}
	store := NewRoleStore(source)

	roles := store.Roles(context.Background(), "u1")
	if len(roles) != 0 {
		t.Errorf("expected empty role set on source failure, got %v", roles)
	}
	if roles.Has(models.RoleAdmin) {
		t.Error("failed lookup must not grant elevated roles")
	}
}

func TestRoleStoreFailureNotCached(t *testing.T) {
	source := &fakeRolesSource{err: errors.New("store down")}
	store := NewRoleStore(source)

	store.Roles(context.Background(), "u1")

	// Store recovers; the next lookup must hit the source again.
	source.err = nil
	source.assignments = map[string][]models.RoleAssignment{
		"u1": {{UserID: "u1", Role: models.RoleManager}},
	}
	roles := store.Roles(context.Background(), "u1")
	if !roles.Has(models.RoleManager) {
		t.Error("recovered source result not picked up")
	}
}

func TestRoleStoreInvalidate(t *testing.T) {
	source := &fakeRolesSource{assignments: map[string][]models.RoleAssignment{
		"u1": {{UserID: "u1", Role: models.RoleCollaborator}},
	}}
	store := NewRoleStore(source)

	if store.Roles(context.Background(), "u1").Has(models.RoleAdmin) {
		t.Fatal("unexpected admin role")
	}

	// Reassignment happens, cache is invalidated.
	source.assignments["u1"] = []models.RoleAssignment{{UserID: "u1", Role: models.RoleAdmin}}
	store.Invalidate("u1")

	if !store.Roles(context.Background(), "u1").Has(models.RoleAdmin) {
		t.Error("role change not visible after Invalidate")
	}
	if source.calls != 2 {
		t.Errorf("source called %d times, want 2", source.calls)
	}
}

func TestRoleStoreEmptyPrincipal(t *testing.T) {
	source := &fakeRolesSource{}
	store := NewRoleStore(source)

	roles := store.Roles(context.Background(), "")
	if len(roles) != 0 {
		t.Error("empty principal must resolve to no roles")
	}
	if source.calls != 0 {
		t.Error("empty principal must not hit the source")
	}
}
