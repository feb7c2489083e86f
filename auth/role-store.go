package auth

import (
	"context"
	"sync"

	"studioflow-project/backend/logging"
	"studioflow-project/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RoleSet is the set of roles held by a principal.
type RoleSet map[models.Role]bool

// Has reports whether the set contains role.
func (s RoleSet) Has(role models.Role) bool { return s[role] }

// RolesSource resolves role assignments from the backing store.
type RolesSource interface {
	RolesFor(ctx context.Context, principalID string) ([]models.RoleAssignment, error)
}

// MongoRolesSource reads the user_roles collection.
type MongoRolesSource struct {
	Collection *mongo.Collection
}

func (m *MongoRolesSource) RolesFor(ctx context.Context, principalID string) ([]models.RoleAssignment, error) {
	cursor, err := m.Collection.Find(ctx, bson.M{"userId": principalID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []models.RoleAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// RoleStore caches the role set per principal for the lifetime of a session.
// Entries are dropped on explicit invalidation (role reassignment, deletion).
// Lookups fail closed: if the source cannot confirm any role, the principal
// is treated as holding no elevated roles.
type RoleStore struct {
	source RolesSource

	mu    sync.RWMutex
	cache map[string]RoleSet
}

func NewRoleStore(source RolesSource) *RoleStore {
	return &RoleStore{
		source: source,
		cache:  make(map[string]RoleSet),
	}
}

// Roles returns the cached role set for a principal, resolving and caching
// it on first use. A failed lookup yields an empty set, never an error.
func (s *RoleStore) Roles(ctx context.Context, principalID string) RoleSet {
	if principalID == "" {
		return RoleSet{}
	}

	s.mu.RLock()
	cached, ok := s.cache[principalID]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	assignments, err := s.source.RolesFor(ctx, principalID)
	if err != nil {
		logging.Logger.Warnf("Event ID: ROLE_LOOKUP_FAILED, Description: Role lookup failed for principal %s, treating as no elevated roles: %v", principalID, err)
		return RoleSet{}
	}

	roles := make(RoleSet, len(assignments))
	for _, a := range assignments {
		roles[a.Role] = true
	}

	s.mu.Lock()
	s.cache[principalID] = roles
	s.mu.Unlock()
	return roles
}

// Invalidate drops the cached role set for a principal. Called whenever a
// role assignment changes so the next check re-resolves from the store.
func (s *RoleStore) Invalidate(principalID string) {
	s.mu.Lock()
	delete(s.cache, principalID)
	s.mu.Unlock()
}
