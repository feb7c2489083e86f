package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleCollaborator Role = "collaborator"
	RoleClient       Role = "client"
)

// DefaultRole is granted together with account creation so that the role set
// of a principal is never empty after signup.
const DefaultRole = RoleCollaborator

// ValidRole reports whether r is one of the known role tiers.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCollaborator, RoleClient:
		return true
	}
	return false
}

// RoleAssignment links a principal to a role. Uniqueness is on the
// (userId, role) pair.
type RoleAssignment struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID string             `bson:"userId" json:"userId"`
	Role   Role               `bson:"role" json:"role"`
}
