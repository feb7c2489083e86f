package auth

import "studioflow-project/backend/models"

type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

type ResourceKind string

const (
	ResourceProjects      ResourceKind = "projects"
	ResourceStages        ResourceKind = "project_stages"
	ResourceTasks         ResourceKind = "tasks"
	ResourceMessages      ResourceKind = "messages"
	ResourceFiles         ResourceKind = "files"
	ResourceActivityLogs  ResourceKind = "activity_logs"
	ResourceNotifications ResourceKind = "notifications"
	ResourceUsers         ResourceKind = "users"
	ResourceUserRoles     ResourceKind = "user_roles"
	ResourceSupportAdmin  ResourceKind = "support_admin"
	ResourceSupport       ResourceKind = "support_tickets"
)

// CanPerform decides whether a principal may perform an action on a resource
// kind. ownerID is the owning principal of the concrete resource where
// ownership matters (notifications, own tickets, own profile); it may be
// empty for collection-level actions.
//
// Pure function: deterministic for the same inputs, no side effects, never
// errors. Missing or ambiguous data denies.
func CanPerform(principalID string, roles RoleSet, action Action, kind ResourceKind, ownerID string) bool {
	if principalID == "" {
		return false
	}

	switch kind {
	case ResourceProjects, ResourceStages, ResourceTasks, ResourceMessages, ResourceFiles:
		// Intentionally permissive: any authenticated principal may create
		// and mutate shared production resources, with no per-project
		// membership restriction.
		return true

	case ResourceActivityLogs:
		// System-written; principals only read them.
		return action == ActionRead || action == ActionList

	case ResourceNotifications:
		// A notification has exactly one recipient and only the recipient
		// touches it.
		return ownerID != "" && ownerID == principalID

	case ResourceUsers:
		// Principals manage their own profile; anything touching other
		// accounts is admin territory.
		if ownerID != "" && ownerID == principalID {
			return action != ActionDelete // self-delete goes through admin review
		}
		return roles.Has(models.RoleAdmin)

	case ResourceUserRoles:
		if action == ActionRead && ownerID == principalID {
			return true
		}
		return roles.Has(models.RoleAdmin)

	case ResourceSupport:
		switch action {
		case ActionCreate:
			return true
		case ActionRead, ActionList:
			return ownerID == principalID || roles.Has(models.RoleAdmin)
		default:
			return roles.Has(models.RoleAdmin)
		}

	case ResourceSupportAdmin:
		return roles.Has(models.RoleAdmin)
	}

	// Unknown resource kind: fail closed.
	return false
}
