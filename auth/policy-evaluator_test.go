package auth

import (
	"testing"

	"studioflow-project/backend/models"
)

func TestCanPerform(t *testing.T) {
	admin := RoleSet{models.RoleAdmin: true}
	collaborator := RoleSet{models.RoleCollaborator: true}
	client := RoleSet{models.RoleClient: true}

	tests := []struct {
		name        string
		principalID string
		roles       RoleSet
		action      Action
		kind        ResourceKind
		ownerID     string
		want        bool
	}{
		{"unauthenticated denied", "", RoleSet{}, ActionRead, ResourceProjects, "", false},
		{"collaborator creates project", "u1", collaborator, ActionCreate, ResourceProjects, "", true},
		{"client updates task", "u1", client, ActionUpdate, ResourceTasks, "", true},
		{"collaborator deletes stage", "u1", collaborator, ActionDelete, ResourceStages, "", true},
		{"collaborator posts message", "u1", collaborator, ActionCreate, ResourceMessages, "", true},
		{"collaborator uploads file", "u1", collaborator, ActionCreate, ResourceFiles, "", true},

		{"activity logs readable", "u1", collaborator, ActionList, ResourceActivityLogs, "", true},
		{"activity logs not writable", "u1", admin, ActionCreate, ResourceActivityLogs, "", false},

		{"recipient reads own notification", "u1", collaborator, ActionRead, ResourceNotifications, "u1", true},
		{"other recipient denied", "u1", collaborator, ActionRead, ResourceNotifications, "u2", false},
		{"admin denied on foreign notification", "u1", admin, ActionRead, ResourceNotifications, "u2", false},
		{"notification without owner denied", "u1", admin, ActionRead, ResourceNotifications, "", false},

		{"own profile readable", "u1", collaborator, ActionRead, ResourceUsers, "u1", true},
		{"own profile updatable", "u1", collaborator, ActionUpdate, ResourceUsers, "u1", true},
		{"self delete denied", "u1", collaborator, ActionDelete, ResourceUsers, "u1", false},
		{"foreign profile denied", "u1", collaborator, ActionRead, ResourceUsers, "u2", false},
		{"admin lists users", "u1", admin, ActionList, ResourceUsers, "", true},
		{"collaborator cannot list users", "u1", collaborator, ActionList, ResourceUsers, "", false},

		{"own role readable", "u1", collaborator, ActionRead, ResourceUserRoles, "u1", true},
		{"role reassignment admin only", "u1", collaborator, ActionUpdate, ResourceUserRoles, "u2", false},
		{"admin reassigns role", "u1", admin, ActionUpdate, ResourceUserRoles, "u2", true},

		{"anyone opens ticket", "u1", client, ActionCreate, ResourceSupport, "", true},
		{"reporter reads own ticket", "u1", client, ActionRead, ResourceSupport, "u1", true},
		{"foreign ticket denied", "u1", client, ActionRead, ResourceSupport, "u2", false},
		{"admin reads any ticket", "u1", admin, ActionRead, ResourceSupport, "u2", true},
		{"ticket update admin only", "u1", collaborator, ActionUpdate, ResourceSupport, "u1", false},

		{"support admin queue", "u1", admin, ActionList, ResourceSupportAdmin, "", true},
		{"support admin denied for manager", "u1", RoleSet{models.RoleManager: true}, ActionList, ResourceSupportAdmin, "", false},

		{"unknown resource denied", "u1", admin, ActionRead, ResourceKind("webhooks"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanPerform(tt.principalID, tt.roles, tt.action, tt.kind, tt.ownerID)
			if got != tt.want {
				t.Errorf("CanPerform(%q, %v, %s, %s, %q) = %v, want %v",
					tt.principalID, tt.roles, tt.action, tt.kind, tt.ownerID, got, tt.want)
			}
		})
	}
}

func TestCanPerformIsDeterministic(t *testing.T) {
	roles := RoleSet{models.RoleAdmin: true}
	first := CanPerform("u1", roles, ActionUpdate, ResourceUserRoles, "u2")
	for i := 0; i < 100; i++ {
		if CanPerform("u1", roles, ActionUpdate, ResourceUserRoles, "u2") != first {
			t.Fatal("CanPerform returned different results for identical inputs")
		}
	}
}
