// Package authz holds the single capability policy used by every service and
// HTTP route.
package authz

import (
	"devflow/internal/apperr"
	"devflow/internal/models"
)

// Action is something an actor wants to do.
type Action string

const (
	Read          Action = "read"
	TaskWrite     Action = "task:write"
	CommentWrite  Action = "comment:write"
	CommentEdit   Action = "comment:edit"
	CommentDelete Action = "comment:delete"
	OrgWrite      Action = "org:write"
	TeamWrite     Action = "team:write"
	ProjectWrite  Action = "project:write"
	SprintWrite   Action = "sprint:write"
	MemberWrite   Action = "member:write"
	UserAdmin     Action = "user:admin"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role models.Role
}

// Resource describes the target of an action. OwnerID is only consulted for
// owner-scoped actions.
type Resource struct {
	OwnerID string
}

// minimumRole is the lowest role allowed to perform each role-gated action.
var minimumRole = map[Action]models.Role{
	Read:         models.RoleDeveloper,
	TaskWrite:    models.RoleDeveloper,
	CommentWrite: models.RoleDeveloper,
	OrgWrite:     models.RoleAdmin,
	TeamWrite:    models.RoleTeamLead,
	ProjectWrite: models.RoleTeamLead,
	SprintWrite:  models.RoleTeamLead,
	MemberWrite:  models.RoleTeamLead,
	UserAdmin:    models.RoleAdmin,
}

// ownerScoped actions are allowed to the resource owner and to admins.
var ownerScoped = map[Action]bool{
	CommentEdit:   true,
	CommentDelete: true,
}

// Allow reports whether actor may perform action on res.
func Allow(actor Actor, action Action, res Resource) bool {
	if actor.ID == "" || !actor.Role.Valid() {
		return false
	}
	if ownerScoped[action] {
		return actor.Role == models.RoleAdmin || (res.OwnerID != "" && res.OwnerID == actor.ID)
	}
	required, ok := minimumRole[action]
	if !ok {
		return false
	}
	return actor.Role.AtLeast(required)
}

// Check is Allow returning a FORBIDDEN error on denial.
func Check(actor Actor, action Action, res Resource) error {
	if Allow(actor, action, res) {
		return nil
	}
	return apperr.Forbidden("Insufficient permissions")
}
