package authz

import (
	"errors"
	"testing"

	"devflow/internal/apperr"
	"devflow/internal/models"
)

func TestAllowRoleGatedActions(t *testing.T) {
	admin := Actor{ID: "a", Role: models.RoleAdmin}
	lead := Actor{ID: "l", Role: models.RoleTeamLead}
	dev := Actor{ID: "d", Role: models.RoleDeveloper}

	tests := []struct {
		action Action
		admin  bool
		lead   bool
		dev    bool
	}{
		{Read, true, true, true},
		{TaskWrite, true, true, true},
		{CommentWrite, true, true, true},
		{OrgWrite, true, false, false},
		{TeamWrite, true, true, false},
		{ProjectWrite, true, true, false},
		{SprintWrite, true, true, false},
		{MemberWrite, true, true, false},
		{UserAdmin, true, false, false},
		{Action("unknown"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			if got := Allow(admin, tt.action, Resource{}); got != tt.admin {
				t.Errorf("admin = %v, want %v", got, tt.admin)
			}
			if got := Allow(lead, tt.action, Resource{}); got != tt.lead {
				t.Errorf("team_lead = %v, want %v", got, tt.lead)
			}
			if got := Allow(dev, tt.action, Resource{}); got != tt.dev {
				t.Errorf("developer = %v, want %v", got, tt.dev)
			}
		})
	}
}

func TestAllowOwnerScopedActions(t *testing.T) {
	author := Actor{ID: "author", Role: models.RoleDeveloper}
	stranger := Actor{ID: "stranger", Role: models.RoleTeamLead}
	admin := Actor{ID: "root", Role: models.RoleAdmin}
	res := Resource{OwnerID: "author"}

	for _, action := range []Action{CommentEdit, CommentDelete} {
		if !Allow(author, action, res) {
			t.Errorf("%s: author denied", action)
		}
		if !Allow(admin, action, res) {
			t.Errorf("%s: admin denied", action)
		}
		if Allow(stranger, action, res) {
			t.Errorf("%s: non-author team lead allowed", action)
		}
		if Allow(author, action, Resource{}) {
			t.Errorf("%s: allowed without an owner", action)
		}
	}
}

func TestAllowRejectsAnonymousAndUnknownRoles(t *testing.T) {
	if Allow(Actor{Role: models.RoleAdmin}, Read, Resource{}) {
		t.Error("actor without id allowed")
	}
	if Allow(Actor{ID: "x", Role: "guest"}, Read, Resource{}) {
		t.Error("unknown role allowed")
	}
}

func TestCheckReturnsForbidden(t *testing.T) {
	err := Check(Actor{ID: "d", Role: models.RoleDeveloper}, OrgWrite, Resource{})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if err := Check(Actor{ID: "a", Role: models.RoleAdmin}, OrgWrite, Resource{}); err != nil {
		t.Fatalf("admin: %v", err)
	}
}
