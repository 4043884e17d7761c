package membership

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

func setup(t *testing.T) (*Service, models.Team, models.User) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "members.db"), sqlstore.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	org, err := store.CreateOrganization(ctx, models.Organization{Name: "Acme"})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	team, err := store.CreateTeam(ctx, models.Team{OrganizationID: org.ID, Name: "Core"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	user, err := store.CreateUser(ctx, models.User{Email: "dev@example.com", Name: "Dev", PasswordHash: "x", Role: models.RoleDeveloper})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewService(store, nil), team, user
}

func TestAddMemberTwiceConflicts(t *testing.T) {
	svc, team, user := setup(t)
	ctx := context.Background()

	m, err := svc.AddMember(ctx, team.ID, user.ID, models.MemberDeveloper)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if m.Email != user.Email {
		t.Fatalf("member = %+v", m)
	}

	_, err = svc.AddMember(ctx, team.ID, user.ID, models.MemberTeamLead)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeConflict {
		t.Fatalf("second add: %v", err)
	}

	members, err := svc.ListMembers(ctx, team.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 1 || members[0].Role != models.MemberDeveloper {
		t.Fatalf("members = %+v", members)
	}
}

func TestAddMemberMissingReferences(t *testing.T) {
	svc, team, user := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		team    string
		user    string
		role    models.MemberRole
		kind    error
		message string
	}{
		{"missing team", "nope", user.ID, models.MemberDeveloper, apperr.ErrNotFound, "Team not found"},
		{"missing user", team.ID, "nope", models.MemberDeveloper, apperr.ErrNotFound, "User not found"},
		{"bad role", team.ID, user.ID, "admin", apperr.ErrValidation, "Validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddMember(ctx, tt.team, tt.user, tt.role)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			if appErr := apperr.From(err); appErr.Message != tt.message {
				t.Fatalf("message = %q, want %q", appErr.Message, tt.message)
			}
		})
	}
}

func TestRemoveMemberReportsChange(t *testing.T) {
	svc, team, user := setup(t)
	ctx := context.Background()
	if _, err := svc.AddMember(ctx, team.ID, user.ID, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	if removed, err := svc.RemoveMember(ctx, team.ID, user.ID); err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	if removed, err := svc.RemoveMember(ctx, team.ID, user.ID); err != nil || removed {
		t.Fatalf("second remove = %v, %v", removed, err)
	}
	available, err := svc.AvailableUsers(ctx, team.ID)
	if err != nil || len(available) != 1 {
		t.Fatalf("available = %+v, %v", available, err)
	}
}

func TestListMembersMissingTeam(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.ListMembers(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
