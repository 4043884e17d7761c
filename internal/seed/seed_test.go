package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

const fixtureYAML = `
users:
  - email: lead@example.com
    password: leadpass1
    name: Lead
    role: team_lead
  - email: dev@example.com
    password: devpass12
    name: Dev
organization:
  name: Acme
  teams:
    - name: Core
      members:
        - email: lead@example.com
          role: team_lead
        - email: dev@example.com
      projects:
        - name: API
          github_repo_url: https://github.com/acme/api
          sprints:
            - name: Sprint 1
              start_date: 2024-01-01
              end_date: 2024-01-14
              tasks:
                - title: Write handlers
                  priority: high
                  story_points: 3
                  assignee: dev@example.com
                  creator: lead@example.com
                - title: Review
                  creator: lead@example.com
`

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "seed.db"), sqlstore.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDefaultFixture(t *testing.T) {
	f, err := ParseFile("")
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	if len(f.Users) != 3 {
		t.Fatalf("expected 3 default users, got %d", len(f.Users))
	}
	roles := map[models.Role]bool{}
	for _, u := range f.Users {
		roles[u.Role] = true
	}
	for _, r := range []models.Role{models.RoleAdmin, models.RoleTeamLead, models.RoleDeveloper} {
		if !roles[r] {
			t.Fatalf("default fixture lacks role %s", r)
		}
	}
}

func TestApplySkipsExistingUsers(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	f, err := ParseFile("")
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	seeder := ForStore(store, nil)

	first, err := seeder.Apply(ctx, f)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.UsersCreated != 3 || first.UsersSkipped != 0 {
		t.Fatalf("unexpected first report: %+v", first)
	}
	second, err := seeder.Apply(ctx, f)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.UsersCreated != 0 || second.UsersSkipped != 3 {
		t.Fatalf("unexpected second report: %+v", second)
	}

	admin, err := store.GetUserByEmail(ctx, "admin@devflow.com")
	if err != nil {
		t.Fatalf("lookup admin: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}
}

func TestApplyBuildsHierarchy(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	f, err := Parse(strings.NewReader(fixtureYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	report, err := ForStore(store, nil).Apply(ctx, f)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := Report{UsersCreated: 2, Teams: 1, Projects: 1, Sprints: 1, Tasks: 2}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}

	dev, err := store.GetUserByEmail(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("lookup dev: %v", err)
	}
	if dev.Role != models.RoleDeveloper {
		t.Fatalf("expected developer default role, got %s", dev.Role)
	}
	assigned, total, err := store.ListTasks(ctx, sqlstore.TaskFilter{AssigneeID: dev.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if total != 1 || assigned[0].Title != "Write handlers" || assigned[0].Status != models.StatusTodo {
		t.Fatalf("unexpected assigned tasks: %+v", assigned)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("users:\n  - email: a@b.c\n    passwd: nope\n"))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestApplyUnknownMemberFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := "organization:\n  name: Acme\n  teams:\n    - name: Core\n      members:\n        - email: ghost@example.com\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ForStore(openStore(t), nil).Apply(context.Background(), f); err == nil || !strings.Contains(err.Error(), "ghost@example.com") {
		t.Fatalf("expected unknown user error, got %v", err)
	}
}
