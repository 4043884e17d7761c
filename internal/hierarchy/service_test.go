package hierarchy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

func newService(t *testing.T, now time.Time) (*Service, *sqlstore.Store) {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "hierarchy.db"), sqlstore.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, func() time.Time { return now }, nil), store
}

func date(y int, m time.Month, d int) models.Date {
	return models.NewDate(y, m, d)
}

func TestHierarchyScenario(t *testing.T) {
	svc, _ := newService(t, time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "Acme", nil)
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	team, err := svc.CreateTeam(ctx, org.ID, "Core", nil)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	project, err := svc.CreateProject(ctx, models.Project{TeamID: team.ID, Name: "API"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	sprint, err := svc.CreateSprint(ctx, models.Sprint{ProjectID: project.ID, Name: "S1",
		StartDate: date(2024, time.January, 1), EndDate: date(2024, time.January, 14)})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	if sprint.Status != models.SprintActive {
		t.Fatalf("status = %s, want active", sprint.Status)
	}

	teams, err := svc.ListTeams(ctx, org.ID)
	if err != nil || len(teams) != 1 {
		t.Fatalf("teams = %+v, %v", teams, err)
	}
	orgs, page, err := svc.ListOrganizations(ctx, 0, 0)
	if err != nil || len(orgs) != 1 || page.Limit != DefaultOrganizationPageSize {
		t.Fatalf("orgs = %d page = %+v err = %v", len(orgs), page, err)
	}
}

func TestCreateRequiresParent(t *testing.T) {
	svc, _ := newService(t, time.Now())
	ctx := context.Background()

	if _, err := svc.CreateTeam(ctx, "missing", "Core", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("team under missing org: %v", err)
	}
	if _, err := svc.CreateProject(ctx, models.Project{TeamID: "missing", Name: "API"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("project under missing team: %v", err)
	}
	_, err := svc.CreateSprint(ctx, models.Sprint{ProjectID: "missing", Name: "S1",
		StartDate: date(2024, time.January, 1), EndDate: date(2024, time.January, 2)})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("sprint under missing project: %v", err)
	}
	if _, err := svc.CreateOrganization(ctx, "  ", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank org name: %v", err)
	}
}

func TestSprintStatusIsComputedOnRead(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	svc, store := newService(t, now)

	org, _ := svc.CreateOrganization(ctx, "Acme", nil)
	team, _ := svc.CreateTeam(ctx, org.ID, "Core", nil)
	project, _ := svc.CreateProject(ctx, models.Project{TeamID: team.ID, Name: "API"})

	tests := []struct {
		name       string
		start, end models.Date
		want       models.SprintStatus
	}{
		{"past", date(2024, time.May, 1), date(2024, time.May, 14), models.SprintCompleted},
		{"spanning today", date(2024, time.June, 10), date(2024, time.June, 24), models.SprintActive},
		{"ends today", date(2024, time.June, 1), date(2024, time.June, 15), models.SprintActive},
		{"future", date(2024, time.July, 1), date(2024, time.July, 14), models.SprintPlanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp, err := svc.CreateSprint(ctx, models.Sprint{ProjectID: project.ID, Name: tt.name, StartDate: tt.start, EndDate: tt.end})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			got, err := svc.GetSprint(ctx, sp.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}

	// The same stored rows read a month later are all past.
	later := NewService(store, func() time.Time { return now.AddDate(0, 2, 0) }, nil)
	sprints, err := later.ListSprints(ctx, project.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, sp := range sprints {
		if sp.Status != models.SprintCompleted {
			t.Fatalf("%s status = %s, want completed", sp.Name, sp.Status)
		}
	}
}

func TestSprintDateOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, time.Now())
	org, _ := svc.CreateOrganization(ctx, "Acme", nil)
	team, _ := svc.CreateTeam(ctx, org.ID, "Core", nil)
	project, _ := svc.CreateProject(ctx, models.Project{TeamID: team.ID, Name: "API"})

	_, err := svc.CreateSprint(ctx, models.Sprint{ProjectID: project.ID, Name: "bad",
		StartDate: date(2024, time.January, 14), EndDate: date(2024, time.January, 14)})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("equal dates: %v", err)
	}

	sp, err := svc.CreateSprint(ctx, models.Sprint{ProjectID: project.ID, Name: "S1",
		StartDate: date(2024, time.January, 1), EndDate: date(2024, time.January, 14)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	early := date(2023, time.December, 20)
	if _, err := svc.UpdateSprint(ctx, sp.ID, sqlstore.SprintUpdate{EndDate: &early}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("end before stored start: %v", err)
	}
	later := date(2024, time.January, 21)
	updated, err := svc.UpdateSprint(ctx, sp.ID, sqlstore.SprintUpdate{EndDate: &later})
	if err != nil || updated.EndDate.String() != "2024-01-21" {
		t.Fatalf("update = %+v, %v", updated, err)
	}
}

func TestSprintProgress(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, time.Now())
	org, _ := svc.CreateOrganization(ctx, "Acme", nil)
	team, _ := svc.CreateTeam(ctx, org.ID, "Core", nil)
	project, _ := svc.CreateProject(ctx, models.Project{TeamID: team.ID, Name: "API"})
	sp, _ := svc.CreateSprint(ctx, models.Sprint{ProjectID: project.ID, Name: "S1",
		StartDate: date(2024, time.January, 1), EndDate: date(2024, time.January, 14)})
	user, err := store.CreateUser(ctx, models.User{Email: "dev@example.com", Name: "Dev", PasswordHash: "x", Role: models.RoleDeveloper})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	empty, err := svc.SprintProgress(ctx, sp.ID)
	if err != nil || empty.TotalTasks != 0 || empty.ProgressPercentage != 0 {
		t.Fatalf("empty progress = %+v, %v", empty, err)
	}

	done := models.StatusDone
	for i := 0; i < 3; i++ {
		task, err := store.CreateTask(ctx, models.Task{SprintID: sp.ID, Title: "t", Priority: models.PriorityLow, CreatorID: user.ID})
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		if i == 0 {
			if _, err := store.PatchTask(ctx, task.ID, sqlstore.TaskPatch{Status: &done}, user.ID); err != nil {
				t.Fatalf("patch: %v", err)
			}
		}
	}

	progress, err := svc.SprintProgress(ctx, sp.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.TotalTasks != 3 || progress.CompletedTasks != 1 || progress.ProgressPercentage != 33.33 {
		t.Fatalf("progress = %+v", progress)
	}
	if _, err := svc.SprintProgress(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing sprint: %v", err)
	}
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	svc, _ := newService(t, time.Now())
	ctx := context.Background()
	for name, del := range map[string]func(context.Context, string) error{
		"organization": svc.DeleteOrganization,
		"team":         svc.DeleteTeam,
		"project":      svc.DeleteProject,
		"sprint":       svc.DeleteSprint,
	} {
		if err := del(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("%s: %v", name, err)
		}
	}
}
