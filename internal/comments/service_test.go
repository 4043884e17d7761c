package comments

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"devflow/internal/apperr"
	"devflow/internal/authz"
	"devflow/internal/models"
	"devflow/internal/notify"
	"devflow/internal/storage/sqlstore"
)

type env struct {
	store    *sqlstore.Store
	svc      *Service
	notes    *notify.Service
	author   authz.Actor
	assignee authz.Actor
	stranger authz.Actor
	admin    authz.Actor
	task     models.Task
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "comments.db"), sqlstore.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	actor := func(email string, role models.Role) authz.Actor {
		u, err := store.CreateUser(ctx, models.User{Email: email, Name: email, PasswordHash: "x", Role: role})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		return authz.Actor{ID: u.ID, Role: u.Role}
	}
	e := &env{
		store:    store,
		author:   actor("author@example.com", models.RoleDeveloper),
		assignee: actor("assignee@example.com", models.RoleDeveloper),
		stranger: actor("stranger@example.com", models.RoleTeamLead),
		admin:    actor("admin@example.com", models.RoleAdmin),
	}

	org, _ := store.CreateOrganization(ctx, models.Organization{Name: "Acme"})
	team, _ := store.CreateTeam(ctx, models.Team{OrganizationID: org.ID, Name: "Core"})
	project, _ := store.CreateProject(ctx, models.Project{TeamID: team.ID, Name: "API"})
	sprint, err := store.CreateSprint(ctx, models.Sprint{ProjectID: project.ID, Name: "S1",
		StartDate: models.NewDate(2024, time.January, 1), EndDate: models.NewDate(2024, time.January, 14)})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	e.task, err = store.CreateTask(ctx, models.Task{SprintID: sprint.ID, Title: "Fix bug", Priority: models.PriorityMedium,
		CreatorID: e.author.ID, AssigneeID: &e.assignee.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	bus := notify.NewBus(nil)
	e.notes = notify.NewService(store, nil, nil)
	bus.Subscribe(e.notes.HandleEvent)
	e.svc = NewService(store, bus, nil)
	return e
}

func TestCreateNotifiesAssignee(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := e.svc.Create(ctx, e.author, e.task.ID, "  looks good  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Content != "looks good" || c.UserName != "author@example.com" {
		t.Fatalf("comment = %+v", c)
	}
	if n, _ := e.notes.UnreadCount(ctx, e.assignee.ID); n != 1 {
		t.Fatalf("assignee unread = %d, want 1", n)
	}

	// The assignee commenting on their own task notifies nobody.
	if _, err := e.svc.Create(ctx, e.assignee, e.task.ID, "thanks"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if n, _ := e.notes.UnreadCount(ctx, e.assignee.ID); n != 1 {
		t.Fatalf("assignee unread = %d, want 1", n)
	}
}

// hangupStore cancels the request context once the comment is stored.
type hangupStore struct {
	*sqlstore.Store
	cancel context.CancelFunc
}

func (s *hangupStore) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	created, err := s.Store.CreateComment(ctx, c)
	s.cancel()
	return created, err
}

func TestCreateNotifiesAfterCallerHangsUp(t *testing.T) {
	e := newEnv(t)
	bus := notify.NewBus(nil)
	bus.Subscribe(e.notes.HandleEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(&hangupStore{Store: e.store, cancel: cancel}, bus, nil)

	if _, err := svc.Create(ctx, e.author, e.task.ID, "ship it"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if n, err := e.notes.UnreadCount(context.Background(), e.assignee.ID); err != nil || n != 1 {
		t.Fatalf("assignee unread = %d, %v; want 1", n, err)
	}
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t)
	if _, err := e.svc.Create(context.Background(), e.author, e.task.ID, "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty content: %v", err)
	}
	if _, err := e.svc.Create(context.Background(), e.author, "missing", "hi"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing task: %v", err)
	}
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	tests := []struct {
		name  string
		actor func(*env) authz.Actor
		allow bool
	}{
		{"author", func(e *env) authz.Actor { return e.author }, true},
		{"admin", func(e *env) authz.Actor { return e.admin }, true},
		{"non-author team lead", func(e *env) authz.Actor { return e.stranger }, false},
		{"non-author developer", func(e *env) authz.Actor { return e.assignee }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			c, err := e.svc.Create(ctx, e.author, e.task.ID, "first")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			actor := tt.actor(e)

			updated, err := e.svc.Update(ctx, actor, c.ID, "edited")
			if tt.allow {
				if err != nil || !updated.IsEdited || updated.Content != "edited" {
					t.Fatalf("update = %+v, %v", updated, err)
				}
			} else if !errors.Is(err, apperr.ErrForbidden) {
				t.Fatalf("update err = %v, want forbidden", err)
			}

			err = e.svc.Delete(ctx, actor, c.ID)
			if tt.allow && err != nil {
				t.Fatalf("delete: %v", err)
			}
			if !tt.allow && !errors.Is(err, apperr.ErrForbidden) {
				t.Fatalf("delete err = %v, want forbidden", err)
			}

			list, _ := e.svc.ListByTask(ctx, e.task.ID)
			if tt.allow && len(list) != 0 {
				t.Fatalf("deleted comment still listed: %+v", list)
			}
			if !tt.allow && len(list) != 1 {
				t.Fatalf("comment disappeared after forbidden delete")
			}
		})
	}
}

func TestDeletedCommentIsNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, _ := e.svc.Create(ctx, e.author, e.task.ID, "first")
	if err := e.svc.Delete(ctx, e.author, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.svc.Delete(ctx, e.author, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := e.svc.Update(ctx, e.author, c.ID, "again"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("update deleted: %v", err)
	}
}

func TestListIsOldestFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, body := range []string{"one", "two", "three"} {
		if _, err := e.svc.Create(ctx, e.author, e.task.ID, body); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	list, err := e.svc.ListByTask(ctx, e.task.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Content != "one" || list[2].Content != "three" {
		t.Fatalf("order = %+v", list)
	}
}
