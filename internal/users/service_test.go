package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"devflow/internal/apperr"
	"devflow/internal/authz"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

func newService(t *testing.T) (*Service, authz.Actor) {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "users.db"), sqlstore.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	svc := NewService(store, nil)
	admin, err := svc.Create(context.Background(), CreateInput{Email: "root@example.com", Password: "password1", Name: "Root", Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return svc, authz.Actor{ID: admin.ID, Role: admin.Role}
}

func TestPromoteAndDemoteWalkTheHierarchy(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, CreateInput{Email: "dev@example.com", Password: "password1", Name: "Dev"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != models.RoleDeveloper {
		t.Fatalf("default role = %s", u.Role)
	}

	for _, want := range []models.Role{models.RoleTeamLead, models.RoleAdmin} {
		got, err := svc.Promote(ctx, admin, u.ID)
		if err != nil || got.Role != want {
			t.Fatalf("promote = %s, %v; want %s", got.Role, err, want)
		}
	}
	if _, err := svc.Promote(ctx, admin, u.ID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("promote admin: %v", err)
	}

	for _, want := range []models.Role{models.RoleTeamLead, models.RoleDeveloper} {
		got, err := svc.Demote(ctx, admin, u.ID)
		if err != nil || got.Role != want {
			t.Fatalf("demote = %s, %v; want %s", got.Role, err, want)
		}
	}
	if _, err := svc.Demote(ctx, admin, u.ID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("demote developer: %v", err)
	}
}

func TestAdminCannotRemoveThemselves(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	if err := svc.Delete(ctx, admin, admin.ID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("self delete: %v", err)
	}
	if _, err := svc.Demote(ctx, admin, admin.ID); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("self demote: %v", err)
	}
	dev := models.RoleDeveloper
	if _, err := svc.Update(ctx, admin, admin.ID, UpdateInput{Role: &dev}); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("self role change: %v", err)
	}
}

func TestCreateValidationAndConflicts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Email: "bad", Password: "x", Name: "", Role: "owner"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || len(appErr.Details) != 4 {
		t.Fatalf("validation = %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Email: "ROOT@example.com", Password: "password1", Name: "Dup"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate: %v", err)
	}
}

func TestListGetDelete(t *testing.T) {
	svc, admin := newService(t)
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateInput{Email: "dev@example.com", Password: "password1", Name: "Dev"})

	list, page, err := svc.List(ctx, 1, 10)
	if err != nil || len(list) != 2 || page.Total != 2 {
		t.Fatalf("list = %d %+v %v", len(list), page, err)
	}
	if err := svc.Delete(ctx, admin, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, u.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
	if err := svc.Delete(ctx, admin, u.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}
