// Package users implements administrative account management.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devflow/internal/apperr"
	"devflow/internal/auth"
	"devflow/internal/authz"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

// Store is the persistence user management needs.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error)
	UpdateUser(ctx context.Context, id string, upd sqlstore.UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CreateInput is an account created by an administrator.
type CreateInput struct {
	Email     string
	Password  string
	Name      string
	Role      models.Role
	AvatarURL *string
}

// UpdateInput holds the account fields an administrator may change.
type UpdateInput struct {
	Email     *string
	Name      *string
	Role      *models.Role
	AvatarURL *string
}

// Service manages accounts on behalf of admins.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService wires the user management service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, sqlstore.ErrNotFound):
		return apperr.NotFound("User")
	case errors.Is(err, sqlstore.ErrDuplicate):
		return apperr.Conflict("User with this email already exists")
	}
	return err
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, page, limit int) ([]models.User, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, models.DefaultPageSize, models.MaxPageSize)
	offset := models.NewPagination(page, limit, 0).Offset()
	list, total, err := s.store.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return list, models.NewPagination(page, limit, total), nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	return u, mapErr(err)
}

// Create adds an account with any role.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.User, error) {
	details := map[string][]string{}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		details["email"] = append(details["email"], "must be a valid email")
	}
	if len(in.Password) < auth.MinPasswordLength {
		details["password"] = append(details["password"], fmt.Sprintf("must be at least %d", auth.MinPasswordLength))
	}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = append(details["name"], "is required")
	}
	if in.Role == "" {
		in.Role = models.RoleDeveloper
	}
	if !in.Role.Valid() {
		details["role"] = append(details["role"], "must be one of admin team_lead developer")
	}
	if len(details) > 0 {
		return models.User{}, apperr.Validation(details)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.store.CreateUser(ctx, models.User{Email: email, PasswordHash: hash, Name: in.Name, Role: in.Role, AvatarURL: in.AvatarURL})
	if err != nil {
		return models.User{}, mapErr(err)
	}
	s.logger.Info("user created", slog.String("user_id", u.ID), slog.String("role", string(u.Role)))
	return u, nil
}

// Update changes account fields. An admin may not demote themselves.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id string, in UpdateInput) (models.User, error) {
	if in.Role != nil {
		if !in.Role.Valid() {
			return models.User{}, apperr.Invalid("role", "must be one of admin team_lead developer")
		}
		if id == actor.ID && *in.Role != actor.Role {
			return models.User{}, apperr.BadRequest("You cannot change your own role")
		}
	}
	if in.Email != nil && !strings.Contains(*in.Email, "@") {
		return models.User{}, apperr.Invalid("email", "must be a valid email")
	}
	u, err := s.store.UpdateUser(ctx, id, sqlstore.UserUpdate{Email: in.Email, Name: in.Name, Role: in.Role, AvatarURL: in.AvatarURL})
	return u, mapErr(err)
}

// Delete removes an account. An admin may not delete themselves.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id string) error {
	if id == actor.ID {
		return apperr.BadRequest("You cannot delete your own account")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return mapErr(err)
	}
	s.logger.Info("user deleted", slog.String("user_id", id), slog.String("by", actor.ID))
	return nil
}

// Promote moves a user one step up the role hierarchy.
func (s *Service) Promote(ctx context.Context, actor authz.Actor, id string) (models.User, error) {
	return s.shift(ctx, actor, id, models.Role.Promoted, "User already has the highest role")
}

// Demote moves a user one step down the role hierarchy.
func (s *Service) Demote(ctx context.Context, actor authz.Actor, id string) (models.User, error) {
	if id == actor.ID {
		return models.User{}, apperr.BadRequest("You cannot demote yourself")
	}
	return s.shift(ctx, actor, id, models.Role.Demoted, "User already has the lowest role")
}

func (s *Service) shift(ctx context.Context, actor authz.Actor, id string, next func(models.Role) (models.Role, bool), limitMsg string) (models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	role, ok := next(u.Role)
	if !ok {
		return models.User{}, apperr.BadRequest(limitMsg)
	}
	updated, err := s.store.UpdateUser(ctx, id, sqlstore.UserUpdate{Role: &role})
	if err != nil {
		return models.User{}, mapErr(err)
	}
	s.logger.Info("user role changed", slog.String("user_id", id), slog.String("from", string(u.Role)),
		slog.String("to", string(role)), slog.String("by", actor.ID))
	return updated, nil
}
