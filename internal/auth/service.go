// Package auth authenticates users and issues their tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"devflow/internal/apperr"
	"devflow/internal/authz"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

// Store is the persistence authentication needs.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Session is returned by signup, login and refresh.
type Session struct {
	User models.User `json:"user"`
	TokenPair
}

// SignupInput is the self-service registration form.
type SignupInput struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	Name      string  `json:"name" validate:"required,min=1,max=255"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// Service handles signup, login and token refresh.
type Service struct {
	store    Store
	tokens   *Issuer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService wires the auth service.
func NewService(store Store, tokens *Issuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	apperr.UseJSONNames(v)
	return &Service{store: store, tokens: tokens, validate: v, logger: logger}
}

func (s *Service) session(u models.User) (Session, error) {
	pair, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, TokenPair: pair}, nil
}

// Signup registers a developer account and signs the caller in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		if verr := apperr.FromValidation(err); verr != nil {
			return Session{}, verr
		}
		return Session{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return Session{}, apperr.Conflict("User with this email already exists")
	} else if !errors.Is(err, sqlstore.ErrNotFound) {
		return Session{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	u, err := s.store.CreateUser(ctx, models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         models.RoleDeveloper,
		AvatarURL:    in.AvatarURL,
	})
	if errors.Is(err, sqlstore.ErrDuplicate) {
		return Session{}, apperr.Conflict("User with this email already exists")
	}
	if err != nil {
		return Session{}, fmt.Errorf("signup: %w", err)
	}

	s.logger.Info("user signed up", slog.String("user_id", u.ID))
	return s.session(u)
}

// Login checks the credentials and signs the caller in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return Session{}, apperr.InvalidCredentials()
	}
	if err != nil {
		return Session{}, err
	}
	ok, err := CheckPassword(u.PasswordHash, password)
	if err != nil {
		s.logger.Warn("password check failed", slog.String("user_id", u.ID), slog.String("error", err.Error()))
		return Session{}, apperr.InvalidCredentials()
	}
	if !ok {
		return Session{}, apperr.InvalidCredentials()
	}
	return s.session(u)
}

// Refresh exchanges a refresh token for a new pair. The user must still exist.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return Session{}, apperr.Unauthorized("Invalid or expired refresh token")
	}
	u, err := s.store.GetUser(ctx, claims.Subject)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return Session{}, apperr.Unauthorized("Invalid or expired refresh token")
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(u)
}

// Me returns the caller's account.
func (s *Service) Me(ctx context.Context, userID string) (models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return models.User{}, apperr.NotFound("User")
	}
	return u, err
}

// Authenticate verifies an access token and returns the actor it names.
func (s *Service) Authenticate(token string) (authz.Actor, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return authz.Actor{}, apperr.Unauthorized("Invalid or expired token")
	}
	return authz.Actor{ID: claims.Subject, Role: claims.Role}, nil
}
