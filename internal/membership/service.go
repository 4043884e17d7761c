// Package membership manages which users belong to which teams.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

// Store is the persistence membership needs.
type Store interface {
	GetTeam(ctx context.Context, id string) (models.Team, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
	AddMember(ctx context.Context, teamID, userID string, role models.MemberRole) (models.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID string) (bool, error)
	ListMembers(ctx context.Context, teamID string) ([]models.TeamMember, error)
	ListUsersNotInTeam(ctx context.Context, teamID string) ([]models.User, error)
}

// Service manages team membership.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService wires the membership service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) requireTeam(ctx context.Context, teamID string) error {
	if _, err := s.store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return apperr.NotFound("Team")
		}
		return err
	}
	return nil
}

// AddMember puts a user on a team. The team and the user must exist and the
// pair must be new.
func (s *Service) AddMember(ctx context.Context, teamID, userID string, role models.MemberRole) (models.TeamMember, error) {
	if role == "" {
		role = models.MemberDeveloper
	}
	if !role.Valid() {
		return models.TeamMember{}, apperr.Invalid("role", "Role must be team_lead or developer")
	}
	if err := s.requireTeam(ctx, teamID); err != nil {
		return models.TeamMember{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return models.TeamMember{}, apperr.NotFound("User")
	}
	if err != nil {
		return models.TeamMember{}, err
	}

	exists, err := s.store.IsMember(ctx, teamID, userID)
	if err != nil {
		return models.TeamMember{}, err
	}
	if exists {
		return models.TeamMember{}, apperr.Conflict("User is already a team member")
	}

	m, err := s.store.AddMember(ctx, teamID, userID, role)
	if errors.Is(err, sqlstore.ErrDuplicate) {
		return models.TeamMember{}, apperr.Conflict("User is already a team member")
	}
	if err != nil {
		return models.TeamMember{}, fmt.Errorf("add member: %w", err)
	}
	m.Name, m.Email, m.AvatarURL = user.Name, user.Email, user.AvatarURL

	s.logger.Info("team member added", slog.String("team_id", teamID), slog.String("user_id", userID), slog.String("role", string(role)))
	return m, nil
}

// RemoveMember reports whether the user was on the team and is now removed.
func (s *Service) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	return s.store.RemoveMember(ctx, teamID, userID)
}

// ListMembers returns the members of an existing team.
func (s *Service) ListMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, teamID)
}

// AvailableUsers lists users who could still join the team.
func (s *Service) AvailableUsers(ctx context.Context, teamID string) ([]models.User, error) {
	if err := s.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.store.ListUsersNotInTeam(ctx, teamID)
}
