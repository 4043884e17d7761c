package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"devflow/internal/models"
)

const userColumns = `id, email, password_hash, name, role, avatar_url, created_at, updated_at`

// UserUpdate holds the user fields to overwrite; nil fields are kept.
type UserUpdate struct {
	Email        *string
	Name         *string
	Role         *models.Role
	AvatarURL    *string
	PasswordHash *string
}

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var avatar sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return models.User{}, err
	}
	u.AvatarURL = stringPtr(avatar)
	return u, nil
}

// CreateUser persists a new account. Email uniqueness violations return ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	now := s.now()
	u.ID = s.newUUID()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.conn().ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, strings.TrimSpace(u.Name), u.Role, nullString(u.AvatarURL), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", classify(err))
	}
	return s.GetUser(ctx, u.ID)
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.conn().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by case-insensitive email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.conn().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns a page of users ordered by creation date, newest first.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	limit, offset = pageBounds(limit, offset)

	var total int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.conn().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// ListUsersNotInTeam returns users that are not members of the team, by name.
func (s *Store) ListUsersNotInTeam(ctx context.Context, teamID string) ([]models.User, error) {
	rows, err := s.conn().QueryContext(ctx, `SELECT `+userColumns+` FROM users
        WHERE id NOT IN (SELECT user_id FROM team_members WHERE team_id = ?)
        ORDER BY name, id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list available users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser overwrites the supplied fields of a user.
func (s *Store) UpdateUser(ctx context.Context, id string, upd UserUpdate) (models.User, error) {
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if upd.Email != nil {
		current.Email = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		current.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Role != nil {
		current.Role = *upd.Role
	}
	if upd.AvatarURL != nil {
		current.AvatarURL = upd.AvatarURL
	}
	if upd.PasswordHash != nil {
		current.PasswordHash = *upd.PasswordHash
	}

	res, err := s.conn().ExecContext(ctx, `UPDATE users SET email = ?, name = ?, role = ?, avatar_url = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		current.Email, current.Name, current.Role, nullString(current.AvatarURL), current.PasswordHash, s.now(), id)
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", classify(err))
	}
	if err := affectedOrNotFound(res, "user "+id); err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes a user by id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", classify(err))
	}
	return affectedOrNotFound(res, "user "+id)
}
