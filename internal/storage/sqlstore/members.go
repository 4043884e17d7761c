package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"devflow/internal/models"
)

// AddMember inserts a (team, user) pair. An existing pair returns ErrDuplicate.
func (s *Store) AddMember(ctx context.Context, teamID, userID string, role models.MemberRole) (models.TeamMember, error) {
	m := models.TeamMember{TeamID: teamID, UserID: userID, Role: role, JoinedAt: s.now()}
	_, err := s.conn().ExecContext(ctx, `INSERT INTO team_members(team_id, user_id, role, joined_at) VALUES(?, ?, ?, ?)`,
		m.TeamID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return models.TeamMember{}, fmt.Errorf("insert team member: %w", classify(err))
	}
	return m, nil
}

// IsMember reports whether the user belongs to the team.
func (s *Store) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	var n int
	err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check team member: %w", err)
	}
	return n > 0, nil
}

// RemoveMember deletes a (team, user) pair and reports whether a row was removed.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("delete team member: %w", err)
	}
	return affected(res)
}

// ListMembers returns the members of a team with their user details, latest joiners first.
func (s *Store) ListMembers(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	rows, err := s.conn().QueryContext(ctx, `SELECT tm.team_id, tm.user_id, tm.role, tm.joined_at, u.name, u.email, u.avatar_url
        FROM team_members tm
        JOIN users u ON tm.user_id = u.id
        WHERE tm.team_id = ?
        ORDER BY tm.joined_at DESC, u.name`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	members := []models.TeamMember{}
	for rows.Next() {
		var m models.TeamMember
		var avatar sql.NullString
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt, &m.Name, &m.Email, &avatar); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		m.AvatarURL = stringPtr(avatar)
		members = append(members, m)
	}
	return members, rows.Err()
}
