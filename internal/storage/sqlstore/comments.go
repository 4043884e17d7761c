package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"devflow/internal/models"
)

const commentColumns = `c.id, c.task_id, c.user_id, c.content, c.is_edited, c.is_deleted, c.created_at, c.updated_at, u.name, u.avatar_url`

func scanComment(row interface{ Scan(...any) error }) (models.Comment, error) {
	var c models.Comment
	var name, avatar sql.NullString
	if err := row.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &c.IsEdited, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt, &name, &avatar); err != nil {
		return models.Comment{}, err
	}
	c.UserName = name.String
	c.UserAvatar = stringPtr(avatar)
	return c, nil
}

// CreateComment stores a new comment on a task.
func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if strings.TrimSpace(c.Content) == "" {
		return models.Comment{}, fmt.Errorf("comment content must not be empty")
	}
	now := s.now()
	c.ID = s.newUUID()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.conn().ExecContext(ctx, `INSERT INTO comments(id, task_id, user_id, content, is_edited, is_deleted, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?)`, c.ID, c.TaskID, c.UserID, c.Content, false, false, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", classify(err))
	}
	return s.GetComment(ctx, c.ID)
}

// GetComment fetches a comment that has not been deleted.
func (s *Store) GetComment(ctx context.Context, id string) (models.Comment, error) {
	c, err := scanComment(s.conn().QueryRowContext(ctx, `SELECT `+commentColumns+`
        FROM comments c LEFT JOIN users u ON c.user_id = u.id
        WHERE c.id = ? AND c.is_deleted = ?`, id, false))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// ListComments returns the visible comments of a task in conversation order.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	rows, err := s.conn().QueryContext(ctx, `SELECT `+commentColumns+`
        FROM comments c LEFT JOIN users u ON c.user_id = u.id
        WHERE c.task_id = ? AND c.is_deleted = ?
        ORDER BY c.created_at ASC, c.id`, taskID, false)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateCommentContent replaces the content and marks the comment edited.
func (s *Store) UpdateCommentContent(ctx context.Context, id, content string) (models.Comment, error) {
	res, err := s.conn().ExecContext(ctx, `UPDATE comments SET content = ?, is_edited = ?, updated_at = ?
        WHERE id = ? AND is_deleted = ?`, content, true, s.now(), id, false)
	if err != nil {
		return models.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	if err := affectedOrNotFound(res, "comment "+id); err != nil {
		return models.Comment{}, err
	}
	return s.GetComment(ctx, id)
}

// SoftDeleteComment hides a comment from listings without removing the row.
func (s *Store) SoftDeleteComment(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `UPDATE comments SET is_deleted = ?, updated_at = ? WHERE id = ? AND is_deleted = ?`,
		true, s.now(), id, false)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return affectedOrNotFound(res, "comment "+id)
}
