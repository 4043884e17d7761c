package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"devflow/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, link, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (models.Notification, error) {
	var n models.Notification
	var link sql.NullString
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &link, &n.IsRead, &n.CreatedAt); err != nil {
		return models.Notification{}, err
	}
	n.Link = stringPtr(link)
	return n, nil
}

// CreateNotification persists an unread notification for its recipient.
func (s *Store) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = s.newUUID()
	n.IsRead = false
	n.CreatedAt = s.now()
	_, err := s.conn().ExecContext(ctx, `INSERT INTO notifications(`+notificationColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, nullString(n.Link), n.IsRead, n.CreatedAt)
	if err != nil {
		return models.Notification{}, fmt.Errorf("insert notification: %w", classify(err))
	}
	return n, nil
}

// GetNotification fetches a notification owned by userID.
func (s *Store) GetNotification(ctx context.Context, userID, id string) (models.Notification, error) {
	n, err := scanNotification(s.conn().QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications
        WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a page of the user's notifications, newest first,
// and the size of the filtered set.
func (s *Store) ListNotifications(ctx context.Context, userID string, isRead *bool, limit, offset int) ([]models.Notification, int, error) {
	where := ` WHERE user_id = ?`
	args := []any{userID}
	if isRead != nil {
		where += ` AND is_read = ?`
		args = append(args, *isRead)
	}

	var total int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	limit, offset = pageBounds(limit, offset)
	rows, err := s.conn().QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications`+where+`
        ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	list := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, n)
	}
	return list, total, rows.Err()
}

// CountUnread returns how many unread notifications the user has.
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`, userID, false).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead flags one unread notification of the user as read and
// reports whether anything changed.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.conn().ExecContext(ctx, `UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ? AND is_read = ?`,
		true, id, userID, false)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return affected(res)
}

// MarkAllNotificationsRead flags every unread notification of the user as read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (bool, error) {
	res, err := s.conn().ExecContext(ctx, `UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`,
		true, userID, false)
	if err != nil {
		return false, fmt.Errorf("mark all notifications read: %w", err)
	}
	return affected(res)
}

// DeleteNotification removes one of the user's notifications.
func (s *Store) DeleteNotification(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return affected(res)
}
