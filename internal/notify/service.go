// Package notify persists notifications and pushes them to connected clients.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

// Store is the persistence the dispatcher needs.
type Store interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	GetNotification(ctx context.Context, userID, id string) (models.Notification, error)
	ListNotifications(ctx context.Context, userID string, isRead *bool, limit, offset int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (bool, error)
	DeleteNotification(ctx context.Context, userID, id string) (bool, error)
}

// Pusher delivers a persisted notification to the recipient's live connections.
type Pusher interface {
	Push(userID string, n models.Notification) error
}

// Service is the notification dispatcher.
type Service struct {
	store  Store
	pusher Pusher
	logger *slog.Logger
}

// NewService wires a dispatcher. pusher may be nil to disable live delivery.
func NewService(store Store, pusher Pusher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, pusher: pusher, logger: logger}
}

// TaskLink is the deep link attached to task notifications.
func TaskLink(taskID string) string {
	return "/tasks/" + taskID
}

// Notify persists a notification and then attempts a live push. Only the
// persistence step can fail the call.
func (s *Service) Notify(ctx context.Context, userID string, typ models.NotificationType, title, message, link string) (models.Notification, error) {
	if !typ.Valid() {
		return models.Notification{}, apperr.Invalid("type", "unknown notification type")
	}
	n := models.Notification{UserID: userID, Type: typ, Title: title, Message: message}
	if link != "" {
		n.Link = &link
	}

	saved, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("persist notification: %w", err)
	}
	s.push(saved)
	return saved, nil
}

func (s *Service) push(n models.Notification) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.Push(n.UserID, n); err != nil {
		if errors.Is(err, ErrNoSubscribers) {
			s.logger.Debug("notification not pushed", slog.String("channel", ChannelKey(n.UserID)), slog.String("reason", err.Error()))
			return
		}
		s.logger.Warn("notification push failed", slog.String("channel", ChannelKey(n.UserID)), slog.String("error", err.Error()))
	}
}

// NotifyTaskAssigned tells userID they were assigned task.
func (s *Service) NotifyTaskAssigned(ctx context.Context, userID string, task models.Task) (models.Notification, error) {
	return s.Notify(ctx, userID, models.NotificationTaskAssigned,
		"New Task Assigned",
		fmt.Sprintf("You have been assigned to task: %s", task.Title),
		TaskLink(task.ID))
}

// NotifyTaskStatus tells userID that task moved to status.
func (s *Service) NotifyTaskStatus(ctx context.Context, userID string, task models.Task, status models.TaskStatus) (models.Notification, error) {
	return s.Notify(ctx, userID, models.NotificationTaskUpdated,
		"Task Status Updated",
		fmt.Sprintf("Task \"%s\" status changed to %s", task.Title, status),
		TaskLink(task.ID))
}

// NotifyCommentAdded tells userID that commenter wrote on task.
func (s *Service) NotifyCommentAdded(ctx context.Context, userID string, task models.Task, commenter string) (models.Notification, error) {
	return s.Notify(ctx, userID, models.NotificationCommentAdded,
		"New Comment",
		fmt.Sprintf("%s commented on task: %s", commenter, task.Title),
		TaskLink(task.ID))
}

// HandleEvent turns domain events into notifications. Subscribe it to a Bus.
func (s *Service) HandleEvent(ctx context.Context, e Event) error {
	switch ev := e.(type) {
	case TaskAssigned:
		if ev.AssigneeID == "" {
			return nil
		}
		_, err := s.NotifyTaskAssigned(ctx, ev.AssigneeID, ev.Task)
		return err
	case TaskStatusChanged:
		if ev.Task.AssigneeID == nil {
			return nil
		}
		_, err := s.NotifyTaskStatus(ctx, *ev.Task.AssigneeID, ev.Task, ev.To)
		return err
	case CommentAdded:
		if ev.Task.AssigneeID == nil || *ev.Task.AssigneeID == ev.Comment.UserID {
			return nil
		}
		author := strings.TrimSpace(ev.AuthorName)
		if author == "" {
			author = "Someone"
		}
		_, err := s.NotifyCommentAdded(ctx, *ev.Task.AssigneeID, ev.Task, author)
		return err
	}
	return nil
}

// List returns one page of the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, isRead *bool, page, limit int) ([]models.Notification, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, models.DefaultPageSize, models.MaxPageSize)
	p := models.NewPagination(page, limit, 0)
	list, total, err := s.store.ListNotifications(ctx, userID, isRead, limit, p.Offset())
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return list, models.NewPagination(page, limit, total), nil
}

// Get returns one of the user's notifications.
func (s *Service) Get(ctx context.Context, userID, id string) (models.Notification, error) {
	n, err := s.store.GetNotification(ctx, userID, id)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return models.Notification{}, apperr.NotFound("Notification")
	}
	return n, err
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead flags a notification as read. It reports false when the
// notification is missing, belongs to someone else, or was already read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	return s.store.MarkNotificationRead(ctx, userID, id)
}

// MarkAllRead flags every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (bool, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

// Delete removes one of the user's notifications.
func (s *Service) Delete(ctx context.Context, userID, id string) (bool, error) {
	return s.store.DeleteNotification(ctx, userID, id)
}
