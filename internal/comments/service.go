// Package comments stores task comments and enforces who may change them.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devflow/internal/apperr"
	"devflow/internal/authz"
	"devflow/internal/models"
	"devflow/internal/notify"
	"devflow/internal/storage/sqlstore"
)

// Store is the persistence the comment service needs.
type Store interface {
	GetTask(ctx context.Context, id string) (models.Task, error)
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]models.Comment, error)
	UpdateCommentContent(ctx context.Context, id, content string) (models.Comment, error)
	SoftDeleteComment(ctx context.Context, id string) error
}

// Service manages comments on tasks.
type Service struct {
	store  Store
	events notify.Publisher
	logger *slog.Logger
}

// NewService wires the comment service. events may be nil.
func NewService(store Store, events notify.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, events: events, logger: logger}
}

func notFound(err error, resource string) error {
	if errors.Is(err, sqlstore.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Invalid("content", "Content is required")
	}
	return content, nil
}

// Create adds a comment to a task and tells the assignee about it.
func (s *Service) Create(ctx context.Context, actor authz.Actor, taskID, content string) (models.Comment, error) {
	content, err := cleanContent(content)
	if err != nil {
		return models.Comment{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return models.Comment{}, notFound(err, "Task")
	}

	c, err := s.store.CreateComment(ctx, models.Comment{TaskID: taskID, UserID: actor.ID, Content: content})
	if err != nil {
		return models.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	if s.events != nil {
		s.events.Publish(context.WithoutCancel(ctx), notify.CommentAdded{Task: task, Comment: c, AuthorName: c.UserName})
	}
	return c, nil
}

// ListByTask returns the visible comments of a task, oldest first.
func (s *Service) ListByTask(ctx context.Context, taskID string) ([]models.Comment, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, notFound(err, "Task")
	}
	return s.store.ListComments(ctx, taskID)
}

func (s *Service) authorize(ctx context.Context, actor authz.Actor, action authz.Action, id string) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return notFound(err, "Comment")
	}
	return authz.Check(actor, action, authz.Resource{OwnerID: c.UserID})
}

// Update replaces the content of a comment. Only the author or an admin may.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id, content string) (models.Comment, error) {
	content, err := cleanContent(content)
	if err != nil {
		return models.Comment{}, err
	}
	if err := s.authorize(ctx, actor, authz.CommentEdit, id); err != nil {
		return models.Comment{}, err
	}
	c, err := s.store.UpdateCommentContent(ctx, id, content)
	if err != nil {
		return models.Comment{}, notFound(err, "Comment")
	}
	return c, nil
}

// Delete hides a comment. Only the author or an admin may.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.authorize(ctx, actor, authz.CommentDelete, id); err != nil {
		return err
	}
	if err := s.store.SoftDeleteComment(ctx, id); err != nil {
		return notFound(err, "Comment")
	}
	s.logger.Info("comment deleted", slog.String("comment_id", id), slog.String("by", actor.ID))
	return nil
}
