// Package tasks implements the task engine: creation, listing, field
// updates, guarded status transitions and assignment.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/notify"
	"devflow/internal/storage/sqlstore"
)

// maxTransitionAttempts bounds the compare-and-swap retries of ChangeStatus.
const maxTransitionAttempts = 3

// Store is the persistence the engine needs.
type Store interface {
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context, f sqlstore.TaskFilter) ([]models.Task, int, error)
	PatchTask(ctx context.Context, id string, patch sqlstore.TaskPatch, changedBy string) (models.Task, error)
	TransitionTask(ctx context.Context, id string, from, to models.TaskStatus, changedBy string) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTaskHistory(ctx context.Context, taskID string) ([]models.TaskStatusHistory, error)
	GetSprint(ctx context.Context, id string) (models.Sprint, error)
	GetUser(ctx context.Context, id string) (models.User, error)
}

// Service is the task engine.
type Service struct {
	store  Store
	events notify.Publisher
	logger *slog.Logger
}

// NewService wires the engine. events may be nil when nothing listens.
func NewService(store Store, events notify.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, events: events, logger: logger}
}

// CreateInput carries the fields a client may set on a new task. There is no
// status field: new tasks always start in todo.
type CreateInput struct {
	SprintID       string
	Title          string
	Description    *string
	Priority       models.Priority
	StoryPoints    *int
	AssigneeID     *string
	GithubPRURL    *string
	GithubPRStatus *models.PRStatus
}

// ListQuery filters and pages List.
type ListQuery struct {
	SprintID   string
	Status     models.TaskStatus
	Priority   models.Priority
	AssigneeID string
	Search     string
	SortBy     string
	Page       int
	Limit      int
}

// publish runs after the write committed, so a caller hanging up must not
// cancel the notification insert.
func (s *Service) publish(ctx context.Context, e notify.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(context.WithoutCancel(ctx), e)
}

func notFound(err error, resource string) error {
	if errors.Is(err, sqlstore.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

// Create stores a new todo task with its initial history entry and announces
// the assignment when an assignee was given.
func (s *Service) Create(ctx context.Context, in CreateInput, creatorID string) (models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.Task{}, apperr.Invalid("title", "Title is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if err := validateCommon(&in.Priority, in.StoryPoints, in.GithubPRStatus); err != nil {
		return models.Task{}, err
	}
	if in.AssigneeID != nil && *in.AssigneeID == "" {
		in.AssigneeID = nil
	}

	if _, err := s.store.GetSprint(ctx, in.SprintID); err != nil {
		return models.Task{}, notFound(err, "Sprint")
	}
	if in.AssigneeID != nil {
		if _, err := s.store.GetUser(ctx, *in.AssigneeID); err != nil {
			return models.Task{}, notFound(err, "Assignee")
		}
	}

	task, err := s.store.CreateTask(ctx, models.Task{
		SprintID:       in.SprintID,
		Title:          in.Title,
		Description:    in.Description,
		Priority:       in.Priority,
		StoryPoints:    in.StoryPoints,
		AssigneeID:     in.AssigneeID,
		CreatorID:      creatorID,
		GithubPRURL:    in.GithubPRURL,
		GithubPRStatus: in.GithubPRStatus,
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("task created", slog.String("task_id", task.ID), slog.String("sprint_id", task.SprintID))
	if task.AssigneeID != nil {
		s.publish(ctx, notify.TaskAssigned{Task: task, AssigneeID: *task.AssigneeID, ActorID: creatorID})
	}
	return task, nil
}

func validateCommon(priority *models.Priority, points *int, prStatus *models.PRStatus) error {
	details := map[string][]string{}
	if priority != nil && !priority.Valid() {
		details["priority"] = append(details["priority"], "Priority must be one of low, medium, high, critical")
	}
	if points != nil && *points < 0 {
		details["story_points"] = append(details["story_points"], "Story points must not be negative")
	}
	if prStatus != nil && !prStatus.Valid() {
		details["github_pr_status"] = append(details["github_pr_status"], "PR status must be one of open, merged, closed")
	}
	if len(details) > 0 {
		return apperr.Validation(details)
	}
	return nil
}

// List returns one page of tasks and the pagination block for the whole
// filtered set.
func (s *Service) List(ctx context.Context, q ListQuery) ([]models.Task, models.Pagination, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, models.Pagination{}, apperr.Invalid("status", "Unknown status")
	}
	if q.Priority != "" && !q.Priority.Valid() {
		return nil, models.Pagination{}, apperr.Invalid("priority", "Unknown priority")
	}
	page, limit := models.NormalizePage(q.Page, q.Limit, models.DefaultPageSize, models.MaxPageSize)
	p := models.NewPagination(page, limit, 0)

	list, total, err := s.store.ListTasks(ctx, sqlstore.TaskFilter{
		SprintID:   q.SprintID,
		Status:     q.Status,
		Priority:   q.Priority,
		AssigneeID: q.AssigneeID,
		Search:     q.Search,
		SortBy:     q.SortBy,
		Limit:      limit,
		Offset:     p.Offset(),
	})
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("list tasks: %w", err)
	}
	return list, models.NewPagination(page, limit, total), nil
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id string) (models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, notFound(err, "Task")
	}
	return task, nil
}

// UpdateFields applies a partial update. A status in the patch overwrites the
// stored one without consulting the transition table; the change is still
// recorded in the history.
func (s *Service) UpdateFields(ctx context.Context, id string, patch sqlstore.TaskPatch, actorID string) (models.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Task{}, apperr.Invalid("title", "Title must not be empty")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return models.Task{}, apperr.Invalid("status", "Status must be one of todo, in_progress, in_review, done")
	}
	if err := validateCommon(patch.Priority, patch.StoryPoints, patch.GithubPRStatus); err != nil {
		return models.Task{}, err
	}

	before, err := s.store.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, notFound(err, "Task")
	}
	if patch.AssigneeID != nil && *patch.AssigneeID != "" {
		if _, err := s.store.GetUser(ctx, *patch.AssigneeID); err != nil {
			return models.Task{}, notFound(err, "Assignee")
		}
	}

	task, err := s.store.PatchTask(ctx, id, patch, actorID)
	if err != nil {
		return models.Task{}, notFound(err, "Task")
	}
	if task.AssigneeID != nil && (before.AssigneeID == nil || *before.AssigneeID != *task.AssigneeID) {
		s.publish(ctx, notify.TaskAssigned{Task: task, AssigneeID: *task.AssigneeID, ActorID: actorID})
	}
	return task, nil
}

// ChangeStatus moves a task along the transition table. The check and the
// write are a compare-and-swap on the stored status; a concurrent change is
// retried against the fresh status before giving up with a conflict.
func (s *Service) ChangeStatus(ctx context.Context, id string, to models.TaskStatus, actorID string) (models.Task, error) {
	if !to.Valid() {
		return models.Task{}, apperr.Invalid("status", "Status must be one of todo, in_progress, in_review, done")
	}

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		current, err := s.store.GetTask(ctx, id)
		if err != nil {
			return models.Task{}, notFound(err, "Task")
		}
		if !models.CanTransition(current.Status, to) {
			return models.Task{}, apperr.InvalidTransition(string(current.Status), string(to))
		}

		task, err := s.store.TransitionTask(ctx, id, current.Status, to, actorID)
		if errors.Is(err, sqlstore.ErrStale) {
			s.logger.Debug("status changed concurrently, retrying", slog.String("task_id", id), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return models.Task{}, notFound(err, "Task")
		}

		s.publish(ctx, notify.TaskStatusChanged{Task: task, From: current.Status, To: to, ActorID: actorID})
		return task, nil
	}
	return models.Task{}, apperr.Conflict("Task status was changed concurrently, please retry")
}

// Assign overwrites the assignee and announces it to the new assignee.
func (s *Service) Assign(ctx context.Context, id, assigneeID, actorID string) (models.Task, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return models.Task{}, apperr.Invalid("assignee_id", "Assignee is required")
	}
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return models.Task{}, notFound(err, "Task")
	}
	if _, err := s.store.GetUser(ctx, assigneeID); err != nil {
		return models.Task{}, notFound(err, "Assignee")
	}

	task, err := s.store.PatchTask(ctx, id, sqlstore.TaskPatch{AssigneeID: &assigneeID}, actorID)
	if err != nil {
		return models.Task{}, notFound(err, "Task")
	}
	s.publish(ctx, notify.TaskAssigned{Task: task, AssigneeID: assigneeID, ActorID: actorID})
	return task, nil
}

// Delete removes a task. Its history and comments go with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return notFound(err, "Task")
	}
	return nil
}

// History returns the status history of a task, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]models.TaskStatusHistory, error) {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return nil, notFound(err, "Task")
	}
	return s.store.ListTaskHistory(ctx, id)
}
