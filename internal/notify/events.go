package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"devflow/internal/models"
)

// Event is something the task and comment services announce after a write.
type Event interface {
	EventName() string
}

// TaskAssigned is published when a task gains an assignee.
type TaskAssigned struct {
	Task       models.Task
	AssigneeID string
	ActorID    string
}

// TaskStatusChanged is published after a status change has been committed.
type TaskStatusChanged struct {
	Task    models.Task
	From    models.TaskStatus
	To      models.TaskStatus
	ActorID string
}

// CommentAdded is published after a comment has been stored.
type CommentAdded struct {
	Task       models.Task
	Comment    models.Comment
	AuthorName string
}

func (TaskAssigned) EventName() string      { return "task.assigned" }
func (TaskStatusChanged) EventName() string { return "task.status_changed" }
func (CommentAdded) EventName() string      { return "comment.added" }

// Handler consumes events from a Bus.
type Handler func(ctx context.Context, e Event) error

// Publisher is the side of the Bus the domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Bus fans events out to subscribers synchronously. A failing subscriber is
// logged and never affects the publisher or the other subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for every subsequent event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.deliver(ctx, h, e); err != nil {
			b.logger.Warn("event subscriber failed", slog.String("event", e.EventName()), slog.String("error", err.Error()))
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return h(ctx, e)
}
