package sqlstore

import (
	"context"
	"errors"
	"testing"

	"devflow/internal/models"
)

func mustTask(t *testing.T, s *Store, f fixture, title string, mutate func(*models.Task)) models.Task {
	t.Helper()
	task := models.Task{SprintID: f.sprint.ID, Title: title, Priority: models.PriorityMedium, CreatorID: f.user.ID}
	if mutate != nil {
		mutate(&task)
	}
	created, err := s.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return created
}

func TestCreateTaskForcesTodoAndWritesHistory(t *testing.T) {
	s := newTestStore(t)
	f := mustHierarchy(t, s)
	task := mustTask(t, s, f, "Fix bug", func(task *models.Task) { task.Status = models.StatusDone })

	if task.Status != models.StatusTodo {
		t.Fatalf("status = %s, want todo", task.Status)
	}
	history, err := s.ListTaskHistory(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(history))
	}
	if history[0].FromStatus != nil || history[0].ToStatus != models.StatusTodo || history[0].ChangedBy != f.user.ID {
		t.Fatalf("unexpected initial history row %+v", history[0])
	}
}

func TestTransitionTaskCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	task := mustTask(t, s, f, "Fix bug", nil)

	updated, err := s.TransitionTask(ctx, task.ID, models.StatusTodo, models.StatusInProgress, f.user.ID)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != models.StatusInProgress {
		t.Fatalf("status = %s", updated.Status)
	}

	if _, err := s.TransitionTask(ctx, task.ID, models.StatusTodo, models.StatusInProgress, f.user.ID); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if _, err := s.TransitionTask(ctx, "missing", models.StatusTodo, models.StatusInProgress, f.user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	history, err := s.ListTaskHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}
	if history[1].FromStatus == nil || *history[1].FromStatus != models.StatusTodo || history[1].ToStatus != models.StatusInProgress {
		t.Fatalf("unexpected history row %+v", history[1])
	}
}

func TestPatchTaskRecordsStatusChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	task := mustTask(t, s, f, "Fix bug", nil)

	done := models.StatusDone
	title := "Fix the bug"
	updated, err := s.PatchTask(ctx, task.ID, TaskPatch{Status: &done, Title: &title}, f.user.ID)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if updated.Status != models.StatusDone || updated.Title != title {
		t.Fatalf("patched task = %+v", updated)
	}

	// Same status again appends nothing.
	if _, err := s.PatchTask(ctx, task.ID, TaskPatch{Status: &done}, f.user.ID); err != nil {
		t.Fatalf("patch: %v", err)
	}
	history, _ := s.ListTaskHistory(ctx, task.ID)
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}

	if _, err := s.PatchTask(ctx, "missing", TaskPatch{Title: &title}, f.user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTasksFiltersAndCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	dev := mustUser(t, s, "dev@example.com")

	for i, title := range []string{"Login page", "Logout button", "Billing export", "Audit LOGIN events", "Refactor"} {
		priority := models.PriorityLow
		if i%2 == 0 {
			priority = models.PriorityHigh
		}
		mustTask(t, s, f, title, func(task *models.Task) {
			task.Priority = priority
			if i < 2 {
				task.AssigneeID = &dev.ID
			}
		})
	}

	tests := []struct {
		name   string
		filter TaskFilter
		total  int
		page   int
	}{
		{"all", TaskFilter{SprintID: f.sprint.ID}, 5, 5},
		{"search is case-insensitive", TaskFilter{Search: "login"}, 2, 2},
		{"conjunctive", TaskFilter{Search: "log", Priority: models.PriorityHigh}, 1, 1},
		{"assignee", TaskFilter{AssigneeID: dev.ID}, 2, 2},
		{"total ignores pagination", TaskFilter{Limit: 2, Offset: 4}, 5, 1},
		{"status", TaskFilter{Status: models.StatusDone}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, total, err := s.ListTasks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.total || len(tasks) != tt.page {
				t.Fatalf("total=%d page=%d, want %d/%d", total, len(tasks), tt.total, tt.page)
			}
		})
	}
}

func TestListTasksSearchFoldsNonASCII(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	mustTask(t, s, f, "ÜBER CAFÉ bug", nil)
	mustTask(t, s, f, "Straße audit", nil)

	tests := []struct {
		search string
		total  int
	}{
		{"café", 1},
		{"über", 1},
		{"CAFÉ", 1},
		{"ÜBER CAFÉ", 1},
		{"bug", 1},
		{"STRASSE", 0},
		{"straße", 1},
		{"é", 1},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			_, total, err := s.ListTasks(ctx, TaskFilter{Search: tt.search})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.total {
				t.Fatalf("search %q matched %d, want %d", tt.search, total, tt.total)
			}
		})
	}
}

func TestListTasksDefaultSortNewestFirst(t *testing.T) {
	s := newTestStore(t)
	f := mustHierarchy(t, s)
	mustTask(t, s, f, "first", nil)
	mustTask(t, s, f, "second", nil)

	tasks, _, err := s.ListTasks(context.Background(), TaskFilter{SortBy: "not-a-column"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tasks[0].Title != "second" || tasks[1].Title != "first" {
		t.Fatalf("order = %s, %s", tasks[0].Title, tasks[1].Title)
	}
}

func TestCountSprintTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	a := mustTask(t, s, f, "a", nil)
	mustTask(t, s, f, "b", nil)
	done := models.StatusDone
	if _, err := s.PatchTask(ctx, a.ID, TaskPatch{Status: &done}, f.user.ID); err != nil {
		t.Fatalf("patch: %v", err)
	}

	total, completed, err := s.CountSprintTasks(ctx, f.sprint.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 || completed != 1 {
		t.Fatalf("total=%d completed=%d", total, completed)
	}
}

func TestDeletingAssigneeClearsTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	dev := mustUser(t, s, "dev@example.com")
	task := mustTask(t, s, f, "a", func(task *models.Task) { task.AssigneeID = &dev.ID })

	if err := s.DeleteUser(ctx, dev.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.AssigneeID != nil {
		t.Fatalf("assignee = %v, want nil", *got.AssigneeID)
	}
}
