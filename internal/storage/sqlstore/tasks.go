package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"devflow/internal/models"
)

const taskColumns = `id, sprint_id, title, description, status, priority, story_points, assignee_id, creator_id, github_pr_url, github_pr_status, created_at, updated_at`

// TaskFilter narrows ListTasks. Every non-empty field must match.
type TaskFilter struct {
	SprintID   string
	Status     models.TaskStatus
	Priority   models.Priority
	AssigneeID string
	Search     string
	SortBy     string
	Limit      int
	Offset     int
}

// TaskPatch holds the task fields to overwrite; nil fields are kept. An empty
// AssigneeID clears the assignee.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *models.TaskStatus
	Priority       *models.Priority
	StoryPoints    *int
	AssigneeID     *string
	GithubPRURL    *string
	GithubPRStatus *models.PRStatus
}

// taskSortColumns whitelists the orderings ListTasks accepts.
var taskSortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"title":        "title",
	"story_points": "COALESCE(story_points, 0)",
	"status":       "CASE status WHEN 'todo' THEN 1 WHEN 'in_progress' THEN 2 WHEN 'in_review' THEN 3 ELSE 4 END",
	"priority":     "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 4 END",
}

// TaskSortFields lists the accepted values of TaskFilter.SortBy.
func TaskSortFields() []string {
	return []string{"created_at", "updated_at", "title", "story_points", "status", "priority"}
}

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	var desc, assignee, prURL, prStatus sql.NullString
	var points sql.NullInt64
	if err := row.Scan(&t.ID, &t.SprintID, &t.Title, &desc, &t.Status, &t.Priority, &points, &assignee,
		&t.CreatorID, &prURL, &prStatus, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.Description = stringPtr(desc)
	t.AssigneeID = stringPtr(assignee)
	t.GithubPRURL = stringPtr(prURL)
	if points.Valid {
		p := int(points.Int64)
		t.StoryPoints = &p
	}
	if prStatus.Valid {
		st := models.PRStatus(prStatus.String)
		t.GithubPRStatus = &st
	}
	return t, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullPRStatus(v *models.PRStatus) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

// CreateTask inserts a task in the todo column and records its initial history
// entry in the same transaction.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	now := s.now()
	t.ID = s.newUUID()
	t.Status = models.StatusTodo
	t.CreatedAt, t.UpdatedAt = now, now

	var created models.Task
	err := s.inTx(ctx, func(q boundQueryer) error {
		_, err := q.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.SprintID, strings.TrimSpace(t.Title), nullString(t.Description), t.Status, t.Priority,
			nullInt(t.StoryPoints), nullString(t.AssigneeID), t.CreatorID, nullString(t.GithubPRURL),
			nullPRStatus(t.GithubPRStatus), t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert task: %w", classify(err))
		}
		if err := s.appendHistory(ctx, q, t.ID, nil, models.StatusTodo, t.CreatorID); err != nil {
			return err
		}
		created, err = getTask(ctx, q, t.ID)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return created, nil
}

func getTask(ctx context.Context, q boundQueryer, id string) (models.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	return getTask(ctx, s.conn(), id)
}

// ListTasks returns one page of tasks matching the filter and the size of the
// whole filtered set.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.SprintID != "" {
		where += ` AND sprint_id = ?`
		args = append(args, f.SprintID)
	}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		where += ` AND priority = ?`
		args = append(args, f.Priority)
	}
	if f.AssigneeID != "" {
		where += ` AND assignee_id = ?`
		args = append(args, f.AssigneeID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		where += ` AND (` + s.lower("title") + ` LIKE ? ESCAPE '\' OR ` + s.lower("COALESCE(description, '')") + ` LIKE ? ESCAPE '\')`
		pattern := likePattern(search)
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	order, ok := taskSortColumns[f.SortBy]
	if !ok {
		order = taskSortColumns["created_at"]
	}
	if f.SortBy == "title" {
		order = s.lower(order)
	}
	limit, offset := pageBounds(f.Limit, f.Offset)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY ` + order + ` DESC, created_at DESC, id LIMIT ? OFFSET ?`

	rows, err := s.conn().QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

// PatchTask overwrites the supplied fields. A status that differs from the
// stored one is recorded in the history before the row is updated. The
// transition table is not consulted.
func (s *Store) PatchTask(ctx context.Context, id string, patch TaskPatch, changedBy string) (models.Task, error) {
	var updated models.Task
	err := s.inTx(ctx, func(q boundQueryer) error {
		current, err := getTask(ctx, q, id)
		if err != nil {
			return err
		}

		if patch.Status != nil && *patch.Status != current.Status {
			if err := s.appendHistory(ctx, q, id, current.Status.Ptr(), *patch.Status, changedBy); err != nil {
				return err
			}
			current.Status = *patch.Status
		}
		if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
			current.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			current.Description = patch.Description
		}
		if patch.Priority != nil {
			current.Priority = *patch.Priority
		}
		if patch.StoryPoints != nil {
			current.StoryPoints = patch.StoryPoints
		}
		if patch.AssigneeID != nil {
			current.AssigneeID = patch.AssigneeID
			if *patch.AssigneeID == "" {
				current.AssigneeID = nil
			}
		}
		if patch.GithubPRURL != nil {
			current.GithubPRURL = patch.GithubPRURL
		}
		if patch.GithubPRStatus != nil {
			current.GithubPRStatus = patch.GithubPRStatus
		}

		_, err = q.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, story_points = ?,
            assignee_id = ?, github_pr_url = ?, github_pr_status = ?, updated_at = ? WHERE id = ?`,
			current.Title, nullString(current.Description), current.Status, current.Priority, nullInt(current.StoryPoints),
			nullString(current.AssigneeID), nullString(current.GithubPRURL), nullPRStatus(current.GithubPRStatus), s.now(), id)
		if err != nil {
			return fmt.Errorf("update task: %w", classify(err))
		}
		updated, err = getTask(ctx, q, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

// TransitionTask moves a task from one status to another with a
// compare-and-swap on the status column and records the change in the same
// transaction. ErrStale means the stored status was no longer from.
func (s *Store) TransitionTask(ctx context.Context, id string, from, to models.TaskStatus, changedBy string) (models.Task, error) {
	var updated models.Task
	err := s.inTx(ctx, func(q boundQueryer) error {
		res, err := q.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, to, s.now(), id, from)
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		swapped, err := affected(res)
		if err != nil {
			return err
		}
		if !swapped {
			if _, err := getTask(ctx, q, id); err != nil {
				return err
			}
			return fmt.Errorf("task %s: %w", id, ErrStale)
		}
		if err := s.appendHistory(ctx, q, id, from.Ptr(), to, changedBy); err != nil {
			return err
		}
		updated, err = getTask(ctx, q, id)
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes a task by id. History and comments go with it.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affectedOrNotFound(res, "task "+id)
}

func (s *Store) appendHistory(ctx context.Context, q boundQueryer, taskID string, from *models.TaskStatus, to models.TaskStatus, changedBy string) error {
	var fromCol sql.NullString
	if from != nil {
		fromCol = sql.NullString{String: string(*from), Valid: true}
	}
	_, err := q.ExecContext(ctx, `INSERT INTO task_status_history(id, task_id, from_status, to_status, changed_by, changed_at, seq)
        VALUES(?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM task_status_history WHERE task_id = ?))`,
		s.newUUID(), taskID, fromCol, to, changedBy, s.now(), taskID)
	if err != nil {
		return fmt.Errorf("insert status history: %w", classify(err))
	}
	return nil
}

// ListTaskHistory returns the status history of a task, oldest first.
func (s *Store) ListTaskHistory(ctx context.Context, taskID string) ([]models.TaskStatusHistory, error) {
	rows, err := s.conn().QueryContext(ctx, `SELECT id, task_id, from_status, to_status, changed_by, changed_at
        FROM task_status_history WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	history := []models.TaskStatusHistory{}
	for rows.Next() {
		var h models.TaskStatusHistory
		var from sql.NullString
		if err := rows.Scan(&h.ID, &h.TaskID, &from, &h.ToStatus, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if from.Valid {
			h.FromStatus = models.TaskStatus(from.String).Ptr()
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// CountSprintTasks returns the number of tasks in a sprint and how many are done.
func (s *Store) CountSprintTasks(ctx context.Context, sprintID string) (total, done int, err error) {
	err = s.conn().QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
        FROM tasks WHERE sprint_id = ?`, models.StatusDone, sprintID).Scan(&total, &done)
	if err != nil {
		return 0, 0, fmt.Errorf("count sprint tasks: %w", err)
	}
	return total, done, nil
}
