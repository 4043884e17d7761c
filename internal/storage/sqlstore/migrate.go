package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// schema is written once with {{placeholders}} and rendered per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            name TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'developer' CHECK (role IN ('admin', 'team_lead', 'developer')),
            avatar_url TEXT,
            created_at {{timestamp}} NOT NULL,
            updated_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS organizations (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT,
            created_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS teams (
            id TEXT PRIMARY KEY,
            organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            description TEXT,
            created_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS team_members (
            team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            role TEXT NOT NULL CHECK (role IN ('team_lead', 'developer')),
            joined_at {{timestamp}} NOT NULL,
            PRIMARY KEY (team_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS projects (
            id TEXT PRIMARY KEY,
            team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            description TEXT,
            github_repo_url TEXT,
            created_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS sprints (
            id TEXT PRIMARY KEY,
            project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            goal TEXT,
            start_date DATE NOT NULL,
            end_date DATE NOT NULL,
            created_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            sprint_id TEXT NOT NULL REFERENCES sprints(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT,
            status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in_progress', 'in_review', 'done')),
            priority TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high', 'critical')),
            story_points INTEGER,
            assignee_id TEXT REFERENCES users(id) ON DELETE SET NULL,
            creator_id TEXT NOT NULL REFERENCES users(id),
            github_pr_url TEXT,
            github_pr_status TEXT CHECK (github_pr_status IN ('open', 'merged', 'closed')),
            created_at {{timestamp}} NOT NULL,
            updated_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS task_status_history (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
            from_status TEXT,
            to_status TEXT NOT NULL,
            changed_by TEXT NOT NULL REFERENCES users(id),
            changed_at {{timestamp}} NOT NULL,
            seq INTEGER NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS comments (
            id TEXT PRIMARY KEY,
            task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            is_edited BOOLEAN NOT NULL DEFAULT {{false}},
            is_deleted BOOLEAN NOT NULL DEFAULT {{false}},
            created_at {{timestamp}} NOT NULL,
            updated_at {{timestamp}} NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL CHECK (type IN ('task_assigned', 'task_updated', 'comment_added', 'sprint_started')),
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            link TEXT,
            is_read BOOLEAN NOT NULL DEFAULT {{false}},
            created_at {{timestamp}} NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_teams_organization ON teams(organization_id);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_team ON projects(team_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sprints_project ON sprints(project_id);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_sprint_status ON tasks(sprint_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);`,
	`CREATE INDEX IF NOT EXISTS idx_history_task ON task_status_history(task_id);`,
	`CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read, created_at);`,
}

var dialectTypes = map[string]map[string]string{
	DriverSQLite: {
		"timestamp": "DATETIME",
		"false":     "0",
	},
	DriverPostgres: {
		"timestamp": "TIMESTAMPTZ",
		"false":     "FALSE",
	},
}

func renderSchema(driver string) []string {
	types := dialectTypes[driver]
	out := make([]string, 0, len(schema))
	for _, stmt := range schema {
		for key, value := range types {
			stmt = strings.ReplaceAll(stmt, "{{"+key+"}}", value)
		}
		out = append(out, stmt)
	}
	return out
}

// Migrate creates every table and index that does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range renderSchema(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
