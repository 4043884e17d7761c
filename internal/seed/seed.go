// Package seed loads users and an optional organization tree from a YAML
// fixture. Users whose email already exists are skipped.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"devflow/internal/apperr"
	"devflow/internal/hierarchy"
	"devflow/internal/membership"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
	"devflow/internal/tasks"
	"devflow/internal/users"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture is the document read by Load.
type Fixture struct {
	Users        []SeedUser        `yaml:"users"`
	Organization *SeedOrganization `yaml:"organization"`
}

// SeedUser describes one account.
type SeedUser struct {
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Name     string      `yaml:"name"`
	Role     models.Role `yaml:"role"`
}

// SeedOrganization describes an organization and its teams.
type SeedOrganization struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Teams       []SeedTeam `yaml:"teams"`
}

// SeedTeam describes a team, its members and its projects.
type SeedTeam struct {
	Name     string        `yaml:"name"`
	Members  []SeedMember  `yaml:"members"`
	Projects []SeedProject `yaml:"projects"`
}

// SeedMember references a user by email.
type SeedMember struct {
	Email string            `yaml:"email"`
	Role  models.MemberRole `yaml:"role"`
}

// SeedProject describes a project and its sprints.
type SeedProject struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	RepoURL     string       `yaml:"github_repo_url"`
	Sprints     []SeedSprint `yaml:"sprints"`
}

// SeedSprint describes a sprint and its tasks. Dates are YYYY-MM-DD.
type SeedSprint struct {
	Name      string     `yaml:"name"`
	Goal      string     `yaml:"goal"`
	StartDate string     `yaml:"start_date"`
	EndDate   string     `yaml:"end_date"`
	Tasks     []SeedTask `yaml:"tasks"`
}

// SeedTask describes a task. Assignee and creator are emails.
type SeedTask struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Priority    models.Priority `yaml:"priority"`
	StoryPoints *int            `yaml:"story_points"`
	Assignee    string          `yaml:"assignee"`
	Creator     string          `yaml:"creator"`
}

// Parse decodes a fixture.
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// ParseFile decodes the fixture at path, or the built-in one when path is empty.
func ParseFile(path string) (*Fixture, error) {
	if path == "" {
		var f Fixture
		if err := yaml.Unmarshal(defaultFixture, &f); err != nil {
			return nil, fmt.Errorf("decode default fixture: %w", err)
		}
		return &f, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// UserLookup finds existing accounts by email.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Seeder applies fixtures through the domain services.
type Seeder struct {
	Lookup     UserLookup
	Users      *users.Service
	Hierarchy  *hierarchy.Service
	Membership *membership.Service
	Tasks      *tasks.Service
	Logger     *slog.Logger
}

// ForStore wires a Seeder whose services all share store.
func ForStore(store *sqlstore.Store, logger *slog.Logger) *Seeder {
	return &Seeder{
		Lookup:     store,
		Users:      users.NewService(store, logger),
		Hierarchy:  hierarchy.NewService(store, time.Now, logger),
		Membership: membership.NewService(store, logger),
		Tasks:      tasks.NewService(store, nil, logger),
		Logger:     logger,
	}
}

// Report counts what Apply created.
type Report struct {
	UsersCreated int
	UsersSkipped int
	Teams        int
	Projects     int
	Sprints      int
	Tasks        int
}

// Apply creates the fixture's users and organization tree.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (Report, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var report Report
	ids := map[string]string{}

	for _, entry := range f.Users {
		existing, err := s.Lookup.GetUserByEmail(ctx, entry.Email)
		if err == nil {
			ids[existing.Email] = existing.ID
			report.UsersSkipped++
			logger.Info("user already exists", slog.String("email", existing.Email))
			continue
		}
		if !errors.Is(err, sqlstore.ErrNotFound) {
			return report, err
		}
		u, err := s.Users.Create(ctx, users.CreateInput{Email: entry.Email, Password: entry.Password, Name: entry.Name, Role: entry.Role})
		if err != nil {
			return report, fmt.Errorf("seed user %s: %w", entry.Email, err)
		}
		ids[u.Email] = u.ID
		report.UsersCreated++
		logger.Info("user created", slog.String("email", u.Email), slog.String("role", string(u.Role)))
	}

	if f.Organization == nil {
		return report, nil
	}
	if err := s.applyOrganization(ctx, f.Organization, ids, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Seeder) userID(ctx context.Context, ids map[string]string, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if id, ok := ids[email]; ok {
		return id, nil
	}
	u, err := s.Lookup.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("fixture references unknown user %s: %w", email, err)
	}
	ids[u.Email] = u.ID
	return u.ID, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Seeder) applyOrganization(ctx context.Context, entry *SeedOrganization, ids map[string]string, report *Report) error {
	org, err := s.Hierarchy.CreateOrganization(ctx, entry.Name, optional(entry.Description))
	if err != nil {
		return fmt.Errorf("seed organization: %w", err)
	}
	for _, ts := range entry.Teams {
		team, err := s.Hierarchy.CreateTeam(ctx, org.ID, ts.Name, nil)
		if err != nil {
			return fmt.Errorf("seed team %s: %w", ts.Name, err)
		}
		report.Teams++

		for _, ms := range ts.Members {
			uid, err := s.userID(ctx, ids, ms.Email)
			if err != nil {
				return err
			}
			if _, err := s.Membership.AddMember(ctx, team.ID, uid, ms.Role); err != nil && !errors.Is(err, apperr.ErrConflict) {
				return fmt.Errorf("seed member %s: %w", ms.Email, err)
			}
		}

		for _, ps := range ts.Projects {
			project, err := s.Hierarchy.CreateProject(ctx, models.Project{
				TeamID: team.ID, Name: ps.Name, Description: optional(ps.Description), GithubRepoURL: optional(ps.RepoURL),
			})
			if err != nil {
				return fmt.Errorf("seed project %s: %w", ps.Name, err)
			}
			report.Projects++
			if err := s.applySprints(ctx, project.ID, ps.Sprints, ids, report); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) applySprints(ctx context.Context, projectID string, sprints []SeedSprint, ids map[string]string, report *Report) error {
	for _, ss := range sprints {
		start, err := models.ParseDate(ss.StartDate)
		if err != nil {
			return fmt.Errorf("sprint %s start_date: %w", ss.Name, err)
		}
		end, err := models.ParseDate(ss.EndDate)
		if err != nil {
			return fmt.Errorf("sprint %s end_date: %w", ss.Name, err)
		}
		sprint, err := s.Hierarchy.CreateSprint(ctx, models.Sprint{ProjectID: projectID, Name: ss.Name, Goal: optional(ss.Goal), StartDate: start, EndDate: end})
		if err != nil {
			return fmt.Errorf("seed sprint %s: %w", ss.Name, err)
		}
		report.Sprints++

		for _, task := range ss.Tasks {
			creator, err := s.userID(ctx, ids, task.Creator)
			if err != nil {
				return err
			}
			in := tasks.CreateInput{
				SprintID:    sprint.ID,
				Title:       task.Title,
				Description: optional(task.Description),
				Priority:    task.Priority,
				StoryPoints: task.StoryPoints,
			}
			if task.Assignee != "" {
				assignee, err := s.userID(ctx, ids, task.Assignee)
				if err != nil {
					return err
				}
				in.AssigneeID = &assignee
			}
			if _, err := s.Tasks.Create(ctx, in, creator); err != nil {
				return fmt.Errorf("seed task %s: %w", task.Title, err)
			}
			report.Tasks++
		}
	}
	return nil
}
