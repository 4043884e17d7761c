// Package hierarchy manages organizations, teams, projects and sprints. Every
// child is created only under an existing parent.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

// DefaultOrganizationPageSize is the organization list page size when none is given.
const DefaultOrganizationPageSize = 50

// Store is the persistence the hierarchy needs.
type Store interface {
	CreateOrganization(ctx context.Context, o models.Organization) (models.Organization, error)
	GetOrganization(ctx context.Context, id string) (models.Organization, error)
	ListOrganizations(ctx context.Context, limit, offset int) ([]models.Organization, int, error)
	UpdateOrganization(ctx context.Context, id string, upd sqlstore.OrganizationUpdate) (models.Organization, error)
	DeleteOrganization(ctx context.Context, id string) error

	CreateTeam(ctx context.Context, t models.Team) (models.Team, error)
	GetTeam(ctx context.Context, id string) (models.Team, error)
	ListTeams(ctx context.Context, organizationID string) ([]models.Team, error)
	UpdateTeam(ctx context.Context, id string, upd sqlstore.TeamUpdate) (models.Team, error)
	DeleteTeam(ctx context.Context, id string) error

	CreateProject(ctx context.Context, p models.Project) (models.Project, error)
	GetProject(ctx context.Context, id string) (models.Project, error)
	ListProjects(ctx context.Context, f sqlstore.ProjectFilter) ([]models.Project, error)
	UpdateProject(ctx context.Context, id string, upd sqlstore.ProjectUpdate) (models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error)
	GetSprint(ctx context.Context, id string) (models.Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error)
	UpdateSprint(ctx context.Context, id string, upd sqlstore.SprintUpdate) (models.Sprint, error)
	DeleteSprint(ctx context.Context, id string) error
	CountSprintTasks(ctx context.Context, sprintID string) (total, done int, err error)
}

// Service manages the organization tree.
type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// NewService wires the hierarchy service. now defaults to time.Now and is
// what sprint statuses are computed against.
func NewService(store Store, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, now: now, logger: logger}
}

func notFound(err error, resource string) error {
	if errors.Is(err, sqlstore.ErrNotFound) {
		return apperr.NotFound(resource)
	}
	return err
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Invalid("name", "Name is required")
	}
	return name, nil
}

func optionalName(name *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return apperr.Invalid("name", "Name must not be empty")
	}
	return nil
}

// CreateOrganization adds a root organization.
func (s *Service) CreateOrganization(ctx context.Context, name string, description *string) (models.Organization, error) {
	name, err := requireName(name)
	if err != nil {
		return models.Organization{}, err
	}
	o, err := s.store.CreateOrganization(ctx, models.Organization{Name: name, Description: description})
	if err != nil {
		return models.Organization{}, fmt.Errorf("create organization: %w", err)
	}
	s.logger.Info("organization created", slog.String("organization_id", o.ID))
	return o, nil
}

// ListOrganizations returns one page of organizations.
func (s *Service) ListOrganizations(ctx context.Context, page, limit int) ([]models.Organization, models.Pagination, error) {
	page, limit = models.NormalizePage(page, limit, DefaultOrganizationPageSize, models.MaxPageSize)
	offset := models.NewPagination(page, limit, 0).Offset()
	orgs, total, err := s.store.ListOrganizations(ctx, limit, offset)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return orgs, models.NewPagination(page, limit, total), nil
}

// GetOrganization returns an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (models.Organization, error) {
	o, err := s.store.GetOrganization(ctx, id)
	return o, notFound(err, "Organization")
}

// UpdateOrganization changes the name or description of an organization.
func (s *Service) UpdateOrganization(ctx context.Context, id string, upd sqlstore.OrganizationUpdate) (models.Organization, error) {
	if err := optionalName(upd.Name); err != nil {
		return models.Organization{}, err
	}
	o, err := s.store.UpdateOrganization(ctx, id, upd)
	return o, notFound(err, "Organization")
}

// DeleteOrganization removes an organization and everything below it.
func (s *Service) DeleteOrganization(ctx context.Context, id string) error {
	return notFound(s.store.DeleteOrganization(ctx, id), "Organization")
}

// CreateTeam adds a team to an existing organization.
func (s *Service) CreateTeam(ctx context.Context, organizationID, name string, description *string) (models.Team, error) {
	name, err := requireName(name)
	if err != nil {
		return models.Team{}, err
	}
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return models.Team{}, notFound(err, "Organization")
	}
	t, err := s.store.CreateTeam(ctx, models.Team{OrganizationID: organizationID, Name: name, Description: description})
	if err != nil {
		return models.Team{}, fmt.Errorf("create team: %w", err)
	}
	return t, nil
}

// ListTeams returns teams, optionally those of one organization.
func (s *Service) ListTeams(ctx context.Context, organizationID string) ([]models.Team, error) {
	return s.store.ListTeams(ctx, organizationID)
}

// GetTeam returns a team by id.
func (s *Service) GetTeam(ctx context.Context, id string) (models.Team, error) {
	t, err := s.store.GetTeam(ctx, id)
	return t, notFound(err, "Team")
}

// UpdateTeam changes the name or description of a team.
func (s *Service) UpdateTeam(ctx context.Context, id string, upd sqlstore.TeamUpdate) (models.Team, error) {
	if err := optionalName(upd.Name); err != nil {
		return models.Team{}, err
	}
	t, err := s.store.UpdateTeam(ctx, id, upd)
	return t, notFound(err, "Team")
}

// DeleteTeam removes a team with its members and projects.
func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	return notFound(s.store.DeleteTeam(ctx, id), "Team")
}

// CreateProject adds a project to an existing team.
func (s *Service) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	name, err := requireName(p.Name)
	if err != nil {
		return models.Project{}, err
	}
	p.Name = name
	if _, err := s.store.GetTeam(ctx, p.TeamID); err != nil {
		return models.Project{}, notFound(err, "Team")
	}
	created, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	return created, nil
}

// ListProjects returns projects matching the filter.
func (s *Service) ListProjects(ctx context.Context, f sqlstore.ProjectFilter) ([]models.Project, error) {
	return s.store.ListProjects(ctx, f)
}

// GetProject returns a project by id.
func (s *Service) GetProject(ctx context.Context, id string) (models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	return p, notFound(err, "Project")
}

// UpdateProject changes the mutable project fields.
func (s *Service) UpdateProject(ctx context.Context, id string, upd sqlstore.ProjectUpdate) (models.Project, error) {
	if err := optionalName(upd.Name); err != nil {
		return models.Project{}, err
	}
	p, err := s.store.UpdateProject(ctx, id, upd)
	return p, notFound(err, "Project")
}

// DeleteProject removes a project with its sprints and tasks.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	return notFound(s.store.DeleteProject(ctx, id), "Project")
}

func checkSprintDates(start, end models.Date) error {
	if start.IsZero() {
		return apperr.Invalid("start_date", "Start date is required")
	}
	if end.IsZero() {
		return apperr.Invalid("end_date", "End date is required")
	}
	if !end.After(start.Time) {
		return apperr.Invalid("end_date", "End date must be after start date")
	}
	return nil
}

// CreateSprint adds a sprint to an existing project.
func (s *Service) CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	name, err := requireName(sp.Name)
	if err != nil {
		return models.Sprint{}, err
	}
	sp.Name = name
	if err := checkSprintDates(sp.StartDate, sp.EndDate); err != nil {
		return models.Sprint{}, err
	}
	if _, err := s.store.GetProject(ctx, sp.ProjectID); err != nil {
		return models.Sprint{}, notFound(err, "Project")
	}
	created, err := s.store.CreateSprint(ctx, sp)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("create sprint: %w", err)
	}
	return created.WithStatus(s.now()), nil
}

// ListSprints returns sprints, optionally those of one project, with their
// status as of now.
func (s *Service) ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error) {
	sprints, err := s.store.ListSprints(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range sprints {
		sprints[i] = sprints[i].WithStatus(now)
	}
	return sprints, nil
}

// GetSprint returns a sprint with its status as of now.
func (s *Service) GetSprint(ctx context.Context, id string) (models.Sprint, error) {
	sp, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, notFound(err, "Sprint")
	}
	return sp.WithStatus(s.now()), nil
}

// UpdateSprint changes sprint fields. The date order is checked against the
// merged start and end.
func (s *Service) UpdateSprint(ctx context.Context, id string, upd sqlstore.SprintUpdate) (models.Sprint, error) {
	if err := optionalName(upd.Name); err != nil {
		return models.Sprint{}, err
	}
	current, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, notFound(err, "Sprint")
	}
	start, end := current.StartDate, current.EndDate
	if upd.StartDate != nil {
		start = *upd.StartDate
	}
	if upd.EndDate != nil {
		end = *upd.EndDate
	}
	if err := checkSprintDates(start, end); err != nil {
		return models.Sprint{}, err
	}

	sp, err := s.store.UpdateSprint(ctx, id, upd)
	if err != nil {
		return models.Sprint{}, notFound(err, "Sprint")
	}
	return sp.WithStatus(s.now()), nil
}

// DeleteSprint removes a sprint with its tasks.
func (s *Service) DeleteSprint(ctx context.Context, id string) error {
	return notFound(s.store.DeleteSprint(ctx, id), "Sprint")
}

// SprintProgress reports how many of the sprint's tasks are done.
func (s *Service) SprintProgress(ctx context.Context, id string) (models.SprintProgress, error) {
	if _, err := s.store.GetSprint(ctx, id); err != nil {
		return models.SprintProgress{}, notFound(err, "Sprint")
	}
	total, done, err := s.store.CountSprintTasks(ctx, id)
	if err != nil {
		return models.SprintProgress{}, err
	}
	progress := models.SprintProgress{SprintID: id, TotalTasks: total, CompletedTasks: done}
	if total > 0 {
		progress.ProgressPercentage = math.Round(float64(done)*10000/float64(total)) / 100
	}
	return progress, nil
}
