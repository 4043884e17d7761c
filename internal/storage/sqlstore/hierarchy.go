package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"devflow/internal/models"
)

// OrganizationUpdate holds the organization fields to overwrite.
type OrganizationUpdate struct {
	Name        *string
	Description *string
}

// CreateOrganization persists a new organization.
func (s *Store) CreateOrganization(ctx context.Context, o models.Organization) (models.Organization, error) {
	if strings.TrimSpace(o.Name) == "" {
		return models.Organization{}, fmt.Errorf("organization name must not be empty")
	}
	o.ID = s.newUUID()
	o.CreatedAt = s.now()
	_, err := s.conn().ExecContext(ctx, `INSERT INTO organizations(id, name, description, created_at) VALUES(?, ?, ?, ?)`,
		o.ID, strings.TrimSpace(o.Name), nullString(o.Description), o.CreatedAt)
	if err != nil {
		return models.Organization{}, fmt.Errorf("insert organization: %w", classify(err))
	}
	return s.GetOrganization(ctx, o.ID)
}

// GetOrganization fetches a single organization by id.
func (s *Store) GetOrganization(ctx context.Context, id string) (models.Organization, error) {
	var o models.Organization
	var desc sql.NullString
	err := s.conn().QueryRowContext(ctx, `SELECT id, name, description, created_at FROM organizations WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &desc, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Organization{}, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	o.Description = stringPtr(desc)
	return o, nil
}

// ListOrganizations returns a page of organizations, newest first.
func (s *Store) ListOrganizations(ctx context.Context, limit, offset int) ([]models.Organization, int, error) {
	limit, offset = pageBounds(limit, offset)

	var total int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}

	rows, err := s.conn().QueryContext(ctx, `SELECT id, name, description, created_at FROM organizations
        ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []models.Organization{}
	for rows.Next() {
		var o models.Organization
		var desc sql.NullString
		if err := rows.Scan(&o.ID, &o.Name, &desc, &o.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan organization: %w", err)
		}
		o.Description = stringPtr(desc)
		orgs = append(orgs, o)
	}
	return orgs, total, rows.Err()
}

// UpdateOrganization renames an organization or changes its description.
func (s *Store) UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (models.Organization, error) {
	current, err := s.GetOrganization(ctx, id)
	if err != nil {
		return models.Organization{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		current.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		current.Description = upd.Description
	}

	res, err := s.conn().ExecContext(ctx, `UPDATE organizations SET name = ?, description = ? WHERE id = ?`,
		current.Name, nullString(current.Description), id)
	if err != nil {
		return models.Organization{}, fmt.Errorf("update organization: %w", err)
	}
	if err := affectedOrNotFound(res, "organization "+id); err != nil {
		return models.Organization{}, err
	}
	return s.GetOrganization(ctx, id)
}

// DeleteOrganization removes an organization; the schema cascades to its teams.
func (s *Store) DeleteOrganization(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", classify(err))
	}
	return affectedOrNotFound(res, "organization "+id)
}

// TeamUpdate holds the team fields to overwrite.
type TeamUpdate struct {
	Name        *string
	Description *string
}

// CreateTeam persists a new team under an organization.
func (s *Store) CreateTeam(ctx context.Context, t models.Team) (models.Team, error) {
	t.ID = s.newUUID()
	t.CreatedAt = s.now()
	_, err := s.conn().ExecContext(ctx, `INSERT INTO teams(id, organization_id, name, description, created_at) VALUES(?, ?, ?, ?, ?)`,
		t.ID, t.OrganizationID, strings.TrimSpace(t.Name), nullString(t.Description), t.CreatedAt)
	if err != nil {
		return models.Team{}, fmt.Errorf("insert team: %w", classify(err))
	}
	return s.GetTeam(ctx, t.ID)
}

func scanTeam(row interface{ Scan(...any) error }) (models.Team, error) {
	var t models.Team
	var desc sql.NullString
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &desc, &t.CreatedAt); err != nil {
		return models.Team{}, err
	}
	t.Description = stringPtr(desc)
	return t, nil
}

// GetTeam fetches a single team by id.
func (s *Store) GetTeam(ctx context.Context, id string) (models.Team, error) {
	t, err := scanTeam(s.conn().QueryRowContext(ctx, `SELECT id, organization_id, name, description, created_at FROM teams WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Team{}, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Team{}, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

// ListTeams returns all teams, optionally restricted to one organization.
func (s *Store) ListTeams(ctx context.Context, organizationID string) ([]models.Team, error) {
	query := `SELECT id, organization_id, name, description, created_at FROM teams`
	var args []any
	if organizationID != "" {
		query += ` WHERE organization_id = ?`
		args = append(args, organizationID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := []models.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// UpdateTeam renames a team or changes its description.
func (s *Store) UpdateTeam(ctx context.Context, id string, upd TeamUpdate) (models.Team, error) {
	current, err := s.GetTeam(ctx, id)
	if err != nil {
		return models.Team{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		current.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		current.Description = upd.Description
	}

	res, err := s.conn().ExecContext(ctx, `UPDATE teams SET name = ?, description = ? WHERE id = ?`,
		current.Name, nullString(current.Description), id)
	if err != nil {
		return models.Team{}, fmt.Errorf("update team: %w", err)
	}
	if err := affectedOrNotFound(res, "team "+id); err != nil {
		return models.Team{}, err
	}
	return s.GetTeam(ctx, id)
}

// DeleteTeam removes a team along with its members and projects.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", classify(err))
	}
	return affectedOrNotFound(res, "team "+id)
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	TeamID string
	Search string
}

// ProjectUpdate holds the project fields to overwrite.
type ProjectUpdate struct {
	Name          *string
	Description   *string
	GithubRepoURL *string
}

const projectColumns = `id, team_id, name, description, github_repo_url, created_at`

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	var desc, repo sql.NullString
	if err := row.Scan(&p.ID, &p.TeamID, &p.Name, &desc, &repo, &p.CreatedAt); err != nil {
		return models.Project{}, err
	}
	p.Description = stringPtr(desc)
	p.GithubRepoURL = stringPtr(repo)
	return p, nil
}

// CreateProject persists a new project under a team.
func (s *Store) CreateProject(ctx context.Context, p models.Project) (models.Project, error) {
	p.ID = s.newUUID()
	p.CreatedAt = s.now()
	_, err := s.conn().ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES(?, ?, ?, ?, ?, ?)`,
		p.ID, p.TeamID, strings.TrimSpace(p.Name), nullString(p.Description), nullString(p.GithubRepoURL), p.CreatedAt)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", classify(err))
	}
	return s.GetProject(ctx, p.ID)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	p, err := scanProject(s.conn().QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects matching the filter, newest first.
func (s *Store) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1=1`
	var args []any
	if f.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, f.TeamID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		query += ` AND (` + s.lower("name") + ` LIKE ? ESCAPE '\' OR ` + s.lower("COALESCE(description, '')") + ` LIKE ? ESCAPE '\')`
		pattern := likePattern(search)
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject renames a project or changes its description or repository.
func (s *Store) UpdateProject(ctx context.Context, id string, upd ProjectUpdate) (models.Project, error) {
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		current.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		current.Description = upd.Description
	}
	if upd.GithubRepoURL != nil {
		current.GithubRepoURL = upd.GithubRepoURL
	}

	res, err := s.conn().ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, github_repo_url = ? WHERE id = ?`,
		current.Name, nullString(current.Description), nullString(current.GithubRepoURL), id)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := affectedOrNotFound(res, "project "+id); err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with its sprints and tasks.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", classify(err))
	}
	return affectedOrNotFound(res, "project "+id)
}

// SprintUpdate holds the sprint fields to overwrite.
type SprintUpdate struct {
	Name      *string
	Goal      *string
	StartDate *models.Date
	EndDate   *models.Date
}

const sprintColumns = `id, project_id, name, goal, start_date, end_date, created_at`

func scanSprint(row interface{ Scan(...any) error }) (models.Sprint, error) {
	var sp models.Sprint
	var goal sql.NullString
	if err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &goal, &sp.StartDate, &sp.EndDate, &sp.CreatedAt); err != nil {
		return models.Sprint{}, err
	}
	sp.Goal = stringPtr(goal)
	return sp, nil
}

// CreateSprint persists a new sprint under a project. Status is not stored.
func (s *Store) CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	sp.ID = s.newUUID()
	sp.CreatedAt = s.now()
	_, err := s.conn().ExecContext(ctx, `INSERT INTO sprints(`+sprintColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ProjectID, strings.TrimSpace(sp.Name), nullString(sp.Goal), sp.StartDate, sp.EndDate, sp.CreatedAt)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("insert sprint: %w", classify(err))
	}
	return s.GetSprint(ctx, sp.ID)
}

// GetSprint fetches a single sprint by id.
func (s *Store) GetSprint(ctx context.Context, id string) (models.Sprint, error) {
	sp, err := scanSprint(s.conn().QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, fmt.Errorf("sprint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return sp, nil
}

// ListSprints returns sprints ordered by start date, optionally for one project.
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error) {
	query := `SELECT ` + sprintColumns + ` FROM sprints`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY start_date DESC, id`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	sprints := []models.Sprint{}
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

// UpdateSprint overwrites the supplied sprint fields.
func (s *Store) UpdateSprint(ctx context.Context, id string, upd SprintUpdate) (models.Sprint, error) {
	current, err := s.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		current.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Goal != nil {
		current.Goal = upd.Goal
	}
	if upd.StartDate != nil {
		current.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		current.EndDate = *upd.EndDate
	}

	res, err := s.conn().ExecContext(ctx, `UPDATE sprints SET name = ?, goal = ?, start_date = ?, end_date = ? WHERE id = ?`,
		current.Name, nullString(current.Goal), current.StartDate, current.EndDate, id)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("update sprint: %w", err)
	}
	if err := affectedOrNotFound(res, "sprint "+id); err != nil {
		return models.Sprint{}, err
	}
	return s.GetSprint(ctx, id)
}

// DeleteSprint removes a sprint along with its tasks.
func (s *Store) DeleteSprint(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM sprints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete sprint: %w", classify(err))
	}
	return affectedOrNotFound(res, "sprint "+id)
}
