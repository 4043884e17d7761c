package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

type createProjectRequest struct {
	TeamID        string  `json:"team_id" binding:"required"`
	Name          string  `json:"name" binding:"required,max=255"`
	Description   *string `json:"description"`
	GithubRepoURL *string `json:"github_repo_url" binding:"omitempty,url"`
}

type updateProjectRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description   *string `json:"description"`
	GithubRepoURL *string `json:"github_repo_url" binding:"omitempty,url"`
}

type createSprintRequest struct {
	ProjectID string      `json:"project_id" binding:"required"`
	Name      string      `json:"name" binding:"required,max=255"`
	Goal      *string     `json:"goal"`
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
}

type updateSprintRequest struct {
	Name      *string      `json:"name" binding:"omitempty,min=1,max=255"`
	Goal      *string      `json:"goal"`
	StartDate *models.Date `json:"start_date"`
	EndDate   *models.Date `json:"end_date"`
}

// handleListProjects returns projects, optionally filtered by team and search text.
func (s *Server) handleListProjects(c *gin.Context) {
	list, err := s.svc.Hierarchy.ListProjects(c.Request.Context(), sqlstore.ProjectFilter{
		TeamID: c.Query("team_id"),
		Search: c.Query("search"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, list)
}

// handleCreateProject persists a new project under a team.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	project, err := s.svc.Hierarchy.CreateProject(c.Request.Context(), models.Project{
		TeamID:        req.TeamID,
		Name:          req.Name,
		Description:   req.Description,
		GithubRepoURL: req.GithubRepoURL,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, project)
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.svc.Hierarchy.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// handleUpdateProject modifies project metadata.
func (s *Server) handleUpdateProject(c *gin.Context) {
	var req updateProjectRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	project, err := s.svc.Hierarchy.UpdateProject(c.Request.Context(), c.Param("id"), sqlstore.ProjectUpdate{
		Name:          req.Name,
		Description:   req.Description,
		GithubRepoURL: req.GithubRepoURL,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// handleDeleteProject removes a project together with its sprints and tasks.
func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.svc.Hierarchy.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Project deleted successfully")
}

func (s *Server) handleListSprints(c *gin.Context) {
	list, err := s.svc.Hierarchy.ListSprints(c.Request.Context(), c.Query("project_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, list)
}

func (s *Server) handleCreateSprint(c *gin.Context) {
	var req createSprintRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	sprint, err := s.svc.Hierarchy.CreateSprint(c.Request.Context(), models.Sprint{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, sprint)
}

func (s *Server) handleGetSprint(c *gin.Context) {
	sprint, err := s.svc.Hierarchy.GetSprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

func (s *Server) handleSprintProgress(c *gin.Context) {
	progress, err := s.svc.Hierarchy.SprintProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, progress)
}

func (s *Server) handleUpdateSprint(c *gin.Context) {
	var req updateSprintRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	sprint, err := s.svc.Hierarchy.UpdateSprint(c.Request.Context(), c.Param("id"), sqlstore.SprintUpdate{
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

func (s *Server) handleDeleteSprint(c *gin.Context) {
	if err := s.svc.Hierarchy.DeleteSprint(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Sprint deleted successfully")
}
