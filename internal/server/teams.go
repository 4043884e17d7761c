package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

type organizationRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
}

type createTeamRequest struct {
	OrganizationID string  `json:"organization_id" binding:"required"`
	Name           string  `json:"name" binding:"required,max=255"`
	Description    *string `json:"description"`
}

type updateTeamRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
}

type addMemberRequest struct {
	UserID string            `json:"user_id" binding:"required"`
	Role   models.MemberRole `json:"role" binding:"omitempty,oneof=team_lead developer"`
}

func (s *Server) handleListOrganizations(c *gin.Context) {
	list, page, err := s.svc.Hierarchy.ListOrganizations(c.Request.Context(), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondPage(c, list, page)
}

func (s *Server) handleCreateOrganization(c *gin.Context) {
	var req organizationRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if req.Name == nil {
		s.respondError(c, apperr.Invalid("name", "is required"))
		return
	}
	org, err := s.svc.Hierarchy.CreateOrganization(c.Request.Context(), *req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, org)
}

func (s *Server) handleGetOrganization(c *gin.Context) {
	org, err := s.svc.Hierarchy.GetOrganization(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, org)
}

func (s *Server) handleUpdateOrganization(c *gin.Context) {
	var req organizationRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	org, err := s.svc.Hierarchy.UpdateOrganization(c.Request.Context(), c.Param("id"), sqlstore.OrganizationUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, org)
}

func (s *Server) handleDeleteOrganization(c *gin.Context) {
	if err := s.svc.Hierarchy.DeleteOrganization(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Organization deleted successfully")
}

func (s *Server) handleListTeams(c *gin.Context) {
	list, err := s.svc.Hierarchy.ListTeams(c.Request.Context(), c.Query("organization_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, list)
}

func (s *Server) handleCreateTeam(c *gin.Context) {
	var req createTeamRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	team, err := s.svc.Hierarchy.CreateTeam(c.Request.Context(), req.OrganizationID, req.Name, req.Description)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(c *gin.Context) {
	team, err := s.svc.Hierarchy.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, team)
}

func (s *Server) handleUpdateTeam(c *gin.Context) {
	var req updateTeamRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	team, err := s.svc.Hierarchy.UpdateTeam(c.Request.Context(), c.Param("id"), sqlstore.TeamUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, team)
}

func (s *Server) handleDeleteTeam(c *gin.Context) {
	if err := s.svc.Hierarchy.DeleteTeam(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Team deleted successfully")
}

func (s *Server) handleAvailableUsers(c *gin.Context) {
	teamID := c.Query("team_id")
	if teamID == "" {
		s.respondError(c, apperr.Invalid("team_id", "is required"))
		return
	}
	list, err := s.svc.Membership.AvailableUsers(c.Request.Context(), teamID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, list)
}

func (s *Server) handleListMembers(c *gin.Context) {
	list, err := s.svc.Membership.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, list)
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req addMemberRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	member, err := s.svc.Membership.AddMember(c.Request.Context(), c.Param("id"), req.UserID, req.Role)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, member)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	removed, err := s.svc.Membership.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !removed {
		s.respondError(c, apperr.NotFound("Team member"))
		return
	}
	respondMessage(c, http.StatusOK, "Member removed successfully")
}
