package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devflow/internal/auth"
	"devflow/internal/models"
	"devflow/internal/users"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type createUserRequest struct {
	Email     string      `json:"email" binding:"required,email"`
	Password  string      `json:"password" binding:"required,min=8"`
	Name      string      `json:"name" binding:"required"`
	Role      models.Role `json:"role" binding:"omitempty,oneof=admin team_lead developer"`
	AvatarURL *string     `json:"avatar_url" binding:"omitempty,url"`
}

type updateUserRequest struct {
	Email     *string      `json:"email" binding:"omitempty,email"`
	Name      *string      `json:"name" binding:"omitempty,min=1"`
	Role      *models.Role `json:"role" binding:"omitempty,oneof=admin team_lead developer"`
	AvatarURL *string      `json:"avatar_url" binding:"omitempty,url"`
}

func (s *Server) handleSignup(c *gin.Context) {
	var req auth.SignupInput
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	session, err := s.svc.Auth.Signup(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, session)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	session, err := s.svc.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, session)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	session, err := s.svc.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, session)
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.svc.Auth.Me(c.Request.Context(), actorOf(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

func (s *Server) handleListUsers(c *gin.Context) {
	list, page, err := s.svc.Users.List(c.Request.Context(), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondPage(c, list, page)
}

func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.svc.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	user, err := s.svc.Users.Create(c.Request.Context(), users.CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		Role:      req.Role,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, user)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	user, err := s.svc.Users.Update(c.Request.Context(), actorOf(c), c.Param("id"), users.UpdateInput{
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	if err := s.svc.Users.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "User deleted successfully")
}

func (s *Server) handlePromoteUser(c *gin.Context) {
	user, err := s.svc.Users.Promote(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

func (s *Server) handleDemoteUser(c *gin.Context) {
	user, err := s.svc.Users.Demote(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}
