package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *Server) handleListComments(c *gin.Context) {
	list, err := s.svc.Comments.ListByTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, list)
}

func (s *Server) handleCreateComment(c *gin.Context) {
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	comment, err := s.svc.Comments.Create(c.Request.Context(), actorOf(c), c.Param("id"), req.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, comment)
}

func (s *Server) handleUpdateComment(c *gin.Context) {
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	comment, err := s.svc.Comments.Update(c.Request.Context(), actorOf(c), c.Param("id"), req.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, comment)
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	if err := s.svc.Comments.Delete(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Comment deleted successfully")
}
