package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
	"devflow/internal/tasks"
)

type createTaskRequest struct {
	SprintID       string           `json:"sprint_id" binding:"required"`
	Title          string           `json:"title" binding:"required,max=500"`
	Description    *string          `json:"description"`
	Priority       models.Priority  `json:"priority"`
	StoryPoints    *int             `json:"story_points" binding:"omitempty,min=0"`
	AssigneeID     *string          `json:"assignee_id"`
	GithubPRURL    *string          `json:"github_pr_url" binding:"omitempty,url"`
	GithubPRStatus *models.PRStatus `json:"github_pr_status"`
}

// updateTaskRequest is the unchecked field patch. An empty assignee_id unassigns.
type updateTaskRequest struct {
	Title          *string            `json:"title" binding:"omitempty,min=1,max=500"`
	Description    *string            `json:"description"`
	Status         *models.TaskStatus `json:"status"`
	Priority       *models.Priority   `json:"priority"`
	StoryPoints    *int               `json:"story_points" binding:"omitempty,min=0"`
	AssigneeID     *string            `json:"assignee_id"`
	GithubPRURL    *string            `json:"github_pr_url" binding:"omitempty,url"`
	GithubPRStatus *models.PRStatus   `json:"github_pr_status"`
}

type statusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required"`
}

type assignRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

// handleListTasks returns one filtered, sorted page of tasks.
func (s *Server) handleListTasks(c *gin.Context) {
	list, page, err := s.svc.Tasks.List(c.Request.Context(), tasks.ListQuery{
		SprintID:   c.Query("sprint_id"),
		Status:     models.TaskStatus(c.Query("status")),
		Priority:   models.Priority(c.Query("priority")),
		AssigneeID: c.Query("assignee_id"),
		Search:     c.Query("search"),
		SortBy:     c.Query("sortBy"),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondPage(c, list, page)
}

// handleCreateTask inserts a new task into a sprint. It always starts in todo.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	task, err := s.svc.Tasks.Create(c.Request.Context(), tasks.CreateInput{
		SprintID:       req.SprintID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		StoryPoints:    req.StoryPoints,
		AssigneeID:     req.AssigneeID,
		GithubPRURL:    req.GithubPRURL,
		GithubPRStatus: req.GithubPRStatus,
	}, actorOf(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.svc.Tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleUpdateTask updates task fields such as title, priority or status.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	task, err := s.svc.Tasks.UpdateFields(c.Request.Context(), c.Param("id"), sqlstore.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		StoryPoints:    req.StoryPoints,
		AssigneeID:     req.AssigneeID,
		GithubPRURL:    req.GithubPRURL,
		GithubPRStatus: req.GithubPRStatus,
	}, actorOf(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleChangeStatus moves a task along the status workflow.
func (s *Server) handleChangeStatus(c *gin.Context) {
	var req statusRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	task, err := s.svc.Tasks.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status, actorOf(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

func (s *Server) handleAssignTask(c *gin.Context) {
	var req assignRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	task, err := s.svc.Tasks.Assign(c.Request.Context(), c.Param("id"), req.AssigneeID, actorOf(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

func (s *Server) handleTaskHistory(c *gin.Context) {
	history, err := s.svc.Tasks.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, history)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.svc.Tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "Task deleted successfully")
}
