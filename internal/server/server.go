package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"devflow/internal/apperr"
	"devflow/internal/auth"
	"devflow/internal/authz"
	"devflow/internal/comments"
	"devflow/internal/hierarchy"
	"devflow/internal/membership"
	"devflow/internal/notify"
	"devflow/internal/tasks"
	"devflow/internal/users"
)

// DefaultHeartbeat is how often an idle notification stream sends a keep-alive.
const DefaultHeartbeat = 25 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the domain services the HTTP surface fronts.
type Services struct {
	Auth          *auth.Service
	Users         *users.Service
	Hierarchy     *hierarchy.Service
	Membership    *membership.Service
	Tasks         *tasks.Service
	Comments      *comments.Service
	Notifications *notify.Service
	Hub           *notify.Hub
	DB            Pinger
}

// Options tunes the HTTP surface.
type Options struct {
	StaticDir string
	// Development exposes internal error messages to clients.
	Development bool
	Heartbeat   time.Duration
}

// Server provides HTTP handlers for the collaboration backend.
type Server struct {
	engine    *gin.Engine
	svc       Services
	logger    *slog.Logger
	staticDir string
	dev       bool
	heartbeat time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// New constructs the HTTP server with routes and middleware configured.
func New(svc Services, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		apperr.UseJSONNames(v)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api"))

	srv := &Server{
		engine:    router,
		svc:       svc,
		logger:    logger,
		staticDir: opts.StaticDir,
		dev:       opts.Development,
		heartbeat: opts.Heartbeat,
		closing:   make(chan struct{}),
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// CloseStreams ends every open notification stream. http.Server.Shutdown
// does not cancel in-flight requests, so register it with RegisterOnShutdown.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.NoRoute(s.handleNoRoute)

	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)

	public := api.Group("/auth")
	{
		public.POST("/signup", s.handleSignup)
		public.POST("/login", s.handleLogin)
		public.POST("/refresh", s.handleRefresh)
	}

	// EventSource cannot set headers, so the stream also takes ?token=.
	api.GET("/notifications/stream", s.authenticate(true), s.handleNotificationStream)

	authed := api.Group("", s.authenticate(false))
	authed.GET("/auth/me", s.handleMe)

	usersGroup := authed.Group("/users", s.requireAction(authz.UserAdmin))
	{
		usersGroup.GET("", s.handleListUsers)
		usersGroup.POST("", s.handleCreateUser)
		usersGroup.GET("/:id", s.handleGetUser)
		usersGroup.PATCH("/:id", s.handleUpdateUser)
		usersGroup.DELETE("/:id", s.handleDeleteUser)
		usersGroup.POST("/:id/promote", s.handlePromoteUser)
		usersGroup.POST("/:id/demote", s.handleDemoteUser)
	}

	orgs := authed.Group("/organizations")
	{
		orgs.GET("", s.handleListOrganizations)
		orgs.POST("", s.requireAction(authz.OrgWrite), s.handleCreateOrganization)
		orgs.GET("/:id", s.handleGetOrganization)
		orgs.PATCH("/:id", s.requireAction(authz.OrgWrite), s.handleUpdateOrganization)
		orgs.DELETE("/:id", s.requireAction(authz.OrgWrite), s.handleDeleteOrganization)
	}

	teams := authed.Group("/teams")
	{
		teams.GET("", s.handleListTeams)
		teams.POST("", s.requireAction(authz.TeamWrite), s.handleCreateTeam)
		teams.GET("/available-users", s.requireAction(authz.MemberWrite), s.handleAvailableUsers)
		teams.GET("/:id", s.handleGetTeam)
		teams.PATCH("/:id", s.requireAction(authz.TeamWrite), s.handleUpdateTeam)
		teams.DELETE("/:id", s.requireAction(authz.TeamWrite), s.handleDeleteTeam)
		teams.GET("/:id/members", s.handleListMembers)
		teams.POST("/:id/members", s.requireAction(authz.MemberWrite), s.handleAddMember)
		teams.DELETE("/:id/members/:userId", s.requireAction(authz.MemberWrite), s.handleRemoveMember)
	}

	projects := authed.Group("/projects")
	{
		projects.GET("", s.handleListProjects)
		projects.POST("", s.requireAction(authz.ProjectWrite), s.handleCreateProject)
		projects.GET("/:id", s.handleGetProject)
		projects.PATCH("/:id", s.requireAction(authz.ProjectWrite), s.handleUpdateProject)
		projects.DELETE("/:id", s.requireAction(authz.ProjectWrite), s.handleDeleteProject)
	}

	sprints := authed.Group("/sprints")
	{
		sprints.GET("", s.handleListSprints)
		sprints.POST("", s.requireAction(authz.SprintWrite), s.handleCreateSprint)
		sprints.GET("/:id", s.handleGetSprint)
		sprints.GET("/:id/progress", s.handleSprintProgress)
		sprints.PATCH("/:id", s.requireAction(authz.SprintWrite), s.handleUpdateSprint)
		sprints.DELETE("/:id", s.requireAction(authz.SprintWrite), s.handleDeleteSprint)
	}

	taskGroup := authed.Group("/tasks")
	{
		taskGroup.GET("", s.handleListTasks)
		taskGroup.POST("", s.requireAction(authz.TaskWrite), s.handleCreateTask)
		taskGroup.GET("/:id", s.handleGetTask)
		taskGroup.PATCH("/:id", s.requireAction(authz.TaskWrite), s.handleUpdateTask)
		taskGroup.DELETE("/:id", s.requireAction(authz.TaskWrite), s.handleDeleteTask)
		taskGroup.PATCH("/:id/status", s.requireAction(authz.TaskWrite), s.handleChangeStatus)
		taskGroup.POST("/:id/assign", s.requireAction(authz.TaskWrite), s.handleAssignTask)
		taskGroup.GET("/:id/history", s.handleTaskHistory)
		taskGroup.GET("/:id/comments", s.handleListComments)
		taskGroup.POST("/:id/comments", s.requireAction(authz.CommentWrite), s.handleCreateComment)
	}

	commentGroup := authed.Group("/comments")
	{
		commentGroup.PATCH("/:id", s.handleUpdateComment)
		commentGroup.DELETE("/:id", s.handleDeleteComment)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", s.handleListNotifications)
		notifications.GET("/unread-count", s.handleUnreadCount)
		notifications.PATCH("/read-all", s.handleMarkAllRead)
		notifications.PATCH("/:id/read", s.handleMarkRead)
		notifications.DELETE("/:id", s.handleDeleteNotification)
	}

	s.mountStatic()
}

// handleHealth reports readiness, including database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if s.svc.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.DB.Ping(ctx); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
