package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"devflow/internal/apperr"
)

func (s *Server) handleListNotifications(c *gin.Context) {
	isRead, err := queryBool(c, "is_read")
	if err != nil {
		s.respondError(c, err)
		return
	}
	actor := actorOf(c)
	list, page, err := s.svc.Notifications.List(c.Request.Context(), actor.ID, isRead, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondPage(c, list, page)
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	count, err := s.svc.Notifications.UnreadCount(c.Request.Context(), actorOf(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"count": count})
}

// handleMarkRead flags one notification as read. Marking an already read
// notification succeeds; another user's notification is not found.
func (s *Server) handleMarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	userID := actorOf(c).ID
	id := c.Param("id")
	updated, err := s.svc.Notifications.MarkRead(ctx, userID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	n, err := s.svc.Notifications.Get(ctx, userID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !updated {
		s.logger.Debug("notification already read", slog.String("notification_id", id))
	}
	respondSuccess(c, http.StatusOK, n)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	if _, err := s.svc.Notifications.MarkAllRead(c.Request.Context(), actorOf(c).ID); err != nil {
		s.respondError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "All notifications marked as read")
}

func (s *Server) handleDeleteNotification(c *gin.Context) {
	deleted, err := s.svc.Notifications.Delete(c.Request.Context(), actorOf(c).ID, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !deleted {
		s.respondError(c, apperr.NotFound("Notification"))
		return
	}
	respondMessage(c, http.StatusOK, "Notification deleted successfully")
}

// handleNotificationStream pushes the caller's new notifications as server-sent
// events until the client disconnects.
func (s *Server) handleNotificationStream(c *gin.Context) {
	actor := actorOf(c)
	sub := s.svc.Hub.Subscribe(actor.ID)
	defer s.svc.Hub.Unsubscribe(sub)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"user_id": actor.ID})
	c.Writer.Flush()

	s.logger.Debug("notification stream opened", slog.String("user_id", actor.ID))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-s.closing:
			return false
		case n, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		}
	})
	s.logger.Debug("notification stream closed", slog.String("user_id", actor.ID))
}
