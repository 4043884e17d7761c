package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"devflow/internal/apperr"
	"devflow/internal/authz"
)

const actorKey = "devflow.actor"

// authenticate requires a valid access token. allowQuery also accepts ?token=.
func (s *Server) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			s.abort(c, apperr.Unauthorized("No token provided"))
			return
		}
		actor, err := s.svc.Auth.Authenticate(token)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireAction rejects callers whose role does not permit action.
func (s *Server) requireAction(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authz.Check(actorOf(c), action, authz.Resource{}); err != nil {
			s.abort(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// actorOf returns the authenticated caller; the zero Actor when unauthenticated.
func actorOf(c *gin.Context) authz.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return authz.Actor{}
	}
	actor, _ := v.(authz.Actor)
	return actor
}
