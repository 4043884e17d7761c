package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"devflow/internal/apperr"
)

// handleNoRoute answers unknown paths with the error envelope.
func (s *Server) handleNoRoute(c *gin.Context) {
	s.respondError(c, apperr.NotFound("Endpoint"))
}

// mountStatic serves the built frontend. Paths that name a file under the
// static directory get that file; every other non-API GET gets index.html so
// client-side routes survive a reload.
func (s *Server) mountStatic() {
	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}
	root, err := filepath.Abs(s.staticDir)
	if err != nil {
		s.logger.Warn("static directory unusable", "path", s.staticDir, "error", err)
		return
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", root, "error", err)
		return
	}
	indexPath := filepath.Join(root, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		s.logger.Warn("index.html not found", "path", indexPath, "error", err)
		return
	}

	if assets := filepath.Join(root, "assets"); isDir(assets) {
		s.engine.StaticFS("/assets", gin.Dir(assets, false))
	}
	s.engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.Method != http.MethodGet {
			s.handleNoRoute(c)
			return
		}
		rel := path.Clean("/" + c.Request.URL.Path)
		candidate := filepath.Join(root, filepath.FromSlash(rel))
		if rel != "/" && isFile(candidate) {
			c.File(candidate)
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.File(indexPath)
	})
	s.logger.Info("serving frontend", "path", root)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
