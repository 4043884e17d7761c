package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"devflow/internal/apperr"
	"devflow/internal/models"
	"devflow/internal/storage/sqlstore"
)

type successBody struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

type errorDetail struct {
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Details map[string][]string `json:"details,omitempty"`
}

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

// toAppError maps service, storage and binding failures onto the API taxonomy.
func toAppError(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if verr := apperr.FromValidation(err); verr != nil {
		return verr
	}
	switch {
	case errors.Is(err, sqlstore.ErrDuplicate):
		return apperr.Conflict("Resource already exists")
	case errors.Is(err, sqlstore.ErrForeignKey):
		return apperr.InvalidReference()
	case errors.Is(err, sqlstore.ErrNotFound):
		return apperr.NotFound("Resource")
	}
	return apperr.Internal(err)
}

// respondError logs the error and returns the failure envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	attrs := []any{
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("code", appErr.Code),
		slog.String("error", err.Error()),
	}
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}

	message := appErr.Message
	if s.dev && appErr.Cause != nil {
		message = appErr.Cause.Error()
	}
	c.JSON(appErr.Status, errorBody{Error: errorDetail{Message: message, Code: appErr.Code, Details: appErr.Details}})
}

// abort is respondError for middleware.
func (s *Server) abort(c *gin.Context, err error) {
	s.respondError(c, err)
	c.Abort()
}

// respondSuccess wraps a payload in the success envelope.
func respondSuccess(c *gin.Context, status int, payload any) {
	c.JSON(status, successBody{Success: true, Data: payload})
}

// respondMessage answers with a message and no data.
func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, successBody{Success: true, Message: message})
}

// respondPage wraps a list and its pagination.
func respondPage(c *gin.Context, items any, page models.Pagination) {
	c.JSON(http.StatusOK, successBody{Success: true, Data: items, Pagination: &page})
}

// bindJSON decodes the request body, reporting binding tag failures per field.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if verr := apperr.FromValidation(err); verr != nil {
			return verr
		}
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

// queryInt reads an optional integer query parameter; absent or malformed yields 0.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

// queryBool reads an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Invalid(name, "must be true or false")
	}
	return &v, nil
}
