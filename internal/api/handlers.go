// Package api provides the HTTP handlers and route table of the workspace
// backend.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-workspace-backend/internal/domain"
	"github.com/sirosfoundation/go-workspace-backend/internal/service"
	"github.com/sirosfoundation/go-workspace-backend/internal/storage"
	"github.com/sirosfoundation/go-workspace-backend/pkg/middleware"
)

// NotFoundBody is the plain-text body of every 404
const NotFoundBody = "Not found\r\n"

// Handlers aggregates all HTTP handlers
type Handlers struct {
	services *service.Services
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *service.Services, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger.Named("handlers"),
	}
}

// fail maps an error to a status code. Details stay in the server log.
func (h *Handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.Status(http.StatusUnauthorized)
	case errors.Is(err, service.ErrDocumentNotFound):
		NotFound(c)
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// NotFound answers 404 with the fixed plain-text body
func NotFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "text/plain", []byte(NotFoundBody))
}

// workspace returns the caller's workspace. A missing Authorization header
// yields the empty workspace, which owns no rows.
func (h *Handlers) workspace(c *gin.Context) (string, bool, error) {
	name, present, err := middleware.GetWorkspace(c)
	if err != nil {
		return "", present, fmt.Errorf("%w: authorization header: %v", storage.ErrInvalidInput, err)
	}
	return name, present, nil
}

// Login handles POST /login. Unknown workspace names are registered on
// first use.
func (h *Handlers) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		h.fail(c, fmt.Errorf("%w: login body: %v", storage.ErrInvalidInput, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	token, err := h.services.Workspace.Login(c.Request.Context(), *req.Workspace, *req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "text/plain", []byte(token))
}

// ListChat handles GET /chat
func (h *Handlers) ListChat(c *gin.Context) {
	ws, _, err := h.workspace(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	msgs, err := h.services.Chat.List(c.Request.Context(), ws)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.NewListResponse(msgs))
}

// PostChat handles POST /chat. The raw body is the message.
func (h *Handlers) PostChat(c *gin.Context) {
	ws, _, err := h.workspace(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.services.Chat.Post(c.Request.Context(), ws, string(middleware.RawBody(c))); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// ListDocs handles GET /docs. The date filter is {"date": "..."} or, when
// the body is not JSON, the trimmed raw body.
func (h *Handlers) ListDocs(c *gin.Context) {
	ws, _, err := h.workspace(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	docs, err := h.services.Document.List(c.Request.Context(), ws, dateFilter(middleware.RawBody(c)))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.NewListResponse(docs))
}

// dateFilter only treats bodies that look like a JSON object as JSON, so a
// raw date such as null or 2024 is matched literally.
func dateFilter(body []byte) string {
	raw := bytes.TrimSpace(body)
	if bytes.HasPrefix(raw, []byte("{")) {
		var req struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal(raw, &req); err == nil {
			return req.Date
		}
	}
	return string(raw)
}

// bindDocument decodes a document body, which must be a JSON object. Every
// field is optional.
func bindDocument(c *gin.Context) (*domain.DocumentRequest, error) {
	var req domain.DocumentRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		return nil, fmt.Errorf("%w: document body: %v", storage.ErrInvalidInput, err)
	}
	return &req, nil
}

// CreateDoc handles POST /docs
func (h *Handlers) CreateDoc(c *gin.Context) {
	ws, _, err := h.workspace(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	req, err := bindDocument(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if _, err := h.services.Document.Create(c.Request.Context(), ws, req); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// UpdateDoc handles POST /docs/:id.
// The document is not checked against the caller's workspace.
func (h *Handlers) UpdateDoc(c *gin.Context) {
	req, err := bindDocument(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.services.Document.Update(c.Request.Context(), c.Param("id"), req); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// GetDoc handles GET /docs/:id.
// The document is not checked against the caller's workspace.
func (h *Handlers) GetDoc(c *gin.Context) {
	doc, err := h.services.Document.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, doc.Body())
}

// DeleteDoc handles DELETE /docs/:id.
// The document is not checked against the caller's workspace.
func (h *Handlers) DeleteDoc(c *gin.Context) {
	if err := h.services.Document.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// Ping handles POST /ping. The raw body is the user id. Without an
// Authorization header nothing is recorded and the body is empty.
func (h *Handlers) Ping(c *gin.Context) {
	ws, present, err := h.workspace(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !present {
		c.Status(http.StatusOK)
		return
	}

	if err := h.services.Presence.Ping(c.Request.Context(), ws, string(middleware.RawBody(c))); err != nil {
		h.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "text/plain", []byte("pong"))
}

// OnlineUsers handles POST /online_users. The raw body is the asking user's
// id, which is always part of the answer.
func (h *Handlers) OnlineUsers(c *gin.Context) {
	ws, _, err := h.workspace(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	users, err := h.services.Presence.Online(c.Request.Context(), ws, string(middleware.RawBody(c)))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.NewListResponse(users))
}
