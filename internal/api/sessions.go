package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/vidfeed/internal/logger"
	"github.com/stwalsh4118/vidfeed/internal/session"
)

// sessionManager defines the interface required by SessionHandler
type sessionManager interface {
	Create(ctx context.Context, opts session.CreateOptions) (*session.Session, error)
	Get(id uuid.UUID) (*session.Session, error)
	Close(id uuid.UUID) error
}

// TextRequest carries the content of a search box
type TextRequest struct {
	Text string `json:"text"`
}

// ScrollRequest reports how far the viewport is from the end of the list
type ScrollRequest struct {
	DistanceFromEnd *int `json:"distance_from_end" binding:"required"`
}

// LocationRequest reports a route change made by the renderer
type LocationRequest struct {
	Location string `json:"location" binding:"required"`
}

// CommandResponse reports whether a feed command was acted on, with the resulting state
type CommandResponse struct {
	Accepted bool         `json:"accepted"`
	Session  session.View `json:"session"`
}

// SessionHandler handles feed session requests
type SessionHandler struct {
	sessions sessionManager
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: manager}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var opts session.CreateOptions
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	s, err := h.sessions.Create(ctx, opts)
	if err != nil {
		if errors.Is(err, session.ErrUnsupportedLocale) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "unsupported_locale",
				Message: err.Error(),
			})
			return
		}
		if errors.Is(err, session.ErrManagerStopped) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "shutting_down",
				Message: "Server is shutting down",
			})
			return
		}

		logger.Log.Error().Err(err).Str("locale", opts.Locale).Msg("Failed to create session")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "create_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, s.View())
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// GetFeed handles GET /api/sessions/:id/feed
func (h *SessionHandler) GetFeed(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Controller().View())
}

// CloseSession handles DELETE /api/sessions/:id
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Close(id); err != nil {
		respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetSearch handles PUT /api/sessions/:id/search
func (h *SessionHandler) SetSearch(c *gin.Context) {
	var req TextRequest
	if !bindJSON(c, &req) {
		return
	}
	h.command(c, func(s *session.Session) bool {
		s.SetSearch(req.Text)
		return true
	})
}

// ToggleCategory handles POST /api/sessions/:id/categories/:category_id/toggle
func (h *SessionHandler) ToggleCategory(c *gin.Context) {
	categoryID := c.Param("category_id")
	h.command(c, func(s *session.Session) bool {
		s.ToggleCategory(categoryID)
		return true
	})
}

// FetchNextPage handles POST /api/sessions/:id/next
func (h *SessionHandler) FetchNextPage(c *gin.Context) {
	h.command(c, (*session.Session).FetchNextPage)
}

// Retry handles POST /api/sessions/:id/retry
func (h *SessionHandler) Retry(c *gin.Context) {
	h.command(c, (*session.Session).Retry)
}

// Scroll handles POST /api/sessions/:id/scroll
func (h *SessionHandler) Scroll(c *gin.Context) {
	var req ScrollRequest
	if !bindJSON(c, &req) {
		return
	}
	h.command(c, func(s *session.Session) bool {
		return s.Scroll(*req.DistanceFromEnd)
	})
}

// SetHeaderSearch handles PUT /api/sessions/:id/header-search
func (h *SessionHandler) SetHeaderSearch(c *gin.Context) {
	var req TextRequest
	if !bindJSON(c, &req) {
		return
	}
	h.command(c, func(s *session.Session) bool {
		s.SetHeaderSearch(req.Text)
		return true
	})
}

// SetLocation handles PUT /api/sessions/:id/location
func (h *SessionHandler) SetLocation(c *gin.Context) {
	var req LocationRequest
	if !bindJSON(c, &req) {
		return
	}
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Navigate(req.Location); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_location",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, CommandResponse{Accepted: true, Session: s.View()})
}

// command runs fn against the session named in the path and replies with its state
func (h *SessionHandler) command(c *gin.Context, fn func(s *session.Session) bool) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	accepted := fn(s)
	c.JSON(http.StatusOK, CommandResponse{Accepted: accepted, Session: s.View()})
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id, ok := parseSessionID(c)
	if !ok {
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		respondSessionError(c, err)
		return nil, false
	}
	return s, true
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid session ID format",
		})
		return uuid.Nil, false
	}
	return id, true
}

func respondSessionError(c *gin.Context, err error) {
	if session.IsNotFound(err) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
		return
	}
	logger.Log.Error().Err(err).Str("session_id", c.Param("id")).Msg("Session request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "session_error",
		Message: "Session request failed",
	})
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// SetupSessionRoutes registers feed session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, manager *session.Manager) {
	handler := NewSessionHandler(manager)
	registerSessionRoutes(apiGroup, handler)
}

func registerSessionRoutes(apiGroup *gin.RouterGroup, handler *SessionHandler) {
	sessions := apiGroup.Group("/sessions")
	sessions.POST("", handler.CreateSession)
	sessions.GET("/:id", handler.GetSession)
	sessions.DELETE("/:id", handler.CloseSession)
	sessions.GET("/:id/feed", handler.GetFeed)
	sessions.PUT("/:id/search", handler.SetSearch)
	sessions.POST("/:id/categories/:category_id/toggle", handler.ToggleCategory)
	sessions.POST("/:id/next", handler.FetchNextPage)
	sessions.POST("/:id/retry", handler.Retry)
	sessions.POST("/:id/scroll", handler.Scroll)
	sessions.PUT("/:id/header-search", handler.SetHeaderSearch)
	sessions.PUT("/:id/location", handler.SetLocation)
}
