package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/domain"
	"github.com/barbarosson/advisory/internal/service"
)

const defaultThreadListLimit = 50

// Handler handles agent HTTP requests.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// RegisterRoutes registers the public routes. Agent routes run behind
// the supplied auth middleware; health does not.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMW echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	g := e.Group("/v1", authMW)
	g.POST("/agents/:agent_id", h.HandleAgentRequest)
	g.GET("/agents/:agent_id/threads", h.ListThreads)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleAgentRequest dispatches one agent action.
// POST /v1/agents/:agent_id
func (h *Handler) HandleAgentRequest(c echo.Context) error {
	ctx := c.Request().Context()

	profile, ok := h.service.Profile(c.Param("agent_id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown agent"})
	}

	var req domain.AgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if !profile.AllowsAction(req.Action) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid action, expected one of: " + strings.Join(profile.ActionNames(), ", "),
		})
	}

	switch req.Action {
	case domain.ActionChat:
		resp, err := h.service.Chat(ctx, profile, &req)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp)
	case domain.ActionFeedback:
		resp, err := h.service.Feedback(ctx, &req)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp)
	case domain.ActionSearchKB:
		resp, err := h.service.SearchKB(ctx, &req)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, resp)
	}
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": "invalid action, expected one of: " + strings.Join(profile.ActionNames(), ", "),
	})
}

// ListThreads returns the tenant's recent threads for an agent.
// GET /v1/agents/:agent_id/threads?tenant_id=...
func (h *Handler) ListThreads(c echo.Context) error {
	ctx := c.Request().Context()

	profile, ok := h.service.Profile(c.Param("agent_id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown agent"})
	}

	threads, err := h.service.ListThreads(ctx, c.QueryParam("tenant_id"), profile.ID, defaultThreadListLimit)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"threads": threads, "count": len(threads)})
}

// writeError maps domain errors to HTTP responses. Upstream and
// persistence failures return a generic message; the detail is only
// logged.
func (h *Handler) writeError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	case domain.IsUpstream(err):
		h.logger.Error("model provider failure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "AI provider error"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
