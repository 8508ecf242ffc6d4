// Package http provides the external HTTP server for the advisory
// service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/auth"
	"github.com/barbarosson/advisory/internal/config"
	"github.com/barbarosson/advisory/internal/service"
)

// NewServer creates and configures the echo server. Agent routes sit
// behind bearer auth; health and CORS preflight do not.
func NewServer(svc *service.Service, verifier auth.Verifier, cfg *config.Config, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(CORS())
	e.Use(RequestTimeout(cfg.Server.RequestTimeout))

	h := NewHandler(svc, logger)
	h.RegisterRoutes(e, auth.Middleware(verifier, logger))

	return e
}
