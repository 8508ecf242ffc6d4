package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/domain"
)

// principalKey is the echo context key holding the resolved principal.
const principalKey = "auth.principal"

// Middleware rejects requests without a valid bearer credential before
// any database work happens. The resolved principal is stored on the
// request context for handlers.
func Middleware(verifier Verifier, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing authorization"})
			}
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing authorization"})
			}

			principal, err := verifier.GetUser(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				}
				logger.Error("identity check failed", zap.Error(err))
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Identity provider unavailable"})
			}

			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// PrincipalFrom returns the authenticated principal stored by Middleware.
func PrincipalFrom(c echo.Context) *domain.Principal {
	p, _ := c.Get(principalKey).(*domain.Principal)
	return p
}
