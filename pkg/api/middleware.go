package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"news-digest/pkg/auth"
)

const claimsKey = "claims"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid or expired token")
)

// requireAdmin rejects requests without a valid admin bearer token.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return respondError(c, http.StatusUnauthorized, errMissingToken)
		}

		claims, err := s.tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			s.logger.Debug("rejected admin token", "error", err)
			return respondError(c, http.StatusUnauthorized, errInvalidToken)
		}
		if !claims.IsAdmin() {
			return respondError(c, http.StatusForbidden, auth.ErrNotAdmin)
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}
