package server

import (
	"net/http"
	"strings"

	"github.com/existflow/cowork/internal/table/httptable"
	"github.com/labstack/echo/v4"
)

// authMiddleware checks for a valid API token
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get token from Authorization header
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return jsonError(c, http.StatusUnauthorized, "", "authorization required")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth {
			return jsonError(c, http.StatusUnauthorized, "", "invalid authorization format")
		}

		tokenID, err := s.verifyToken(c.Request().Context(), token)
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, "", "invalid token")
		}

		c.Set("token_id", tokenID)
		return next(c)
	}
}

func jsonError(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, httptable.ErrorResponse{Error: msg, Code: code})
}
