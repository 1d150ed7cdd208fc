package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/bdradar/internal/auth"
)

const headerAPIToken = "X-API-Token"

// requireToken admits requests carrying the token that matches the
// configured hash. With no hash configured every request passes.
func (s *Server) requireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.TrimSpace(s.opts.TokenHash) == "" {
				return next(c)
			}

			token, found := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !found {
				token = strings.TrimSpace(c.Request().Header.Get(headerAPIToken))
			}
			if token == "" || !auth.VerifyToken(token, s.opts.TokenHash) {
				return unauthorizedResponse(c)
			}
			return next(c)
		}
	}
}

func unauthorizedResponse(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="bdradar"`)
	return fail(c, http.StatusUnauthorized, "Unauthorized", nil)
}
