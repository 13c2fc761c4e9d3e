package lmsstub

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const ctxUser = "user"

// authenticate validates the bearer access token and loads its user.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return detail(http.StatusUnauthorized, detailNoCredentials)
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return detail(http.StatusUnauthorized, detailBadToken)
		}

		id, err := s.tokens.parse(parts[1], tokenAccess)
		if err != nil {
			return detail(http.StatusUnauthorized, detailBadToken)
		}
		u, ok := s.store.userByID(id)
		if !ok {
			return detail(http.StatusUnauthorized, detailBadToken)
		}

		c.Set(ctxUser, u)
		return next(c)
	}
}

func requireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := allowed[currentUser(c).Role]; !ok {
				return detail(http.StatusForbidden, detailForbidden)
			}
			return next(c)
		}
	}
}

func currentUser(c echo.Context) *user {
	u, _ := c.Get(ctxUser).(*user)
	if u == nil {
		return &user{}
	}
	return u
}
