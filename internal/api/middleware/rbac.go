package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/rbac"
)

// Require rejects callers whose role can never perform action. Anonymous
// callers get the login modal opened. Ownership is checked later, once the
// target is known.
func Require(action rbac.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			w, ok := WorkspaceFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusInternalServerError, "workspace not resolved")
			}

			identity := w.Session.Identity()
			if rbac.RoleAllows(identity, action) {
				return next(c)
			}
			if identity == nil {
				_ = w.Modal.Open(domain.ViewLogin)
				return domain.ErrLoginRequired
			}
			return domain.ErrForbidden
		}
	}
}
