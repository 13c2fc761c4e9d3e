package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/service"
)

const workspaceKey = "workspace"

type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Workspace resolves the browser's client cookie to its workspace, issuing a
// new client id when the cookie is missing or malformed.
func Workspace(reg *service.Workspaces, cfg CookieConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := ""
			if ck, err := c.Cookie(cfg.Name); err == nil {
				if id, err := uuid.Parse(ck.Value); err == nil {
					clientID = id.String()
				}
			}
			if clientID == "" {
				clientID = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     cfg.Name,
					Value:    clientID,
					Path:     "/",
					MaxAge:   int(cfg.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(workspaceKey, reg.Get(c.Request().Context(), clientID))
			return next(c)
		}
	}
}

// WorkspaceFrom returns the workspace resolved by Workspace.
func WorkspaceFrom(c echo.Context) (*service.Workspace, bool) {
	w, ok := c.Get(workspaceKey).(*service.Workspace)
	return w, ok && w != nil
}

// SetWorkspace is used by handlers mounted without the Workspace middleware
// and by tests.
func SetWorkspace(c echo.Context, w *service.Workspace) {
	c.Set(workspaceKey, w)
}
