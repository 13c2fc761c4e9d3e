package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/api/middleware"
	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/service"
)

// ctxWorkspace returns the workspace injected by the Workspace middleware.
// Its absence means the route was mounted without it.
func ctxWorkspace(c echo.Context) (*service.Workspace, error) {
	w, ok := middleware.WorkspaceFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "workspace not resolved")
	}
	return w, nil
}

// pathID reads an opaque id path parameter.
func pathID(c echo.Context, name string) (domain.ID, error) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		return "", &domain.ValidationError{Field: name, Detail: name + " is required"}
	}
	return domain.ID(id), nil
}

func invalidPayload() error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
}
