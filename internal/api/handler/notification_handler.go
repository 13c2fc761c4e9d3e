package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/api/stream"
	"github.com/codestation/lms-web/internal/core/service"
)

// NotificationHandler lists, dismisses and streams the caller's notifications.
type NotificationHandler struct {
	hub        *stream.Hub
	workspaces *service.Workspaces
}

func NewNotificationHandler(hub *stream.Hub, workspaces *service.Workspaces) *NotificationHandler {
	return &NotificationHandler{hub: hub, workspaces: workspaces}
}

// List returns visible notifications in creation order.
//
// @Summary      Visible notifications
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  notificationsResponse
// @Router       /v1/notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notificationsResponse{Notifications: w.Bus.List()})
}

// Dismiss removes a notification early. Unknown ids are ignored.
//
// @Summary      Dismiss a notification
// @Tags         notifications
// @Param        id  path  string  true  "Notification id"
// @Success      204
// @Router       /v1/notifications/{id} [delete]
func (h *NotificationHandler) Dismiss(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	w.Bus.Dismiss(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// Stream upgrades to a websocket that receives a snapshot followed by every
// shown and dismissed event.
//
// @Summary      Notification stream (websocket)
// @Tags         notifications
// @Success      101
// @Router       /v1/notifications/stream [get]
func (h *NotificationHandler) Stream(c echo.Context) error {
	w, err := ctxWorkspace(c)
	if err != nil {
		return err
	}
	if h.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "notification stream disabled")
	}
	dismiss := w.Bus.Dismiss
	if h.workspaces != nil {
		clientID := w.ClientID
		dismiss = func(id string) bool { return h.workspaces.Dismiss(clientID, id) }
	}
	// The upgrader has already answered the request when it fails.
	if err := h.hub.Attach(c.Response(), c.Request(), w.ClientID, w.Bus.List(), dismiss); err != nil {
		c.Logger().Debugf("stream upgrade failed: %v", err)
	}
	return nil
}
