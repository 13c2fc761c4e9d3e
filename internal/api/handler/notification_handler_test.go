package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
)

func TestNotificationHandler_ListAndDismiss(t *testing.T) {
	w, _ := newWorkspace(t, "")
	first := w.Bus.Show("first", domain.KindInfo)
	w.Bus.Show("second", domain.KindError)
	h := NewNotificationHandler(nil, nil)

	c, rec := newContext(w, http.MethodGet, "/v1/notifications", nil, "")
	if err := h.List(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	var resp notificationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Notifications) != 2 || resp.Notifications[0].Message != "first" || resp.Notifications[1].Kind != domain.KindError {
		t.Fatalf("unexpected notifications %+v", resp.Notifications)
	}

	for _, id := range []string{first.ID, first.ID, "unknown"} {
		c, rec := newContext(w, http.MethodDelete, "/v1/notifications/"+id, nil, "")
		c.SetParamNames("id")
		c.SetParamValues(id)
		if err := h.Dismiss(c); err != nil {
			t.Fatalf("dismiss %s: %v", id, err)
		}
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
	if got := w.Bus.List(); len(got) != 1 || got[0].Message != "second" {
		t.Fatalf("unexpected notifications after dismiss %+v", got)
	}
}

func TestNotificationHandler_StreamDisabled(t *testing.T) {
	w, _ := newWorkspace(t, "")
	c, _ := newContext(w, http.MethodGet, "/v1/notifications/stream", nil, "")

	err := NewNotificationHandler(nil, nil).Stream(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
}
