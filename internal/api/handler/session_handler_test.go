package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/codestation/lms-web/internal/core/domain"
)

func TestSessionHandler_LoginAndLogout(t *testing.T) {
	w, api := newWorkspace(t, "")
	h := NewSessionHandler()
	if err := w.Modal.Open(domain.ViewLogin); err != nil {
		t.Fatalf("open: %v", err)
	}

	c, rec := newContext(w, http.MethodPost, "/v1/session/login",
		strings.NewReader(`{"username":"ana","password":"secret"}`), echo.MIMEApplicationJSON)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok := api.last(http.MethodPost, "auth/login/"); !ok {
		t.Fatal("login was not forwarded")
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Authenticated || resp.User == nil || resp.User.Role != domain.RoleStudent {
		t.Fatalf("unexpected session %+v", resp)
	}
	if !resp.Capabilities.Enroll || resp.Capabilities.ManageUsers {
		t.Fatalf("unexpected capabilities %+v", resp.Capabilities)
	}
	if resp.Modal.IsOpen {
		t.Fatal("modal should close after login")
	}

	for i := 0; i < 2; i++ {
		c, rec := newContext(w, http.MethodPost, "/v1/session/logout", nil, "")
		if err := h.Logout(c); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
		if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), `"user"`) {
			t.Fatalf("unexpected logout response %d %s", rec.Code, rec.Body.String())
		}
	}
}

func TestSessionHandler_LoginRequiresFields(t *testing.T) {
	w, api := newWorkspace(t, "")
	c, _ := newContext(w, http.MethodPost, "/v1/session/login",
		strings.NewReader(`{"username":"ana"}`), echo.MIMEApplicationJSON)

	err := NewSessionHandler().Login(c)
	if ve, ok := domain.IsValidation(err); !ok || ve.Field != "password" {
		t.Fatalf("expected password validation error, got %v", err)
	}
	if _, ok := api.last(http.MethodPost, "auth/login/"); ok {
		t.Fatal("invalid form reached the api")
	}
	if w.Session.Identity() != nil {
		t.Fatal("session must stay anonymous")
	}
}

func TestSessionHandler_InvalidPayload(t *testing.T) {
	w, _ := newWorkspace(t, "")
	c, _ := newContext(w, http.MethodPost, "/v1/session/login",
		strings.NewReader(`{"username":`), echo.MIMEApplicationJSON)

	err := NewSessionHandler().Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest || he.Message != "invalid payload" {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func TestSessionHandler_RegisterMismatchSkipsAPI(t *testing.T) {
	w, api := newWorkspace(t, "")
	if err := w.Modal.Open(domain.ViewRegister); err != nil {
		t.Fatalf("open: %v", err)
	}
	c, _ := newContext(w, http.MethodPost, "/v1/session/register",
		strings.NewReader(`{"username":"neo","email":"neo@lms.local","password":"a","confirm_password":"b","role":"student"}`),
		echo.MIMEApplicationJSON)

	if _, ok := domain.IsValidation(NewSessionHandler().Register(c)); !ok {
		t.Fatal("expected validation error")
	}
	if _, ok := api.last(http.MethodPost, "auth/register/"); ok {
		t.Fatal("mismatched passwords reached the api")
	}
	notes := w.Bus.List()
	if len(notes) != 1 || notes[0].Message != "Passwords do not match" {
		t.Fatalf("unexpected notifications %+v", notes)
	}
	if w.Modal.State().View != domain.ViewRegister {
		t.Fatal("modal must stay on register")
	}
}
