package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/api/middleware"
	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/core/service"
	"github.com/codestation/lms-web/internal/infrastructure/db/memory"
)

// fakeAPI answers login and profile calls for user and records every request.
type fakeAPI struct {
	mu   sync.Mutex
	user domain.Identity
	reqs []ports.Request
}

func (f *fakeAPI) Do(_ context.Context, req ports.Request) (*ports.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	var payload any
	switch {
	case req.Method == http.MethodPost && req.Path == "auth/login/":
		payload = map[string]any{"access": "tok", "refresh": "ref", "user": f.user}
	case req.Path == "auth/profile/":
		payload = f.user
	default:
		return nil, domain.ErrNotFound
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &ports.Response{Status: http.StatusOK, Body: body}, nil
}

func (f *fakeAPI) Bind(ports.CredentialSource) {}

func (f *fakeAPI) last(method, path string) (ports.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.reqs) - 1; i >= 0; i-- {
		if f.reqs[i].Method == method && f.reqs[i].Path == path {
			return f.reqs[i], true
		}
	}
	return ports.Request{}, false
}

// newWorkspace returns a workspace logged in as role, or an anonymous one
// whose API knows a student account when role is empty.
func newWorkspace(t *testing.T, role domain.Role) (*service.Workspace, *fakeAPI) {
	t.Helper()
	userRole := role
	if userRole == "" {
		userRole = domain.RoleStudent
	}
	api := &fakeAPI{user: domain.Identity{ID: "7", Username: "ana", Email: "ana@lms.local", Role: userRole}}
	reg := service.NewWorkspaces(
		service.WorkspaceConfig{StorageKey: "lms_token", NotificationTTL: time.Minute},
		memory.NewTokenStore(0),
		func(ports.Notifier) service.BindableGateway { return api },
		nil,
		zerolog.Nop(),
	)
	t.Cleanup(reg.Close)
	w := reg.Get(context.Background(), "client-1")
	if role != "" {
		if err := w.Session.Login(context.Background(), "ana", "secret"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	return w, api
}

func newContext(w *service.Workspace, method, target string, body io.Reader, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if w != nil {
		middleware.SetWorkspace(c, w)
	}
	return c, rec
}
