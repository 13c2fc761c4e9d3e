package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/core/service"
	"github.com/codestation/lms-web/internal/infrastructure/db/memory"
)

// fakeAPI accepts any login and answers with user.
type fakeAPI struct {
	user domain.Identity
}

func (f *fakeAPI) Do(_ context.Context, req ports.Request) (*ports.Response, error) {
	if req.Method == http.MethodPost && req.Path == "auth/login/" {
		body, err := json.Marshal(map[string]any{"access": "tok", "refresh": "ref", "user": f.user})
		if err != nil {
			return nil, err
		}
		return &ports.Response{Status: http.StatusOK, Body: body}, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAPI) Bind(ports.CredentialSource) {}

func newRegistry(user domain.Identity) *service.Workspaces {
	return service.NewWorkspaces(
		service.WorkspaceConfig{StorageKey: "lms_token", NotificationTTL: time.Minute},
		memory.NewTokenStore(0),
		func(ports.Notifier) service.BindableGateway { return &fakeAPI{user: user} },
		nil,
		zerolog.Nop(),
	)
}

// workspaceAs returns a workspace logged in as role, or anonymous when role
// is empty.
func workspaceAs(t *testing.T, role domain.Role) *service.Workspace {
	t.Helper()
	user := domain.Identity{ID: "7", Username: "ana", Role: role}
	w := newRegistry(user).Get(context.Background(), "client-1")
	if role == "" {
		return w
	}
	if err := w.Session.Login(context.Background(), "ana", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return w
}
