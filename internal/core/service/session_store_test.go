package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
)

const testKey = "lms_token:client-1"

func newTestStore() (*SessionStore, *stubGateway, *stubTokens) {
	gw := newStubGateway()
	tokens := newStubTokens()
	return NewSessionStore(gw, tokens, testKey, zerolog.Nop()), gw, tokens
}

func stubLogin(gw *stubGateway, access string, identity map[string]any) {
	gw.on(http.MethodPost, pathLogin, func(req ports.Request) (any, error) {
		form := req.JSON.(domain.LoginForm)
		if form.Password != "right" {
			return nil, domain.ErrUnauthorized
		}
		return map[string]any{"access": access, "refresh": "r-" + access}, nil
	})
	gw.on(http.MethodGet, pathProfile, func(req ports.Request) (any, error) {
		if req.Credential != nil && req.Credential.Access != access {
			return nil, domain.ErrUnauthorized
		}
		return identity, nil
	})
}

func TestSessionStore_Login_Success(t *testing.T) {
	store, gw, tokens := newTestStore()
	stubLogin(gw, "acc-1", identityBody("7", "ana", domain.RoleStudent))

	var events []domain.SessionEvent
	store.Subscribe(func(c domain.SessionChange) { events = append(events, c.Event) })

	if err := store.Login(context.Background(), "ana", "right"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	id := store.Identity()
	if id == nil || id.ID != "7" || id.Role != domain.RoleStudent {
		t.Fatalf("unexpected identity %+v", id)
	}
	cred, _, ok := store.Credential()
	if !ok || cred.Access != "acc-1" || cred.Refresh != "r-acc-1" {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if saved, ok := tokens.get(testKey); !ok || saved.Access != "acc-1" {
		t.Fatalf("credential not persisted: %+v", saved)
	}
	if len(events) != 1 || events[0] != domain.SessionLoggedIn {
		t.Fatalf("expected one logged_in event before return, got %v", events)
	}
	// login itself must be anonymous; profile uses the new credential explicitly.
	if !gw.calls[0].Anonymous || gw.calls[1].Credential == nil {
		t.Fatalf("unexpected request shapes: %+v", gw.calls)
	}
}

func TestSessionStore_Login_EmbeddedUser(t *testing.T) {
	store, gw, _ := newTestStore()
	gw.reply(http.MethodPost, pathLogin, map[string]any{
		"access": "a", "refresh": "r",
		"user": identityBody("3", "ian", domain.RoleInstructor),
	})

	if err := store.Login(context.Background(), "ian", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if gw.callCount() != 1 {
		t.Fatalf("profile must not be fetched when embedded, got %d calls", gw.callCount())
	}
	if store.Identity().Role != domain.RoleInstructor {
		t.Fatalf("unexpected identity %+v", store.Identity())
	}
}

func TestSessionStore_Login_FailureKeepsPriorState(t *testing.T) {
	store, gw, tokens := newTestStore()
	stubLogin(gw, "acc-1", identityBody("7", "ana", domain.RoleStudent))
	if err := store.Login(context.Background(), "ana", "right"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	before := store.Current()

	changes := 0
	store.Subscribe(func(domain.SessionChange) { changes++ })

	err := store.Login(context.Background(), "ana", "wrong")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	after := store.Current()
	if after == nil || after.Identity != before.Identity || after.Credential != before.Credential || after.Epoch != before.Epoch {
		t.Fatalf("prior session changed: %+v -> %+v", before, after)
	}
	if changes != 0 {
		t.Fatalf("failed login notified subscribers")
	}
	if saved, _ := tokens.get(testKey); saved.Access != "acc-1" {
		t.Fatalf("persisted credential changed: %+v", saved)
	}
}

func TestSessionStore_Login_ValidationBeforeNetwork(t *testing.T) {
	store, gw, _ := newTestStore()
	err := store.Login(context.Background(), "", "pw")
	if _, ok := domain.IsValidation(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gw.callCount() != 0 {
		t.Fatal("no request may be sent for an invalid form")
	}
}

func TestSessionStore_Login_ProfileFailureCommitsNothing(t *testing.T) {
	store, gw, tokens := newTestStore()
	gw.reply(http.MethodPost, pathLogin, map[string]any{"access": "a"})
	gw.fail(http.MethodGet, pathProfile, &domain.RequestError{Status: 502, Message: "bad gateway"})

	err := store.Login(context.Background(), "ana", "pw")
	if !errors.Is(err, domain.ErrRequestFailed) {
		t.Fatalf("expected RequestFailed, got %v", err)
	}
	if store.Identity() != nil {
		t.Fatal("identity committed without profile")
	}
	if _, ok := tokens.get(testKey); ok {
		t.Fatal("credential persisted without identity")
	}
}

func TestSessionStore_Register_NeverAuthenticates(t *testing.T) {
	store, gw, _ := newTestStore()
	var sent registerPayload
	gw.on(http.MethodPost, pathRegister, func(req ports.Request) (any, error) {
		sent = req.JSON.(registerPayload)
		return map[string]any{"id": 9, "username": "neo"}, nil
	})

	changes := 0
	store.Subscribe(func(domain.SessionChange) { changes++ })

	err := store.Register(context.Background(), domain.RegisterForm{
		Username: "neo", Email: "neo@example.com",
		Password: "pw", ConfirmPassword: "pw",
		Role: domain.RoleInstructor,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if store.Current() != nil || changes != 0 {
		t.Fatal("registration must not mutate the session")
	}
	if sent.Username != "neo" || sent.Role != domain.RoleInstructor || sent.Password != "pw" {
		t.Fatalf("unexpected payload %+v", sent)
	}
}

func TestSessionStore_Register_MismatchSkipsNetwork(t *testing.T) {
	store, gw, _ := newTestStore()
	err := store.Register(context.Background(), domain.RegisterForm{
		Username: "neo", Email: "neo@example.com",
		Password: "a", ConfirmPassword: "b", Role: domain.RoleStudent,
	})
	ve, ok := domain.IsValidation(err)
	if !ok || ve.Detail != "Passwords do not match" {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if gw.callCount() != 0 {
		t.Fatal("mismatch must be caught before any request")
	}
}

func TestSessionStore_Logout_Idempotent(t *testing.T) {
	store, gw, tokens := newTestStore()
	stubLogin(gw, "acc-1", identityBody("7", "ana", domain.RoleStudent))
	_ = store.Login(context.Background(), "ana", "right")

	var events []domain.SessionEvent
	store.Subscribe(func(c domain.SessionChange) { events = append(events, c.Event) })

	for i := 0; i < 2; i++ {
		if err := store.Logout(context.Background()); err != nil {
			t.Fatalf("Logout #%d: %v", i+1, err)
		}
	}
	if store.Current() != nil {
		t.Fatal("session survived logout")
	}
	if _, ok := tokens.get(testKey); ok {
		t.Fatal("credential survived logout")
	}
	if len(events) != 1 || events[0] != domain.SessionLoggedOut {
		t.Fatalf("expected a single logged_out event, got %v", events)
	}
}

func TestSessionStore_Restore(t *testing.T) {
	t.Run("valid credential", func(t *testing.T) {
		store, gw, tokens := newTestStore()
		_ = tokens.Save(context.Background(), testKey, domain.Credential{Access: "acc-1"})
		stubLogin(gw, "acc-1", identityBody("1", "root", domain.RoleAdmin))

		if err := store.Restore(context.Background()); err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if id := store.Identity(); id == nil || id.Username != "root" {
			t.Fatalf("unexpected identity %+v", id)
		}
	})

	t.Run("nothing persisted", func(t *testing.T) {
		store, gw, _ := newTestStore()
		if err := store.Restore(context.Background()); err != nil {
			t.Fatalf("Restore: %v", err)
		}
		if store.Current() != nil || gw.callCount() != 0 {
			t.Fatal("restore without credential must stay anonymous and silent")
		}
	})

	t.Run("rejected credential is cleared", func(t *testing.T) {
		store, gw, tokens := newTestStore()
		_ = tokens.Save(context.Background(), testKey, domain.Credential{Access: "stale"})
		stubLogin(gw, "acc-1", identityBody("1", "root", domain.RoleAdmin))

		if err := store.Restore(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if store.Current() != nil {
			t.Fatal("rejected credential produced a session")
		}
		if _, ok := tokens.get(testKey); ok {
			t.Fatal("rejected credential was kept")
		}
	})

	t.Run("transport failure keeps credential", func(t *testing.T) {
		store, gw, tokens := newTestStore()
		_ = tokens.Save(context.Background(), testKey, domain.Credential{Access: "acc-1"})
		gw.fail(http.MethodGet, pathProfile, &domain.RequestError{Message: "connection refused"})

		if err := store.Restore(context.Background()); !errors.Is(err, domain.ErrRequestFailed) {
			t.Fatalf("expected RequestFailed, got %v", err)
		}
		if store.Current() != nil {
			t.Fatal("unverified credential produced a session")
		}
		if _, ok := tokens.get(testKey); !ok {
			t.Fatal("credential dropped on transport failure")
		}
	})
}

func TestSessionStore_RestoreRejectionKeepsConcurrentLogin(t *testing.T) {
	store, gw, tokens := newTestStore()
	_ = tokens.Save(context.Background(), testKey, domain.Credential{Access: "old"})

	fetching := make(chan struct{})
	release := make(chan struct{})
	gw.reply(http.MethodPost, pathLogin, map[string]any{"access": "new", "refresh": "r-new"})
	gw.on(http.MethodGet, pathProfile, func(req ports.Request) (any, error) {
		if req.Credential != nil && req.Credential.Access == "old" {
			close(fetching)
			<-release
			return nil, domain.ErrUnauthorized
		}
		return identityBody("7", "ana", domain.RoleStudent), nil
	})

	restored := make(chan error, 1)
	go func() { restored <- store.Restore(context.Background()) }()
	<-fetching

	if err := store.Login(context.Background(), "ana", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	close(release)
	if err := <-restored; !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized from restore, got %v", err)
	}

	if id := store.Identity(); id == nil || id.Username != "ana" {
		t.Fatalf("login lost to the rejected restore: %+v", id)
	}
	saved, ok := tokens.get(testKey)
	if !ok || saved.Access != "new" {
		t.Fatalf("fresh credential not kept in storage: %+v ok=%v", saved, ok)
	}
}

func TestSessionStore_InvalidateOnlyCurrentEpoch(t *testing.T) {
	store, gw, tokens := newTestStore()
	stubLogin(gw, "acc-1", identityBody("7", "ana", domain.RoleStudent))
	_ = store.Login(context.Background(), "ana", "right")

	_, epoch, _ := store.Credential()
	if store.Invalidate(context.Background(), epoch+1) {
		t.Fatal("invalidated with a foreign epoch")
	}
	if !store.Invalidate(context.Background(), epoch) {
		t.Fatal("current epoch must invalidate")
	}
	if store.Invalidate(context.Background(), epoch) {
		t.Fatal("second invalidation of the same epoch must be a no-op")
	}
	if store.Current() != nil {
		t.Fatal("session survived invalidation")
	}
	if _, ok := tokens.get(testKey); ok {
		t.Fatal("credential survived invalidation")
	}
}

func TestSessionStore_Rotate(t *testing.T) {
	store, gw, tokens := newTestStore()
	stubLogin(gw, "acc-1", identityBody("7", "ana", domain.RoleStudent))
	_ = store.Login(context.Background(), "ana", "right")

	_, epoch, _ := store.Credential()
	if !store.Rotate(context.Background(), epoch, domain.Credential{Access: "acc-2"}) {
		t.Fatal("rotation of current epoch failed")
	}
	cred, next, _ := store.Credential()
	if cred.Access != "acc-2" || cred.Refresh != "r-acc-1" || next == epoch {
		t.Fatalf("unexpected credential after rotate: %+v epoch %d", cred, next)
	}
	if saved, _ := tokens.get(testKey); saved.Access != "acc-2" {
		t.Fatalf("rotated credential not persisted: %+v", saved)
	}
	if store.Rotate(context.Background(), epoch, domain.Credential{Access: "acc-3"}) {
		t.Fatal("stale epoch must not rotate")
	}
}

func TestSessionStore_Reload(t *testing.T) {
	store, gw, _ := newTestStore()
	if err := store.Reload(context.Background()); !errors.Is(err, domain.ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired when anonymous, got %v", err)
	}

	stubLogin(gw, "acc-1", identityBody("7", "ana", domain.RoleStudent))
	_ = store.Login(context.Background(), "ana", "right")
	gw.reply(http.MethodGet, pathProfile, map[string]any{"id": 7, "username": "ana", "first_name": "Ana", "role": "student"})

	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if store.Identity().FirstName != "Ana" {
		t.Fatalf("identity not refreshed: %+v", store.Identity())
	}
	if gw.lastCall().Credential != nil {
		t.Fatal("reload must go through the session credential")
	}
}
