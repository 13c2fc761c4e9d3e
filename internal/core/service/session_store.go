package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/core/validation"
)

const (
	pathLogin         = "auth/login/"
	pathRegister      = "auth/register/"
	pathPasswordReset = "auth/password-reset/"
	pathProfile       = "auth/profile/"
)

// loginResponse is what auth/login/ returns. User is only present on APIs
// that embed the profile; otherwise it is fetched separately.
type loginResponse struct {
	Access  string           `json:"access"`
	Refresh string           `json:"refresh"`
	User    *domain.Identity `json:"user"`
}

// registerPayload omits the confirmation field, which never leaves the client.
type registerPayload struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
}

// SessionStore is the single source of truth for who is logged in within a
// workspace. The in-memory Identity and Credential always change together.
type SessionStore struct {
	gw     ports.Gateway
	tokens ports.TokenStore
	key    string
	now    func() time.Time
	log    zerolog.Logger

	mu      sync.Mutex
	session *domain.Session
	epoch   uint64
	subs    map[int]func(domain.SessionChange)
	nextSub int
}

// NewSessionStore builds an anonymous store persisting its credential under key.
func NewSessionStore(gw ports.Gateway, tokens ports.TokenStore, key string, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		gw:     gw,
		tokens: tokens,
		key:    key,
		now:    time.Now,
		log:    log,
		subs:   make(map[int]func(domain.SessionChange)),
	}
}

// Login authenticates against the API. On any failure the prior session is
// left exactly as it was.
func (s *SessionStore) Login(ctx context.Context, username, password string) error {
	form := domain.LoginForm{Username: username, Password: password}
	if err := validation.Struct(form); err != nil {
		return err
	}

	resp, err := s.gw.Do(ctx, ports.Request{
		Method:    http.MethodPost,
		Path:      pathLogin,
		JSON:      form,
		Anonymous: true,
	})
	if err != nil {
		if _, ok := domain.IsValidation(err); ok || errors.Is(err, domain.ErrUnauthorized) {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("login: %w", err)
	}

	var out loginResponse
	if err := resp.Decode(&out); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if out.Access == "" {
		return &domain.RequestError{Status: resp.Status, Message: "login response carried no access token"}
	}
	cred := domain.Credential{Access: out.Access, Refresh: out.Refresh}

	identity := out.User
	if identity == nil {
		identity, err = s.fetchIdentity(ctx, &cred)
		if err != nil {
			return fmt.Errorf("login: fetch profile: %w", err)
		}
	}

	s.commitPersisted(ctx, identity, cred, domain.SessionLoggedIn)
	s.log.Info().Str("username", identity.Username).Str("role", string(identity.Role)).Msg("logged in")
	return nil
}

// Register forwards the registration payload. It never authenticates the
// caller and never touches the session.
func (s *SessionStore) Register(ctx context.Context, form domain.RegisterForm) error {
	if form.Password != form.ConfirmPassword {
		return &domain.ValidationError{Field: "confirm_password", Detail: "Passwords do not match"}
	}
	if err := validation.Struct(form); err != nil {
		return err
	}
	_, err := s.gw.Do(ctx, ports.Request{
		Method: http.MethodPost,
		Path:   pathRegister,
		JSON: registerPayload{
			Username:  form.Username,
			Email:     form.Email,
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Password:  form.Password,
			Role:      form.Role,
		},
		Anonymous: true,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// RequestPasswordReset asks the API to mail a reset link. The API answers the
// same way whether or not the account exists.
func (s *SessionStore) RequestPasswordReset(ctx context.Context, form domain.ForgotPasswordForm) error {
	if err := validation.Struct(form); err != nil {
		return err
	}
	_, err := s.gw.Do(ctx, ports.Request{
		Method:    http.MethodPost,
		Path:      pathPasswordReset,
		JSON:      form,
		Anonymous: true,
	})
	if err != nil {
		return fmt.Errorf("password reset: %w", err)
	}
	return nil
}

// Logout clears memory and durable storage. Safe to call when anonymous.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasAuthenticated := s.session != nil
	s.session = nil
	s.epoch++
	s.mu.Unlock()

	err := s.tokens.Clear(ctx, s.key)
	if wasAuthenticated {
		s.publish(domain.SessionChange{Event: domain.SessionLoggedOut})
	}
	if err != nil {
		return fmt.Errorf("logout: clear credential: %w", err)
	}
	return nil
}

// Restore revives a persisted credential. A credential the API rejects is
// dropped; one that could not be checked is kept for the next attempt while
// the store stays anonymous.
func (s *SessionStore) Restore(ctx context.Context) error {
	cred, err := s.tokens.Load(ctx, s.key)
	if errors.Is(err, domain.ErrNoCredential) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore: load credential: %w", err)
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	identity, err := s.fetchIdentity(ctx, &cred)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNotFound) {
			s.dropRejected(ctx, epoch)
		}
		return fmt.Errorf("restore: %w", err)
	}

	if !s.commitIf(epoch, identity, cred, domain.SessionRestored) {
		s.log.Debug().Msg("restore superseded by a newer session transition")
	}
	return nil
}

// Reload re-fetches the current Identity with the session credential.
func (s *SessionStore) Reload(ctx context.Context) error {
	_, epoch, ok := s.Credential()
	if !ok {
		return domain.ErrLoginRequired
	}
	identity, err := s.fetchIdentity(ctx, nil)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	s.mu.Lock()
	if s.session == nil || s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.session.Identity = *identity
	s.mu.Unlock()

	s.publish(domain.SessionChange{Event: domain.SessionReloaded, Identity: cloneIdentity(identity)})
	return nil
}

// Current returns a copy of the session, or nil when anonymous.
func (s *SessionStore) Current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Identity returns a copy of the current Identity, or nil when anonymous.
func (s *SessionStore) Identity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return cloneIdentity(&s.session.Identity)
}

// Subscribe registers fn for every transition. fn runs synchronously on the
// goroutine that caused the transition. The returned func unsubscribes.
func (s *SessionStore) Subscribe(fn func(domain.SessionChange)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Credential implements ports.CredentialSource.
func (s *SessionStore) Credential() (domain.Credential, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Credential{}, s.epoch, false
	}
	return s.session.Credential, s.epoch, true
}

// Rotate implements ports.CredentialSource.
func (s *SessionStore) Rotate(ctx context.Context, epoch uint64, cred domain.Credential) bool {
	s.mu.Lock()
	if s.session == nil || s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	if cred.Refresh == "" {
		cred.Refresh = s.session.Credential.Refresh
	}
	s.epoch++
	s.session.Credential = cred
	s.session.Epoch = s.epoch
	identity := s.session.Identity
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx), cred)
	s.publish(domain.SessionChange{Event: domain.SessionRotated, Identity: &identity})
	return true
}

// Invalidate implements ports.CredentialSource.
func (s *SessionStore) Invalidate(ctx context.Context, epoch uint64) bool {
	s.mu.Lock()
	if s.session == nil || s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.session = nil
	s.epoch++
	s.mu.Unlock()

	if err := s.tokens.Clear(context.WithoutCancel(ctx), s.key); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear invalidated credential")
	}
	s.log.Info().Uint64("epoch", epoch).Msg("session invalidated")
	s.publish(domain.SessionChange{Event: domain.SessionInvalidated})
	return true
}

func (s *SessionStore) fetchIdentity(ctx context.Context, cred *domain.Credential) (*domain.Identity, error) {
	resp, err := s.gw.Do(ctx, ports.Request{Method: http.MethodGet, Path: pathProfile, Credential: cred})
	if err != nil {
		return nil, err
	}
	var identity domain.Identity
	if err := resp.Decode(&identity); err != nil {
		return nil, err
	}
	if identity.Username == "" {
		return nil, &domain.RequestError{Status: resp.Status, Message: "profile response carried no username"}
	}
	return &identity, nil
}

func (s *SessionStore) persist(ctx context.Context, cred domain.Credential) {
	if err := s.tokens.Save(ctx, s.key, cred); err != nil {
		// The in-memory session still works; only restart survival is lost.
		s.log.Warn().Err(err).Msg("failed to persist credential")
	}
}

// commitPersisted saves cred and installs the session under one hold of mu,
// so no epoch check can observe the new credential stored but not installed.
func (s *SessionStore) commitPersisted(ctx context.Context, identity *domain.Identity, cred domain.Credential, ev domain.SessionEvent) {
	s.mu.Lock()
	s.persist(ctx, cred)
	s.install(identity, cred)
	s.mu.Unlock()
	s.publish(domain.SessionChange{Event: ev, Identity: cloneIdentity(identity)})
}

// dropRejected clears a credential the API refused, unless a transition since
// epoch has already replaced it.
func (s *SessionStore) dropRejected(ctx context.Context, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.log.Debug().Msg("rejected credential already superseded")
		return
	}
	if err := s.tokens.Clear(ctx, s.key); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear rejected credential")
	}
}

func (s *SessionStore) commitIf(epoch uint64, identity *domain.Identity, cred domain.Credential, ev domain.SessionEvent) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.install(identity, cred)
	s.mu.Unlock()
	s.publish(domain.SessionChange{Event: ev, Identity: cloneIdentity(identity)})
	return true
}

// install must be called with mu held.
func (s *SessionStore) install(identity *domain.Identity, cred domain.Credential) {
	s.epoch++
	s.session = &domain.Session{
		Identity:   *identity,
		Credential: cred,
		Epoch:      s.epoch,
		StartedAt:  s.now().UTC(),
	}
}

func (s *SessionStore) publish(change domain.SessionChange) {
	s.mu.Lock()
	fns := make([]func(domain.SessionChange), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func cloneIdentity(id *domain.Identity) *domain.Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
