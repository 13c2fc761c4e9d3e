package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
)

// stubGateway answers requests from a route table keyed by "METHOD path".
type stubGateway struct {
	mu     sync.Mutex
	routes map[string]func(req ports.Request) (any, error)
	calls  []ports.Request
}

func newStubGateway() *stubGateway {
	return &stubGateway{routes: make(map[string]func(ports.Request) (any, error))}
}

func (g *stubGateway) on(method, path string, fn func(req ports.Request) (any, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[method+" "+path] = fn
}

func (g *stubGateway) reply(method, path string, body any) {
	g.on(method, path, func(ports.Request) (any, error) { return body, nil })
}

func (g *stubGateway) fail(method, path string, err error) {
	g.on(method, path, func(ports.Request) (any, error) { return nil, err })
}

func (g *stubGateway) Do(_ context.Context, req ports.Request) (*ports.Response, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	fn, ok := g.routes[req.Method+" "+req.Path]
	g.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	body, err := fn(req)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &ports.Response{Status: 200, Body: raw}, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *stubGateway) lastCall() ports.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

type stubTokens struct {
	mu    sync.Mutex
	creds map[string]domain.Credential
	err   error
}

func newStubTokens() *stubTokens {
	return &stubTokens{creds: make(map[string]domain.Credential)}
}

func (s *stubTokens) Load(_ context.Context, key string) (domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Credential{}, s.err
	}
	c, ok := s.creds[key]
	if !ok {
		return domain.Credential{}, domain.ErrNoCredential
	}
	return c, nil
}

func (s *stubTokens) Save(_ context.Context, key string, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[key] = cred
	return nil
}

func (s *stubTokens) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, key)
	return nil
}

func (s *stubTokens) get(key string) (domain.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[key]
	return c, ok
}

// manualScheduler fires timers only when advanced.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock and runs every timer that came due, in order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && !t.at.After(s.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	shown []domain.Notification
}

func (n *recordingNotifier) Show(message string, kind domain.NotificationKind) domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	note := domain.Notification{Message: message, Kind: kind}
	n.shown = append(n.shown, note)
	return note
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.shown))
	for i, s := range n.shown {
		out[i] = string(s.Kind) + ": " + s.Message
	}
	return out
}

func identityBody(id domain.ID, username string, role domain.Role) map[string]any {
	return map[string]any{"id": id, "username": username, "email": username + "@example.com", "role": role}
}
