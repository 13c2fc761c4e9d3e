package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
	"github.com/codestation/lms-web/internal/core/ports"
	"github.com/codestation/lms-web/internal/pkg/metrics"
)

// BindableGateway is a gateway that learns its credential source after it is
// built, since the session store itself needs the gateway.
type BindableGateway interface {
	ports.Gateway
	Bind(src ports.CredentialSource)
}

// GatewayFactory builds the gateway of one workspace.
type GatewayFactory func(notifier ports.Notifier) BindableGateway

type WorkspaceConfig struct {
	// StorageKey prefixes the persisted credential key of every client.
	StorageKey      string
	NotificationTTL time.Duration
}

// Workspace is everything one browser client owns: its session, auth modal,
// notifications and gateway.
type Workspace struct {
	ClientID string
	Session  *SessionStore
	Modal    *ModalCoordinator
	Bus      *NotificationBus
	Auth     *AuthFlow
	LMS      *LMSService

	restoreOnce sync.Once
	cancels     []func()

	mu       sync.Mutex
	lastSeen time.Time
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) close() {
	for _, cancel := range w.cancels {
		cancel()
	}
	w.Bus.Close()
}

// Workspaces is the registry of live workspaces, keyed by client id.
type Workspaces struct {
	cfg        WorkspaceConfig
	tokens     ports.TokenStore
	newGateway GatewayFactory
	sink       ports.EventSink
	now        func() time.Time
	log        zerolog.Logger

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaces builds an empty registry. sink may be nil when nothing
// streams notifications.
func NewWorkspaces(cfg WorkspaceConfig, tokens ports.TokenStore, newGateway GatewayFactory, sink ports.EventSink, log zerolog.Logger) *Workspaces {
	return &Workspaces{
		cfg:        cfg,
		tokens:     tokens,
		newGateway: newGateway,
		sink:       sink,
		now:        time.Now,
		log:        log,
		items:      make(map[string]*Workspace),
	}
}

// Get returns the workspace of clientID, creating it and restoring its
// persisted session on first use. A failed restore leaves it anonymous.
func (r *Workspaces) Get(ctx context.Context, clientID string) *Workspace {
	r.mu.Lock()
	w, ok := r.items[clientID]
	if !ok {
		w = r.build(clientID)
		r.items[clientID] = w
		metrics.WorkspacesActive.Set(float64(len(r.items)))
	}
	r.mu.Unlock()

	w.touch(r.now())
	w.restoreOnce.Do(func() {
		// Outlives the first request so a dropped connection does not leave the
		// workspace anonymous for good.
		if err := w.Session.Restore(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn().Err(err).Str("client_id", clientID).Msg("session restore failed")
		}
	})
	return w
}

// Lookup returns an existing workspace without creating one.
func (r *Workspaces) Lookup(clientID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.items[clientID]
	return w, ok
}

// Dismiss removes a notification from the client's current workspace and
// counts as activity. Streams outlive swept workspaces, so they dismiss here
// rather than through a bus captured at connect time.
func (r *Workspaces) Dismiss(clientID, id string) bool {
	w, ok := r.Lookup(clientID)
	if !ok {
		return false
	}
	w.touch(r.now())
	return w.Bus.Dismiss(id)
}

func (r *Workspaces) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep drops workspaces untouched for longer than idle. Their credentials
// stay persisted, so the next request restores them.
func (r *Workspaces) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var dropped []*Workspace
	for id, w := range r.items {
		if w.idleSince().Before(cutoff) {
			dropped = append(dropped, w)
			delete(r.items, id)
		}
	}
	metrics.WorkspacesActive.Set(float64(len(r.items)))
	r.mu.Unlock()

	for _, w := range dropped {
		w.close()
	}
	if len(dropped) > 0 {
		r.log.Debug().Int("dropped", len(dropped)).Msg("idle workspaces swept")
	}
	return len(dropped)
}

// Close drops every workspace.
func (r *Workspaces) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	metrics.WorkspacesActive.Set(0)
	r.mu.Unlock()

	for _, w := range items {
		w.close()
	}
}

func (r *Workspaces) build(clientID string) *Workspace {
	log := r.log.With().Str("client_id", clientID).Logger()

	bus := NewNotificationBus(r.cfg.NotificationTTL, log)
	gw := r.newGateway(bus)
	session := NewSessionStore(gw, r.tokens, r.cfg.StorageKey+":"+clientID, log)
	gw.Bind(session)
	modal := NewModalCoordinator()

	w := &Workspace{
		ClientID: clientID,
		Session:  session,
		Modal:    modal,
		Bus:      bus,
		Auth:     NewAuthFlow(session, modal, bus, log),
		LMS:      NewLMSService(gw, session, modal, bus, log),
	}

	w.cancels = append(w.cancels, session.Subscribe(func(c domain.SessionChange) {
		metrics.SessionTransitionsTotal.WithLabelValues(string(c.Event)).Inc()
	}))
	w.cancels = append(w.cancels, bus.Subscribe(func(ev domain.NotificationEvent) {
		if ev.Type == domain.NotificationShown {
			metrics.NotificationsShownTotal.WithLabelValues(string(ev.Notification.Kind)).Inc()
		}
		if r.sink != nil {
			r.sink.Deliver(clientID, ev)
		}
	}))
	return w
}
