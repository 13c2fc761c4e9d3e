package service

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/codestation/lms-web/internal/core/domain"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 5 * time.Second

// Timer is the cancel handle of a scheduled expiry.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. The default uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type BusOption func(*NotificationBus)

func WithScheduler(s Scheduler) BusOption { return func(b *NotificationBus) { b.sched = s } }

func WithClock(now func() time.Time) BusOption { return func(b *NotificationBus) { b.now = now } }

type pending struct {
	n     domain.Notification
	timer Timer
}

// NotificationBus holds the transient notifications of a workspace in
// creation order and expires each one after the configured TTL.
type NotificationBus struct {
	ttl   time.Duration
	sched Scheduler
	now   func() time.Time
	log   zerolog.Logger

	mu      sync.Mutex
	items   []pending
	closed  bool
	subs    map[int]func(domain.NotificationEvent)
	nextSub int
}

func NewNotificationBus(ttl time.Duration, log zerolog.Logger, opts ...BusOption) *NotificationBus {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	b := &NotificationBus{
		ttl:   ttl,
		sched: realScheduler{},
		now:   time.Now,
		log:   log,
		subs:  make(map[int]func(domain.NotificationEvent)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Show appends a notification and schedules its removal. It never blocks on
// the expiry. Unknown kinds are shown as info.
func (b *NotificationBus) Show(message string, kind domain.NotificationKind) domain.Notification {
	if !kind.Valid() {
		kind = domain.KindInfo
	}
	now := b.now().UTC()
	n := domain.Notification{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Message:   message,
		Kind:      kind,
		CreatedAt: now,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return n
	}
	id := n.ID
	timer := b.sched.AfterFunc(b.ttl, func() { b.Dismiss(id) })
	b.items = append(b.items, pending{n: n, timer: timer})
	b.mu.Unlock()

	b.log.Debug().Str("id", n.ID).Str("kind", string(kind)).Msg(message)
	b.publish(domain.NotificationEvent{Type: domain.NotificationShown, Notification: n})
	return n
}

// Dismiss removes a notification before it expires. Unknown or already
// removed ids are ignored. It reports whether anything was removed.
func (b *NotificationBus) Dismiss(id string) bool {
	b.mu.Lock()
	idx := -1
	for i, p := range b.items {
		if p.n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return false
	}
	p := b.items[idx]
	b.items = append(b.items[:idx:idx], b.items[idx+1:]...)
	b.mu.Unlock()

	p.timer.Stop()
	b.publish(domain.NotificationEvent{Type: domain.NotificationDismissed, Notification: p.n})
	return true
}

// List returns the visible notifications oldest first.
func (b *NotificationBus) List() []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Notification, len(b.items))
	for i, p := range b.items {
		out[i] = p.n
	}
	return out
}

// Subscribe registers fn for shown and dismissed events.
func (b *NotificationBus) Subscribe(fn func(domain.NotificationEvent)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Close stops every pending expiry. Later Show calls are dropped.
func (b *NotificationBus) Close() {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.closed = true
	b.mu.Unlock()

	for _, p := range items {
		p.timer.Stop()
	}
}

func (b *NotificationBus) publish(ev domain.NotificationEvent) {
	b.mu.Lock()
	fns := make([]func(domain.NotificationEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
