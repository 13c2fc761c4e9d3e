// Package memory keeps credentials in process memory. They survive workspace
// eviction but not a restart.
package memory

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/codestation/lms-web/internal/core/domain"
)

type entry struct {
	cred      domain.Credential
	expiresAt time.Time
}

// TokenStore implements ports.TokenStore.
type TokenStore struct {
	ttl     time.Duration
	now     func() time.Time
	entries *xsync.MapOf[string, entry]
}

// NewTokenStore keeps each credential for ttl after it was saved. A ttl of
// zero keeps it until cleared.
func NewTokenStore(ttl time.Duration) *TokenStore {
	return &TokenStore{ttl: ttl, now: time.Now, entries: xsync.NewMapOf[string, entry]()}
}

// Load drops an expired entry in the same step that observes it, so a Save
// racing the expiry is never lost.
func (s *TokenStore) Load(_ context.Context, key string) (domain.Credential, error) {
	var (
		cred  domain.Credential
		found bool
	)
	s.entries.Compute(key, func(e entry, loaded bool) (entry, bool) {
		if !loaded {
			return e, true
		}
		if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
			return e, true
		}
		cred, found = e.cred, true
		return e, false
	})
	if !found {
		return domain.Credential{}, domain.ErrNoCredential
	}
	return cred, nil
}

func (s *TokenStore) Save(_ context.Context, key string, cred domain.Credential) error {
	e := entry{cred: cred}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.entries.Store(key, e)
	return nil
}

func (s *TokenStore) Clear(_ context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// Len reports how many credentials are held, expired ones included.
func (s *TokenStore) Len() int { return s.entries.Size() }
