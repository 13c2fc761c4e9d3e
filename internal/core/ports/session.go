package ports

import (
	"context"

	"github.com/codestation/lms-web/internal/core/domain"
)

// CredentialSource is what the gateway needs from the session: the current
// credential and the epoch it belongs to, plus the two ways a 401 can end.
type CredentialSource interface {
	// Credential returns the current credential. ok is false when anonymous.
	Credential() (cred domain.Credential, epoch uint64, ok bool)
	// Rotate swaps in a refreshed credential if epoch is still current.
	Rotate(ctx context.Context, epoch uint64, cred domain.Credential) bool
	// Invalidate drops the session if epoch is still current and reports
	// whether this call did it.
	Invalidate(ctx context.Context, epoch uint64) bool
}

// TokenStore persists one credential per key.
type TokenStore interface {
	// Load returns domain.ErrNoCredential when nothing is stored.
	Load(ctx context.Context, key string) (domain.Credential, error)
	Save(ctx context.Context, key string, cred domain.Credential) error
	// Clear is idempotent.
	Clear(ctx context.Context, key string) error
}
