package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codestation/lms-web/internal/core/domain"
)

// TokenStore persists one credential per key as a JSON string with a TTL.
type TokenStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewTokenStore wraps client. A ttl of zero stores without expiry.
func NewTokenStore(client redis.Cmdable, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

func (s *TokenStore) Load(ctx context.Context, key string) (domain.Credential, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Credential{}, domain.ErrNoCredential
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("load credential: %w", err)
	}
	return decodeCredential(raw)
}

func (s *TokenStore) Save(ctx context.Context, key string, cred domain.Credential) error {
	raw, err := encodeCredential(cred)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// storedCredential is the persisted form. Version lets the layout change
// without misreading old entries.
type storedCredential struct {
	Version int    `json:"v"`
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

const credentialVersion = 1

func encodeCredential(cred domain.Credential) ([]byte, error) {
	raw, err := json.Marshal(storedCredential{Version: credentialVersion, Access: cred.Access, Refresh: cred.Refresh})
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}
	return raw, nil
}

// decodeCredential treats unreadable or foreign entries as absent.
func decodeCredential(raw []byte) (domain.Credential, error) {
	var sc storedCredential
	if err := json.Unmarshal(raw, &sc); err != nil || sc.Version != credentialVersion || sc.Access == "" {
		return domain.Credential{}, domain.ErrNoCredential
	}
	return domain.Credential{Access: sc.Access, Refresh: sc.Refresh}, nil
}
