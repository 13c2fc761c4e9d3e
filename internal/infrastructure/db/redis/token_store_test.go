package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codestation/lms-web/internal/core/domain"
)

func TestCredentialEncoding(t *testing.T) {
	want := domain.Credential{Access: "acc", Refresh: "ref"}
	raw, err := encodeCredential(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeCredential(raw)
	if err != nil || got != want {
		t.Fatalf("decode = %+v, %v", got, err)
	}
}

func TestDecodeCredential_RejectsForeignEntries(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"v":2,"access":"x"}`, `{"v":1}`} {
		if _, err := decodeCredential([]byte(raw)); !errors.Is(err, domain.ErrNoCredential) {
			t.Fatalf("%q: expected ErrNoCredential, got %v", raw, err)
		}
	}
}

// fakeClient answers the three commands TokenStore issues. Any other
// command panics through the nil embedded interface.
type fakeClient struct {
	redis.Cmdable
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestTokenStore_MissingKeyIsNoCredential(t *testing.T) {
	s := NewTokenStore(newFakeClient(), time.Hour)

	if _, err := s.Load(context.Background(), "lms_token:a"); !errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential for redis.Nil, got %v", err)
	}
}

func TestTokenStore_SaveLoadClear(t *testing.T) {
	client := newFakeClient()
	s := NewTokenStore(client, 2*time.Hour)
	ctx := context.Background()
	want := domain.Credential{Access: "acc", Refresh: "ref"}

	if err := s.Save(ctx, "lms_token:a", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := client.ttls["lms_token:a"]; ttl != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %v", ttl)
	}
	got, err := s.Load(ctx, "lms_token:a")
	if err != nil || got != want {
		t.Fatalf("Load = %+v, %v", got, err)
	}

	if err := s.Clear(ctx, "lms_token:a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(ctx, "lms_token:a"); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := s.Load(ctx, "lms_token:a"); !errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential after clear, got %v", err)
	}
}

func TestTokenStore_ZeroTTLStoresWithoutExpiry(t *testing.T) {
	client := newFakeClient()
	s := NewTokenStore(client, 0)

	if err := s.Save(context.Background(), "k", domain.Credential{Access: "acc"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl, ok := client.ttls["k"]; !ok || ttl != 0 {
		t.Fatalf("expected no expiry, got %v (set=%v)", ttl, ok)
	}
}

func TestTokenStore_ForeignValueIsNoCredential(t *testing.T) {
	client := newFakeClient()
	client.values["k"] = "not json"
	s := NewTokenStore(client, 0)

	if _, err := s.Load(context.Background(), "k"); !errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestTokenStore_ClientErrorsPropagate(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	s := NewTokenStore(client, time.Hour)
	ctx := context.Background()

	if _, err := s.Load(ctx, "k"); err == nil || errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("expected a transport error from Load, got %v", err)
	}
	if err := s.Save(ctx, "k", domain.Credential{Access: "acc"}); !errors.Is(err, client.err) {
		t.Fatalf("expected wrapped client error from Save, got %v", err)
	}
	if err := s.Clear(ctx, "k"); !errors.Is(err, client.err) {
		t.Fatalf("expected wrapped client error from Clear, got %v", err)
	}
}
