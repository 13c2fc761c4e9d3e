package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGo_AppliesWhileAlive(t *testing.T) {
	s := NewScope(context.Background())
	defer s.Close()

	var got int
	Go(s, func(ctx context.Context) (int, error) { return 42, nil }, func(v int, err error) {
		got = v
	})
	s.Wait()

	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestGo_DiscardsAfterClose(t *testing.T) {
	s := NewScope(context.Background())
	release := make(chan struct{})

	applied := false
	Go(s, func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	}, func(string, error) { applied = true })

	s.Close()
	close(release)
	s.Wait()

	if applied {
		t.Fatal("result applied to a closed scope")
	}
}

func TestGo_ParentCancelEndsScope(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewScope(parent)
	cancel()

	if s.Alive() {
		t.Fatal("scope must die with its parent")
	}
	applied := false
	Go(s, func(ctx context.Context) (int, error) { return 0, ctx.Err() }, func(int, error) { applied = true })
	s.Wait()
	if applied {
		t.Fatal("result applied after parent cancellation")
	}
}

func TestWithTimeout(t *testing.T) {
	s := NewScope(context.Background())
	defer s.Close()
	child := s.WithTimeout(10 * time.Millisecond)

	var gotErr error
	applied := false
	Go(child, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(_ int, err error) { applied, gotErr = true, err })
	child.Wait()

	if applied {
		t.Fatalf("timed-out scope applied result: %v", gotErr)
	}
	if !errors.Is(child.Context().Err(), context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", child.Context().Err())
	}
	if !s.Alive() {
		t.Fatal("parent scope must survive child timeout")
	}
}
