package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestGuard_RunsOnceAndReplays(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	calls := 0
	fn := func(context.Context) (int, string, error) {
		calls++
		return http.StatusCreated, `{"user_id":"u1"}`, nil
	}

	first, err := Guard(ctx, repo, "sub-1", "civilian.submit", "u1", fn)
	if err != nil {
		t.Fatalf("first Guard() error = %v", err)
	}
	if first.Replayed {
		t.Error("first call reported as replay")
	}

	second, err := Guard(ctx, repo, "sub-1", "civilian.submit", "u1", fn)
	if err != nil {
		t.Fatalf("second Guard() error = %v", err)
	}
	if !second.Replayed {
		t.Error("second call not reported as replay")
	}
	if second.Body != first.Body || second.StatusCode != first.StatusCode {
		t.Errorf("replay %+v differs from first %+v", second, first)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestGuard_FailureReleasesKey(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	boom := errors.New("boom")

	_, err := Guard(ctx, repo, "k", "s", "u", func(context.Context) (int, string, error) {
		return 0, "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Guard() error = %v, want boom", err)
	}

	out, err := Guard(ctx, repo, "k", "s", "u", func(context.Context) (int, string, error) {
		return http.StatusOK, "{}", nil
	})
	if err != nil || out.Replayed {
		t.Errorf("retry after failure: out=%+v err=%v", out, err)
	}
}

func TestGuard_Non2xxNotStored(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	_, _ = Guard(ctx, repo, "k", "s", "u", func(context.Context) (int, string, error) {
		return http.StatusConflict, `{"error":{}}`, nil
	})
	if _, err := repo.Get(ctx, "k"); err != ErrKeyNotFound {
		t.Errorf("non-2xx outcome was stored: %v", err)
	}
}

func TestGuard_InFlight(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	_ = repo.Reserve(ctx, "k", "s", "u")

	_, err := Guard(ctx, repo, "k", "s", "u", func(context.Context) (int, string, error) {
		t.Fatal("fn must not run while key is in flight")
		return 0, "", nil
	})
	if !errors.Is(err, ErrInFlight) {
		t.Errorf("Guard() error = %v, want ErrInFlight", err)
	}
}

func TestGuard_KeyReusedByOtherSubject(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	ok := func(context.Context) (int, string, error) { return http.StatusOK, "{}", nil }

	if _, err := Guard(ctx, repo, "k", "s", "u1", ok); err != nil {
		t.Fatalf("Guard() error = %v", err)
	}
	if _, err := Guard(ctx, repo, "k", "s", "u2", ok); !errors.Is(err, ErrKeyReused) {
		t.Errorf("Guard() error = %v, want ErrKeyReused", err)
	}
}

func TestGuard_InvalidKey(t *testing.T) {
	_, err := Guard(context.Background(), NewInMemoryRepository(), "", "s", "u",
		func(context.Context) (int, string, error) { return 200, "", nil })
	if err != ErrInvalidKey {
		t.Errorf("Guard() error = %v, want ErrInvalidKey", err)
	}
}
