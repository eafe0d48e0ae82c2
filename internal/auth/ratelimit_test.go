package auth

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/certtrack-backend/pkg/config"
)

type fakeLimiterStore struct {
	counts  map[string]int64
	expires map[string]time.Duration
}

func newFakeLimiterStore() *fakeLimiterStore {
	return &fakeLimiterStore{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeLimiterStore) Incr(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeLimiterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.expires[key] = ttl
	return nil
}

type fakeLimiterKeyer struct{}

func (fakeLimiterKeyer) RateLimitKey(scope, subject string) string {
	return "ct:rate_limit:" + scope + ":" + subject
}

func newTestLimiter(store *fakeLimiterStore) *RateLimiter {
	return &RateLimiter{
		store: store,
		keyer: fakeLimiterKeyer{},
		cfg: config.AuthRateLimitConfig{
			LoginWindow:     time.Minute,
			LoginEmailLimit: 3,
			LoginIPLimit:    5,
		},
	}
}

func TestLimiterAllowsWithinWindow(t *testing.T) {
	store := newFakeLimiterStore()
	limiter := newTestLimiter(store)

	for i := 0; i < 3; i++ {
		ok, err := limiter.AllowEmail(context.Background(), "User@Example.org")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	ok, err := limiter.AllowEmail(context.Background(), "user@example.org")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatal("fourth attempt should be blocked")
	}
}

func TestLimiterSetsWindowOnFirstAttempt(t *testing.T) {
	store := newFakeLimiterStore()
	limiter := newTestLimiter(store)

	if _, err := limiter.AllowIP(context.Background(), "198.51.100.7"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	key := "ct:rate_limit:login_ip:198.51.100.7"
	if store.expires[key] != time.Minute {
		t.Fatalf("expected window ttl on first attempt, got %s", store.expires[key])
	}

	if _, err := limiter.AllowIP(context.Background(), "198.51.100.7"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if len(store.expires) != 1 {
		t.Fatal("ttl should only be set once per window")
	}
}

func TestLimiterSkipsEmptySubject(t *testing.T) {
	store := newFakeLimiterStore()
	limiter := newTestLimiter(store)

	ok, err := limiter.AllowIP(context.Background(), "")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !ok {
		t.Fatal("empty subject should not be limited")
	}
	if len(store.counts) != 0 {
		t.Fatal("no counter should be written for empty subject")
	}
}
