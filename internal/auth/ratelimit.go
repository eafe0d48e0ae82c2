package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/certtrack-backend/pkg/config"
	redisclient "github.com/angelmondragon/certtrack-backend/pkg/redis"
)

const (
	scopeLoginEmail = "login_email"
	scopeLoginIP    = "login_ip"
)

type limiterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type limiterKeyer interface {
	RateLimitKey(scope, subject string) string
}

// RateLimiter throttles login attempts per email and per client IP using
// fixed Redis counter windows.
type RateLimiter struct {
	store limiterStore
	keyer limiterKeyer
	cfg   config.AuthRateLimitConfig
}

// NewRateLimiter constructs the login rate limiter.
func NewRateLimiter(client *redisclient.Client, cfg config.AuthRateLimitConfig) (*RateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.LoginWindow <= 0 {
		return nil, fmt.Errorf("login window must be positive")
	}
	return &RateLimiter{store: client, keyer: client, cfg: cfg}, nil
}

// AllowEmail reports whether another login attempt for this email may proceed.
func (r *RateLimiter) AllowEmail(ctx context.Context, email string) (bool, error) {
	return r.allow(ctx, scopeLoginEmail, strings.ToLower(strings.TrimSpace(email)), r.cfg.LoginEmailLimit)
}

// AllowIP reports whether another login attempt from this address may proceed.
func (r *RateLimiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	return r.allow(ctx, scopeLoginIP, ip, r.cfg.LoginIPLimit)
}

func (r *RateLimiter) allow(ctx context.Context, scope, subject string, limit int) (bool, error) {
	if limit <= 0 || subject == "" {
		return true, nil
	}
	key := r.keyer.RateLimitKey(scope, subject)
	count, err := r.store.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		if err := r.store.Expire(ctx, key, r.cfg.LoginWindow); err != nil {
			return false, fmt.Errorf("setting rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}
