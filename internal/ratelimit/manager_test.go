package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestManagerCheckBlocksAfterTenantLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	manager := NewManager(StaticSettings(SettingsConfig{Limit: 5}), func() time.Time { return now }, nil)

	for i := 0; i < 2; i++ {
		result, decision, err := manager.Check(context.Background(), "acme", "emp-1", 2)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if decision.Limit != 2 || decision.Scope != ScopeEmployee {
			t.Fatalf("expected tenant limit decision, got %+v", decision)
		}
	}

	result, _, err := manager.Check(context.Background(), "acme", "emp-1", 2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected third request to be blocked")
	}

	other, _, err := manager.Check(context.Background(), "acme", "emp-2", 2)
	if err != nil {
		t.Fatalf("check other employee: %v", err)
	}
	if !other.Allowed {
		t.Fatalf("expected a different employee to have its own bucket")
	}

	now = now.Add(time.Second)
	result, _, err = manager.Check(context.Background(), "acme", "emp-1", 2)
	if err != nil {
		t.Fatalf("check after refill: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected bucket to refill after one second")
	}
}

func TestManagerUnlimitedWithoutLimits(t *testing.T) {
	manager := NewManager(nil, nil, nil)
	for i := 0; i < 50; i++ {
		result, decision, err := manager.Check(context.Background(), "acme", "emp-1", 0)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if !result.Allowed || decision.Limit != 0 {
			t.Fatalf("expected unlimited, got result=%+v decision=%+v", result, decision)
		}
	}
}

func TestManagerFallsBackToMemoryWhenRedisDown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfg := SettingsConfig{Limit: 1, RedisEnabled: true, RedisAddr: "127.0.0.1:1", RedisPrefix: "benefits:rl"}
	factory := func(options *redis.Options) *redis.Client {
		options.DialTimeout = 50 * time.Millisecond
		options.MaxRetries = -1
		return redis.NewClient(options)
	}
	manager := NewManager(StaticSettings(cfg), func() time.Time { return now }, factory)

	result, _, err := manager.Check(context.Background(), "acme", "emp-1", 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected memory fallback to allow the first request")
	}
	if !manager.inFallback(now) {
		t.Fatalf("expected in-process fallback after redis failure")
	}
	result, _, err = manager.Check(context.Background(), "acme", "emp-1", 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected memory limiter to block the second request")
	}
}

func TestKeyForDecision(t *testing.T) {
	if got := KeyForDecision("acme", "emp-1", Decision{Limit: 3, Scope: ScopeEmployee}); got != "t:acme:e:emp-1" {
		t.Fatalf("unexpected employee key %q", got)
	}
	if got := KeyForDecision("acme", "", Decision{Limit: 3, Scope: ScopeEmployee}); got != "t:acme" {
		t.Fatalf("unexpected fallback key %q", got)
	}
	if got := KeyForDecision("acme", "emp-1", Decision{Limit: 3}); got != "" {
		t.Fatalf("expected empty key without a scope, got %q", got)
	}
	if got := KeyForDecision("acme", "emp-1", Decision{}); got != "" {
		t.Fatalf("expected empty key without limit, got %q", got)
	}
}

func TestMemoryLimiterSweep(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if _, err := limiter.Allow(context.Background(), "old", 1, now); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if _, err := limiter.Allow(context.Background(), "fresh", 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if removed := limiter.Sweep(now.Add(time.Minute)); removed != 1 {
		t.Fatalf("expected one bucket removed, got %d", removed)
	}
}
