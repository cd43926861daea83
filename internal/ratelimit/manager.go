package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/metrics"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	// fallbackWindow is how long the manager stays on the in-process limiter
	// after the shared backend fails.
	fallbackWindow = 30 * time.Second
	dialTimeout    = 2 * time.Second
)

var errNoRedisAddr = errors.New("ratelimit: redis address is empty")

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager enforces per-employee request budgets. Counters live in Redis when
// it is enabled and reachable, otherwise in process memory.
type Manager struct {
	provider SettingsProvider
	nowFn    func() time.Time
	dial     RedisClientFactory
	local    *MemoryLimiter

	mu            sync.Mutex
	shared        *RedisLimiter
	sharedAddr    string
	fallbackUntil time.Time
}

// NewManager constructs a Manager. Nil arguments get defaults.
func NewManager(provider SettingsProvider, nowFn func() time.Time, dial RedisClientFactory) *Manager {
	if provider == nil {
		provider = StaticSettings(SettingsConfig{})
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if dial == nil {
		dial = redis.NewClient
	}
	return &Manager{provider: provider, nowFn: nowFn, dial: dial, local: NewMemoryLimiter()}
}

// Check resolves the limit for an employee of a tenant and enforces it.
func (m *Manager) Check(ctx context.Context, corporateID, employeeID string, tenantLimit int) (Result, Decision, error) {
	if m == nil {
		return Result{Allowed: true}, Decision{}, nil
	}
	decision := ResolveLimit(tenantLimit, m.provider())
	result, err := m.Allow(ctx, KeyForDecision(corporateID, employeeID, decision), decision.Limit)
	if err == nil && !result.Allowed {
		metrics.ObserveRateLimited(decision.Scope.String())
	}
	return result, decision, err
}

// Allow consumes one request from key's budget of limit per second.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()
	cfg := m.provider()
	if cfg.RedisEnabled && !m.inFallback(now) {
		shared, errShared := m.sharedLimiter(ctx, cfg)
		if errShared == nil {
			result, errAllow := shared.Allow(ctx, key, limit, now)
			if errAllow == nil {
				return result, nil
			}
			errShared = errAllow
		}
		m.startFallback(errShared, now)
	}
	return m.local.Allow(ctx, key, limit, now)
}

// Sweep drops in-memory buckets idle for longer than idle.
func (m *Manager) Sweep(idle time.Duration) int {
	if m == nil {
		return 0
	}
	return m.local.Sweep(m.nowFn().Add(-idle))
}

// Close releases the Redis client when one was opened.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared == nil {
		return nil
	}
	err := m.shared.client.Close()
	m.shared = nil
	m.sharedAddr = ""
	return err
}

func (m *Manager) inFallback(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.fallbackUntil.IsZero() && now.Before(m.fallbackUntil)
}

func (m *Manager) startFallback(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fallbackUntil.IsZero() && now.Before(m.fallbackUntil) {
		return
	}
	m.fallbackUntil = now.Add(fallbackWindow)
	log.WithError(err).Warnf("ratelimit: redis unavailable, using in-process counters for %s", fallbackWindow)
}

// sharedLimiter returns the Redis limiter, dialing it on first use or when
// the configured address changes.
func (m *Manager) sharedLimiter(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	if cfg.RedisAddr == "" {
		return nil, errNoRedisAddr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared != nil && m.sharedAddr == cfg.RedisAddr {
		return m.shared, nil
	}
	if m.shared != nil {
		_ = m.shared.client.Close()
		m.shared = nil
	}

	client := m.dial(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.shared = NewRedisLimiter(client, cfg.RedisPrefix)
	m.sharedAddr = cfg.RedisAddr
	return m.shared, nil
}
