package planconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound reports that no base configuration exists for a key.
var ErrNotFound = errors.New("plan configuration not found")

// Bundle is a base configuration plus the overrides that may apply to it.
type Bundle struct {
	Key       Key                `json:"key"`
	Base      *PlanConfiguration `json:"config"`
	Overrides []OverrideDocument `json:"overrides,omitempty"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Effective resolves the bundle's overrides for its key's country.
func (b *Bundle) Effective() *PlanConfiguration {
	if b == nil {
		return nil
	}
	return Resolve(b.Base, b.Key.CountryCode, b.Overrides...)
}

// Source fetches a bundle. A nil bundle with a nil error means absent.
type Source interface {
	Name() string
	Fetch(ctx context.Context, key Key) (*Bundle, error)
}

// Cache stores fetched bundles. Implementations swallow their own failures.
type Cache interface {
	Get(ctx context.Context, key Key) (*Bundle, bool)
	Set(ctx context.Context, key Key, bundle *Bundle)
}

// Loader fetches bundles through an optional cache.
type Loader struct {
	source  Source
	cache   Cache
	timeout time.Duration
	nowFn   func() time.Time
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithCache puts cache in front of the source.
func WithCache(cache Cache) LoaderOption {
	return func(l *Loader) { l.cache = cache }
}

// WithTimeout bounds each source fetch.
func WithTimeout(timeout time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = timeout }
}

// NewLoader constructs a loader over source.
func NewLoader(source Source, opts ...LoaderOption) *Loader {
	l := &Loader{source: source, nowFn: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load returns the bundle for key. It returns ErrNotFound when the source
// has no base configuration.
func (l *Loader) Load(ctx context.Context, key Key) (*Bundle, error) {
	if l == nil || l.source == nil {
		return nil, fmt.Errorf("planconfig: loader not configured")
	}
	if errValidate := key.Validate(); errValidate != nil {
		return nil, errValidate
	}

	if l.cache != nil {
		if bundle, ok := l.cache.Get(ctx, key); ok {
			metrics.ObserveConfigLoad("cache", metrics.OutcomeHit)
			return bundle, nil
		}
	}

	fetchCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	bundle, errFetch := l.source.Fetch(fetchCtx, key)
	if errFetch != nil {
		metrics.ObserveConfigLoad(l.source.Name(), metrics.OutcomeError)
		log.WithError(errFetch).WithField("key", key.String()).Warn("planconfig: fetch failed")
		return nil, fmt.Errorf("planconfig: load %s: %w", key, errFetch)
	}
	if bundle == nil || bundle.Base == nil {
		metrics.ObserveConfigLoad(l.source.Name(), metrics.OutcomeAbsent)
		return nil, fmt.Errorf("planconfig: load %s: %w", key, ErrNotFound)
	}

	bundle.Key = key
	if bundle.FetchedAt.IsZero() {
		bundle.FetchedAt = l.nowFn().UTC()
	}
	metrics.ObserveConfigLoad(l.source.Name(), metrics.OutcomeReady)
	if l.cache != nil {
		l.cache.Set(ctx, key, bundle)
	}
	return bundle, nil
}

// Effective loads key and resolves its overrides.
func (l *Loader) Effective(ctx context.Context, key Key) (*PlanConfiguration, error) {
	bundle, err := l.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return bundle.Effective(), nil
}
