package planconfig

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_NilClientDisables(t *testing.T) {
	cache := NewRedisCache(nil, "benefits", time.Minute)
	require.Nil(t, cache)

	_, ok := cache.Get(context.Background(), Key{PlanType: PlanTypeGMC, CountryCode: CountryIN})
	require.False(t, ok)
	cache.Set(context.Background(), Key{}, &Bundle{})
}

func TestRedisCache_UnavailableTripsBreaker(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewRedisCache(client, "benefits", time.Minute)
	cache.nowFn = func() time.Time { return now }

	key := Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN}
	_, ok := cache.Get(context.Background(), key)
	require.False(t, ok)
	require.True(t, cache.breakerActive(now.Add(time.Second)))
	require.False(t, cache.breakerActive(now.Add(cacheBreakerDuration+time.Second)))
}

func TestLoader_FallsBackToSourceWhenCacheDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	source := &fakeSource{bundle: &Bundle{Base: sampleConfig()}}
	loader := NewLoader(source, WithCache(NewRedisCache(client, "benefits", time.Minute)))

	bundle, err := loader.Load(context.Background(), Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	require.NotNil(t, bundle.Base)
	require.EqualValues(t, 1, source.calls.Load())
}
