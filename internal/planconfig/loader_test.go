package planconfig

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/corpbenefits/benefits-platform/internal/db"
	"github.com/corpbenefits/benefits-platform/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func openStore(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "planconfig.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })
	require.NoError(t, db.Migrate(conn))
	return conn
}

func seedPlanConfig(t *testing.T, conn *gorm.DB, corp, planType, country, doc string, enabled bool) models.PlanConfig {
	t.Helper()
	row := models.PlanConfig{CorporateID: corp, PlanType: planType, CountryCode: country, Document: datatypes.JSON(doc), IsEnabled: true}
	require.NoError(t, conn.Create(&row).Error)
	if !enabled {
		require.NoError(t, conn.Model(&row).Update("is_enabled", false).Error)
	}
	return row
}

func seedOverride(t *testing.T, conn *gorm.DB, corp, planType, country, patch string) {
	t.Helper()
	row := models.PlanOverride{CorporateID: corp, PlanType: planType, CountryCode: country, Patch: datatypes.JSON(patch), IsEnabled: true}
	require.NoError(t, conn.Create(&row).Error)
}

func TestStoreSource_FallbackChain(t *testing.T) {
	conn := openStore(t)
	seedPlanConfig(t, conn, "", "GMC", "GLOBAL", `{"payment_options":{"methods":["GLOBAL_DEFAULT"]}}`, true)
	source := NewStoreSource(conn)
	ctx := context.Background()

	bundle, err := source.Fetch(ctx, Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	require.Equal(t, []string{"GLOBAL_DEFAULT"}, bundle.Base.PaymentMethods())

	seedPlanConfig(t, conn, "", "GMC", "IN", `{"payment_options":{"methods":["PLATFORM_IN"]}}`, true)
	bundle, err = source.Fetch(ctx, Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	require.Equal(t, []string{"PLATFORM_IN"}, bundle.Base.PaymentMethods())

	seedPlanConfig(t, conn, "acme", "GMC", "GLOBAL", `{"payment_options":{"methods":["ACME_GLOBAL"]}}`, true)
	bundle, err = source.Fetch(ctx, Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	require.Equal(t, []string{"ACME_GLOBAL"}, bundle.Base.PaymentMethods())

	seedPlanConfig(t, conn, "acme", "GMC", "IN", `{"payment_options":{"methods":["ACME_IN"]}}`, false)
	bundle, err = source.Fetch(ctx, Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	require.Equal(t, []string{"ACME_GLOBAL"}, bundle.Base.PaymentMethods(), "disabled rows are skipped")

	bundle, err = source.Fetch(ctx, Key{PlanType: PlanTypeGPA, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	require.Nil(t, bundle)
}

func TestStoreSource_OverridesScopedToTenant(t *testing.T) {
	conn := openStore(t)
	seedPlanConfig(t, conn, "", "Wallet", "IN", `{"wallet_flex_integration":{"min_contribution":0,"max_contribution":10000}}`, true)
	seedOverride(t, conn, "acme", "Wallet", "IN", `{"wallet_flex_integration":{"max_contribution":5000}}`)
	seedOverride(t, conn, "", "Wallet", "IN", `{"wallet_flex_integration":{"max_contribution":7000}}`)
	seedOverride(t, conn, "globex", "Wallet", "IN", `{"wallet_flex_integration":{"max_contribution":1}}`)
	seedOverride(t, conn, "", "Wallet", "SG", `{"wallet_flex_integration":{"max_contribution":2}}`)

	loader := NewLoader(NewStoreSource(conn))
	cfg, err := loader.Effective(context.Background(), Key{PlanType: PlanTypeWallet, CorporateID: "acme", CountryCode: CountryIN})
	require.NoError(t, err)
	_, maximum := cfg.WalletBounds()
	require.True(t, maximum.Equal(dec(5000)), "tenant override wins over country override, got %s", maximum)

	cfg, err = loader.Effective(context.Background(), Key{PlanType: PlanTypeWallet, CorporateID: "initech", CountryCode: CountryIN})
	require.NoError(t, err)
	_, maximum = cfg.WalletBounds()
	require.True(t, maximum.Equal(dec(7000)))
}

type fakeSource struct {
	calls  atomic.Int32
	bundle *Bundle
	err    error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context, Key) (*Bundle, error) {
	f.calls.Add(1)
	return f.bundle, f.err
}

type mapCache struct {
	entries map[Key]*Bundle
}

func (m *mapCache) Get(_ context.Context, key Key) (*Bundle, bool) {
	b, ok := m.entries[key]
	return b, ok
}

func (m *mapCache) Set(_ context.Context, key Key, bundle *Bundle) {
	m.entries[key] = bundle
}

func TestLoader_ValidatesKey(t *testing.T) {
	source := &fakeSource{}
	_, err := NewLoader(source).Load(context.Background(), Key{PlanType: "Dental", CountryCode: CountryIN})
	require.ErrorIs(t, err, ErrInvalidPlanType)
	require.Zero(t, source.calls.Load())
}

func TestLoader_AbsentAndFailure(t *testing.T) {
	key := Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN}

	_, err := NewLoader(&fakeSource{}).Load(context.Background(), key)
	require.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("boom")
	_, err = NewLoader(&fakeSource{err: boom}).Load(context.Background(), key)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestLoader_UsesCache(t *testing.T) {
	key := Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN}
	source := &fakeSource{bundle: &Bundle{Base: sampleConfig()}}
	cache := &mapCache{entries: map[Key]*Bundle{}}
	loader := NewLoader(source, WithCache(cache))

	first, err := loader.Load(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, key, first.Key)
	require.False(t, first.FetchedAt.IsZero())

	second, err := loader.Load(context.Background(), key)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, source.calls.Load())
}
