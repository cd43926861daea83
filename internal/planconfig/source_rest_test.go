package planconfig

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRESTSource_FetchEnvelope(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"config": {"wallet_flex_integration": {"min_contribution": 0, "max_contribution": 10000}},
			"overrides": [
				{"corporate_id": "acme", "patch": {"wallet_flex_integration": {"max_contribution": 5000}}},
				{"corporate_id": "globex", "patch": {"wallet_flex_integration": {"max_contribution": 1}}}
			]
		}`))
	}))
	defer srv.Close()

	key := Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN}
	bundle, err := NewRESTSource(srv.URL+"/", srv.Client()).Fetch(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "/plan-configurations/GMC/acme/IN", gotPath)
	require.Len(t, bundle.Overrides, 1)
	require.Equal(t, ScopeTenant, bundle.Overrides[0].Scope)
	require.Equal(t, CountryIN, bundle.Overrides[0].CountryCode)

	_, maximum := bundle.Effective().WalletBounds()
	require.True(t, maximum.Equal(dec(5000)))
}

func TestRESTSource_BareDocumentAndDefaultCorporate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"payment_options": {"methods": ["CARD"]}}`))
	}))
	defer srv.Close()

	bundle, err := NewRESTSource(srv.URL, nil).Fetch(context.Background(), Key{PlanType: PlanTypeFlex, CountryCode: CountryGlobal})
	require.NoError(t, err)
	require.Equal(t, "/plan-configurations/Flex/default/GLOBAL", gotPath)
	require.Equal(t, []string{"CARD"}, bundle.Base.PaymentMethods())
	require.Empty(t, bundle.Overrides)
}

func TestRESTSource_NotFoundAndErrors(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	source := NewRESTSource(srv.URL, srv.Client())
	key := Key{PlanType: PlanTypeGMC, CorporateID: "acme", CountryCode: CountryIN}

	bundle, err := source.Fetch(context.Background(), key)
	require.NoError(t, err)
	require.Nil(t, bundle)

	status = http.StatusBadGateway
	_, err = source.Fetch(context.Background(), key)
	require.Error(t, err)

	_, err = NewLoader(source).Load(context.Background(), key)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
