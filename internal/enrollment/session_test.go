package enrollment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corpbenefits/benefits-platform/internal/form"
	"github.com/corpbenefits/benefits-platform/internal/planconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type loaderFunc func(ctx context.Context, key planconfig.Key) (*planconfig.Bundle, error)

func (f loaderFunc) Load(ctx context.Context, key planconfig.Key) (*planconfig.Bundle, error) {
	return f(ctx, key)
}

type submitterFunc func(ctx context.Context, req Request) (Result, error)

func (f submitterFunc) Submit(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func gmcBundle(maxWallet int64) *planconfig.Bundle {
	return &planconfig.Bundle{Base: &planconfig.PlanConfiguration{
		FamilyDefinition: &planconfig.FamilyDefinition{Members: []planconfig.FamilyMember{
			{Relation: "self", Mandatory: true},
			{Relation: "spouse"},
		}},
		SumInsuredLogic: &planconfig.SumInsuredLogic{Options: []decimal.Decimal{decimal.NewFromInt(300000), decimal.NewFromInt(500000)}},
		WalletFlexIntegration: &planconfig.WalletFlexIntegration{
			MinContribution: decPtr(0),
			MaxContribution: decPtr(maxWallet),
		},
		PaymentOptions: &planconfig.PaymentOptions{Methods: []string{"PREPAID_WALLET"}},
	}}
}

func staticLoader(bundle *planconfig.Bundle) BundleLoader {
	return loaderFunc(func(_ context.Context, key planconfig.Key) (*planconfig.Bundle, error) {
		out := *bundle
		out.Key = key
		return &out, nil
	})
}

func acmeKey() planconfig.Key {
	return planconfig.Key{PlanType: planconfig.PlanTypeGMC, CorporateID: "acme", CountryCode: planconfig.CountryIN}
}

func change(t *testing.T, component, key string, value any) form.Change {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	return form.Change{Component: component, Key: key, Value: data}
}

func TestSession_SubmitOnce(t *testing.T) {
	sessions := NewSessions(staticLoader(gmcBundle(5000)), time.Hour)
	session := sessions.Create(1, "acme", "emp-1")
	require.Equal(t, StatusReady, session.SetKey(context.Background(), acmeKey()).Status)

	require.NoError(t, session.Apply(change(t, "family", "self", true)))
	require.NoError(t, session.Apply(change(t, "sum_insured", "", 500000)))
	require.NoError(t, session.Apply(change(t, "payment", "", "PREPAID_WALLET")))

	var calls atomic.Int32
	var sent Request
	submitter := submitterFunc(func(_ context.Context, req Request) (Result, error) {
		calls.Add(1)
		sent = req
		return Result{Message: "Enrollment submitted."}, nil
	})

	result, err := session.Submit(context.Background(), submitter)
	require.NoError(t, err)
	require.Equal(t, KindSuccess, result.Kind)
	require.Equal(t, "Enrollment submitted.", result.Message)
	require.Equal(t, map[string]bool{"self": true}, sent.Selection.Family)
	require.True(t, sent.Selection.SumInsured.Equal(decimal.NewFromInt(500000)))
	require.Equal(t, "PREPAID_WALLET", sent.Selection.Payment)
	require.Equal(t, "acme", sent.CorporateID)
	require.Equal(t, session.ID, sent.SessionID)
	require.True(t, session.Snapshot().SubmitDisabled)

	again, err := session.Submit(context.Background(), submitter)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, KindAlreadySubmitted, again.Kind)
	require.EqualValues(t, 1, calls.Load())
}

func TestSession_ConcurrentSubmitsCallSinkOnce(t *testing.T) {
	sessions := NewSessions(staticLoader(gmcBundle(5000)), time.Hour)
	session := sessions.Create(1, "acme", "emp-1")
	session.SetKey(context.Background(), acmeKey())

	release := make(chan struct{})
	var calls atomic.Int32
	submitter := submitterFunc(func(context.Context, Request) (Result, error) {
		calls.Add(1)
		<-release
		return Result{}, nil
	})

	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := session.Submit(context.Background(), submitter); err == nil {
				successes.Add(1)
			}
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	require.EqualValues(t, 1, successes.Load())
}

func TestSession_FailedSubmissionAllowsRetry(t *testing.T) {
	sessions := NewSessions(staticLoader(gmcBundle(5000)), time.Hour)
	session := sessions.Create(1, "acme", "emp-1")
	session.SetKey(context.Background(), acmeKey())

	boom := errors.New("gateway timeout")
	result, err := session.Submit(context.Background(), submitterFunc(func(context.Context, Request) (Result, error) {
		return Result{}, boom
	}))
	require.ErrorIs(t, err, boom)
	require.Equal(t, KindFailed, result.Kind)
	require.False(t, session.Snapshot().SubmitDisabled)

	result, err = session.Submit(context.Background(), submitterFunc(func(context.Context, Request) (Result, error) {
		return Result{EnrollmentID: "enr-1"}, nil
	}))
	require.NoError(t, err)
	require.Equal(t, DefaultSuccessMessage, result.Message)
	require.Equal(t, "enr-1", result.EnrollmentID)
}

func TestSession_StaleLoadIsDropped(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	loader := loaderFunc(func(_ context.Context, key planconfig.Key) (*planconfig.Bundle, error) {
		if key.PlanType == planconfig.PlanTypeGMC {
			close(firstStarted)
			<-releaseFirst
			return gmcBundle(1111), nil
		}
		return gmcBundle(2222), nil
	})
	session := NewSessions(loader, time.Hour).Create(1, "acme", "emp-1")

	done := make(chan LoadState, 1)
	go func() {
		done <- session.SetKey(context.Background(), acmeKey())
	}()
	<-firstStarted

	wallet := acmeKey()
	wallet.PlanType = planconfig.PlanTypeWallet
	latest := session.SetKey(context.Background(), wallet)
	require.Equal(t, StatusReady, latest.Status)
	require.EqualValues(t, 2, latest.Generation)

	close(releaseFirst)
	stale := <-done
	require.EqualValues(t, 2, stale.Generation)

	snap := session.Snapshot()
	require.Equal(t, planconfig.PlanTypeWallet, snap.Key.PlanType)
	_, maximum := snap.Config.WalletBounds()
	require.True(t, maximum.Equal(decimal.NewFromInt(2222)))
}

func TestSession_LoadFailureIsErrorState(t *testing.T) {
	loader := loaderFunc(func(context.Context, planconfig.Key) (*planconfig.Bundle, error) {
		return nil, errors.New("connection refused")
	})
	session := NewSessions(loader, time.Hour).Create(1, "acme", "emp-1")

	state := session.SetKey(context.Background(), acmeKey())
	require.Equal(t, StatusError, state.Status)
	require.Contains(t, state.Error, "connection refused")

	snap := session.Snapshot()
	require.False(t, snap.Loading)
	require.Nil(t, snap.Config)
	schema := session.Schema(nil)
	require.True(t, schema.Empty)
	require.Equal(t, form.NoConfigurationMessage, schema.Message)

	_, err := session.Submit(context.Background(), submitterFunc(func(context.Context, Request) (Result, error) {
		t.Fatalf("submitter must not be called without a configuration")
		return Result{}, nil
	}))
	require.ErrorIs(t, err, ErrNotReady)
}

func TestSession_NotFoundIsAbsentState(t *testing.T) {
	loader := loaderFunc(func(context.Context, planconfig.Key) (*planconfig.Bundle, error) {
		return nil, planconfig.ErrNotFound
	})
	session := NewSessions(loader, time.Hour).Create(1, "acme", "emp-1")
	require.Equal(t, StatusAbsent, session.SetKey(context.Background(), acmeKey()).Status)
}

func TestSession_WalletStaysWithinLoadedBounds(t *testing.T) {
	session := NewSessions(staticLoader(gmcBundle(5000)), time.Hour).Create(1, "acme", "emp-1")
	session.SetKey(context.Background(), acmeKey())

	for _, amount := range []int64{-10, 0, 4999, 5000, 5001, 1000000} {
		require.NoError(t, session.Apply(change(t, "wallet", "", amount)))
		for _, field := range session.Schema(nil).Fields {
			if field.Name != "wallet" {
				continue
			}
			value := field.Value.(decimal.Decimal)
			require.False(t, value.IsNegative())
			require.True(t, value.LessThanOrEqual(decimal.NewFromInt(5000)))
		}
	}
}

func TestSession_KeyChangeResetsSelection(t *testing.T) {
	session := NewSessions(staticLoader(gmcBundle(5000)), time.Hour).Create(1, "acme", "emp-1")
	session.SetKey(context.Background(), acmeKey())
	require.NoError(t, session.Apply(change(t, "family", "spouse", true)))
	require.NoError(t, session.SetProfile("19-35", 2))

	other := acmeKey()
	other.CountryCode = planconfig.CountrySG
	session.SetKey(context.Background(), other)

	snap := session.Snapshot()
	require.Equal(t, map[string]bool{"self": true}, snap.Selection.Family)
	require.Empty(t, snap.Selection.AgeBand)
}

func TestSessions_Sweep(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	sessions := NewSessions(staticLoader(gmcBundle(5000)), time.Hour)
	sessions.nowFn = func() time.Time { return now }

	idle := sessions.Create(1, "acme", "emp-1")
	now = now.Add(50 * time.Minute)
	active := sessions.Create(1, "acme", "emp-2")
	now = now.Add(20 * time.Minute)

	require.Equal(t, 1, sessions.Sweep())
	_, ok := sessions.Get(idle.ID)
	require.False(t, ok)
	_, ok = sessions.Get(active.ID)
	require.True(t, ok)
	require.Equal(t, 1, sessions.Len())
}
