package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treinoia/treinoia/internal/config"
	inats "github.com/treinoia/treinoia/internal/nats"
)

var lisbon = time.FixedZone("WEST", 1*60*60)

type recordingPublisher struct {
	inats.NopPublisher
	mu     sync.Mutex
	audits []inats.AuditEvent
}

func (r *recordingPublisher) PublishAuditEvent(_ context.Context, e inats.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, e)
	return nil
}

type testEnv struct {
	svc      *Service
	store    *memStore
	accounts *memAccounts
	events   *recordingPublisher
	now      time.Time
}

func newTestEnv(t *testing.T, mutate func(*config.QuotaConfig)) *testEnv {
	t.Helper()
	cfg := config.QuotaConfig{
		Timezone:       "UTC",
		PhotoPolicy:    PolicyDaily,
		FreeChatDaily:  10,
		FreePhotoDaily: 1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	store := newMemStore()
	env := &testEnv{
		store:    store,
		accounts: &memAccounts{store: store, tiers: map[uuid.UUID]Account{}},
		events:   &recordingPublisher{},
		now:      time.Date(2026, 3, 14, 10, 30, 0, 0, lisbon),
	}
	env.svc = NewService(store, env.accounts, nil, env.events, cfg)
	env.svc.cal = Calendar{Location: lisbon, Clock: func() time.Time { return env.now }}
	return env
}

func TestCheckAndMaybeReset_CreatesZeroedRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := uuid.New()

	rec, err := env.svc.CheckAndMaybeReset(context.Background(), userID, KindChat)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Count)
	assert.True(t, rec.WindowStart.Equal(env.now))
}

func TestCheckAndMaybeReset_SameDayIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := uuid.New()
	env.store.setRecord(Record{UserID: userID, Kind: KindChat, Count: 4, WindowStart: env.now.Add(-2 * time.Hour)})

	first, err := env.svc.CheckAndMaybeReset(context.Background(), userID, KindChat)
	require.NoError(t, err)
	second, err := env.svc.CheckAndMaybeReset(context.Background(), userID, KindChat)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, 4, second.Count)
}

func TestCheckAndMaybeReset_Rollover(t *testing.T) {
	tests := []struct {
		name        string
		windowStart time.Time
		count       int
	}{
		{"yesterday small count", time.Date(2026, 3, 13, 23, 59, 0, 0, lisbon), 3},
		{"yesterday huge count", time.Date(2026, 3, 13, 8, 0, 0, 0, lisbon), 100000},
		{"inactive for weeks", time.Date(2026, 1, 2, 12, 0, 0, 0, lisbon), 9},
		{"clock skew into tomorrow", time.Date(2026, 3, 15, 0, 10, 0, 0, lisbon), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			userID := uuid.New()
			env.store.setRecord(Record{UserID: userID, Kind: KindPhoto, Count: tt.count, WindowStart: tt.windowStart})

			rec, err := env.svc.CheckAndMaybeReset(context.Background(), userID, KindPhoto)
			require.NoError(t, err)
			assert.Equal(t, 0, rec.Count)
			assert.True(t, env.svc.cal.SameDay(rec.WindowStart, env.now))

			again, err := env.svc.CheckAndMaybeReset(context.Background(), userID, KindPhoto)
			require.NoError(t, err)
			assert.Equal(t, *rec, *again)
		})
	}
}

func TestCheckAndMaybeReset_UsesCalendarLocation(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := uuid.New()
	// 23:30 UTC on the 13th is already the 14th at UTC+1.
	env.store.setRecord(Record{UserID: userID, Kind: KindChat, Count: 5, WindowStart: time.Date(2026, 3, 13, 23, 30, 0, 0, time.UTC)})

	rec, err := env.svc.CheckAndMaybeReset(context.Background(), userID, KindChat)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Count, "same local day, no reset")
}

func TestReserve_FreeChatAllowsExactlyLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 10; i++ {
		res, err := env.svc.Reserve(ctx, userID, KindChat)
		require.NoError(t, err, "message %d", i+1)
		res.Commit(ctx)
	}
	assert.Equal(t, 10, env.store.count(userID, KindChat))

	_, err := env.svc.Reserve(ctx, userID, KindChat)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 10, env.store.count(userID, KindChat))

	require.Len(t, env.events.audits, 1)
	assert.Equal(t, "quota_exceeded", env.events.audits[0].EventType)
	assert.Equal(t, string(KindChat), env.events.audits[0].ResourceID)
}

func TestReserve_NextDayReopens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	res, err := env.svc.Reserve(ctx, userID, KindPhoto)
	require.NoError(t, err)
	res.Commit(ctx)
	_, err = env.svc.Reserve(ctx, userID, KindPhoto)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	env.now = env.now.Add(24 * time.Hour)
	res, err = env.svc.Reserve(ctx, userID, KindPhoto)
	require.NoError(t, err)
	res.Commit(ctx)
	assert.Equal(t, 1, env.store.count(userID, KindPhoto))
}

func TestReserve_ReleaseLeavesCountUnchanged(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	env.store.setRecord(Record{UserID: userID, Kind: KindChat, Count: 3, WindowStart: env.now})

	res, err := env.svc.Reserve(ctx, userID, KindChat)
	require.NoError(t, err)
	res.Release(ctx)
	res.Release(ctx)

	assert.Equal(t, 3, env.store.count(userID, KindChat))
}

func TestReserve_UnlimitedTiersCountOnSuccessOnly(t *testing.T) {
	for _, acct := range []Account{
		{Tier: TierPlus},
		{Tier: TierPremium},
		{Tier: TierUnlimited},
		{Tier: TierFree, Admin: true},
	} {
		t.Run(string(acct.Tier), func(t *testing.T) {
			env := newTestEnv(t, nil)
			ctx := context.Background()
			userID := uuid.New()
			env.accounts.tiers[userID] = acct
			env.store.setRecord(Record{UserID: userID, Kind: KindChat, Count: 500, WindowStart: env.now})

			res, err := env.svc.Reserve(ctx, userID, KindChat)
			require.NoError(t, err)
			res.Commit(ctx)
			assert.Equal(t, 501, env.store.count(userID, KindChat))

			res, err = env.svc.Reserve(ctx, userID, KindChat)
			require.NoError(t, err)
			res.Release(ctx)
			assert.Equal(t, 501, env.store.count(userID, KindChat))
		})
	}
}

func TestReserve_CreditPolicy(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.PhotoPolicy = PolicyCredits })
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 2

	// Failed analysis keeps the balance.
	res, err := env.svc.Reserve(ctx, userID, KindPhoto)
	require.NoError(t, err)
	res.Release(ctx)
	assert.Equal(t, 2, env.store.credits[userID])

	for i := 0; i < 2; i++ {
		res, err = env.svc.Reserve(ctx, userID, KindPhoto)
		require.NoError(t, err)
		res.Commit(ctx)
	}
	assert.Equal(t, 0, env.store.credits[userID])

	_, err = env.svc.Reserve(ctx, userID, KindPhoto)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Chat keeps using the daily counter.
	res, err = env.svc.Reserve(ctx, userID, KindChat)
	require.NoError(t, err)
	res.Commit(ctx)
	assert.Equal(t, 1, env.store.count(userID, KindChat))
}

func TestReserve_CreditPolicyUnlimitedTier(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.PhotoPolicy = PolicyCredits })
	ctx := context.Background()
	userID := uuid.New()
	env.accounts.tiers[userID] = Account{Tier: TierPremium}

	res, err := env.svc.Reserve(ctx, userID, KindPhoto)
	require.NoError(t, err)
	res.Commit(ctx)
	assert.Equal(t, 0, env.store.credits[userID], "unlimited plans never touch the balance")
}

func TestDecrementCredit_FloorsAtZero(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 1

	applied, err := env.svc.DecrementCredit(ctx, userID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 0, env.store.credits[userID])

	applied, err = env.svc.DecrementCredit(ctx, userID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, env.store.credits[userID])
}

func TestDecrementCredit_UnlimitedIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := uuid.New()
	env.accounts.tiers[userID] = Account{Tier: TierUnlimited}
	env.store.credits[userID] = 5

	applied, err := env.svc.DecrementCredit(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 5, env.store.credits[userID])
}

func TestReserve_FailsOpen(t *testing.T) {
	t.Run("store down", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.store.failAll = true
		ctx := context.Background()

		res, err := env.svc.Reserve(ctx, uuid.New(), KindChat)
		require.NoError(t, err)
		res.Commit(ctx)
		res.Release(ctx)
	})

	t.Run("account lookup fails", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.accounts.err = errors.New("profiles unavailable")
		userID := uuid.New()

		res, err := env.svc.Reserve(context.Background(), userID, KindPhoto)
		require.NoError(t, err)
		res.Commit(context.Background())
		assert.Equal(t, 0, env.store.count(userID, KindPhoto))
	})
}

func TestReserve_UnknownKind(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.svc.Reserve(context.Background(), uuid.New(), CounterKind("steps"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestReserve_ConcurrentRequestsCannotOvershoot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.svc.Reserve(ctx, userID, KindChat)
			if err == nil {
				granted.Add(1)
				res.Commit(ctx)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), granted.Load())
	assert.Equal(t, 10, env.store.count(userID, KindChat))
}

func TestReserve_ConcurrentCreditsCannotOvershoot(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.PhotoPolicy = PolicyCredits })
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 3

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.svc.Reserve(ctx, userID, KindPhoto)
			if err == nil {
				granted.Add(1)
				res.Commit(ctx)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), granted.Load())
	assert.Equal(t, 0, env.store.balance(userID))
}

func TestReserve_SingleCreditTwoInFlight(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.PhotoPolicy = PolicyCredits })
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 1

	first, err := env.svc.Reserve(ctx, userID, KindPhoto)
	require.NoError(t, err)

	// The balance is spent while the first analysis is still running.
	_, err = env.svc.Reserve(ctx, userID, KindPhoto)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	first.Commit(ctx)
	assert.Equal(t, 0, env.store.balance(userID))
}

func TestReserve_CreditStoreDownFailsOpen(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.PhotoPolicy = PolicyCredits })
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 1
	env.store.failAll = true

	res, err := env.svc.Reserve(ctx, userID, KindPhoto)
	require.NoError(t, err)
	res.Release(ctx)

	env.store.failAll = false
	assert.Equal(t, 1, env.store.balance(userID))
}

func TestReserve_ReleaseAfterMidnightKeepsNewDay(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	env.now = time.Date(2026, 3, 14, 23, 59, 50, 0, lisbon)
	slow, err := env.svc.Reserve(ctx, userID, KindChat)
	require.NoError(t, err)

	env.now = time.Date(2026, 3, 15, 0, 0, 5, 0, lisbon)
	res, err := env.svc.Reserve(ctx, userID, KindChat)
	require.NoError(t, err)
	res.Commit(ctx)
	require.Equal(t, 1, env.store.count(userID, KindChat))

	// The day-one call fails after the rollover.
	slow.Release(ctx)
	assert.Equal(t, 1, env.store.count(userID, KindChat))
}

func TestReserve_BurstLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.MaxPerMinute = 2 })
	mr := miniredis.RunT(t)
	env.svc.limiter = NewRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()
	userID := uuid.New()
	env.accounts.tiers[userID] = Account{Tier: TierPremium}

	for i := 0; i < 2; i++ {
		res, err := env.svc.Reserve(ctx, userID, KindChat)
		require.NoError(t, err)
		res.Commit(ctx)
	}
	_, err := env.svc.Reserve(ctx, userID, KindChat)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 7
	env.store.setRecord(Record{UserID: userID, Kind: KindChat, Count: 12, WindowStart: env.now})

	st, err := env.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, TierFree, st.Tier)
	assert.Equal(t, 7, st.CreditsRemaining)
	require.Len(t, st.Counters, 2)

	chat := st.Counters[0]
	assert.Equal(t, KindChat, chat.Kind)
	assert.Equal(t, 10, chat.Limit)
	assert.Equal(t, 12, chat.Used)
	assert.Equal(t, 0, chat.Remaining)

	photo := st.Counters[1]
	assert.Equal(t, 1, photo.Limit)
	assert.Equal(t, 1, photo.Remaining)
	assert.False(t, photo.Unlimited)
	assert.False(t, photo.CreditsDriven)
}

func TestStatus_CreditPolicyReportsBalance(t *testing.T) {
	env := newTestEnv(t, func(c *config.QuotaConfig) { c.PhotoPolicy = PolicyCredits })
	ctx := context.Background()
	userID := uuid.New()
	env.store.credits[userID] = 4

	st, err := env.svc.Status(ctx, userID)
	require.NoError(t, err)
	photo := st.Counters[1]
	assert.True(t, photo.CreditsDriven)
	assert.Equal(t, Unlimited, photo.Limit)
	assert.Equal(t, 4, photo.Remaining)
	assert.False(t, photo.Unlimited)

	assert.False(t, st.Counters[0].CreditsDriven, "chat keeps its daily limit")
	assert.Equal(t, 10, st.Counters[0].Limit)

	premium := uuid.New()
	env.accounts.tiers[premium] = Account{Tier: TierPremium}
	st, err = env.svc.Status(ctx, premium)
	require.NoError(t, err)
	assert.Equal(t, Unlimited, st.Counters[1].Remaining)
	assert.True(t, st.Counters[1].Unlimited)
}
