package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type counterKey struct {
	user uuid.UUID
	kind CounterKind
}

// memStore mirrors the SQL semantics of Repository.
type memStore struct {
	mu       sync.Mutex
	counters map[counterKey]Record
	credits  map[uuid.UUID]int
	failAll  bool
	calls    int
}

func newMemStore() *memStore {
	return &memStore{
		counters: make(map[counterKey]Record),
		credits:  make(map[uuid.UUID]int),
	}
}

var errStoreDown = errors.New("store down")

func (m *memStore) GetOrCreate(_ context.Context, userID uuid.UUID, kind CounterKind, now time.Time) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return nil, errStoreDown
	}
	k := counterKey{userID, kind}
	rec, ok := m.counters[k]
	if !ok {
		rec = Record{UserID: userID, Kind: kind, WindowStart: now, UpdatedAt: now}
		m.counters[k] = rec
	}
	return &rec, nil
}

func (m *memStore) ResetWindow(_ context.Context, userID uuid.UUID, kind CounterKind, dayStart, dayEnd, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return false, errStoreDown
	}
	k := counterKey{userID, kind}
	rec, ok := m.counters[k]
	if !ok || (!rec.WindowStart.Before(dayStart) && rec.WindowStart.Before(dayEnd)) {
		return false, nil
	}
	rec.Count = 0
	rec.WindowStart = now
	m.counters[k] = rec
	return true, nil
}

func (m *memStore) Increment(_ context.Context, userID uuid.UUID, kind CounterKind) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return nil, errStoreDown
	}
	k := counterKey{userID, kind}
	rec := m.counters[k]
	rec.Count++
	m.counters[k] = rec
	return &rec, nil
}

func (m *memStore) IncrementIfBelow(_ context.Context, userID uuid.UUID, kind CounterKind, limit int) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return nil, false, errStoreDown
	}
	k := counterKey{userID, kind}
	rec := m.counters[k]
	if rec.Count >= limit {
		return nil, false, nil
	}
	rec.Count++
	m.counters[k] = rec
	return &rec, true, nil
}

func (m *memStore) Decrement(_ context.Context, userID uuid.UUID, kind CounterKind, windowStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return errStoreDown
	}
	k := counterKey{userID, kind}
	rec, ok := m.counters[k]
	if !ok || !rec.WindowStart.Equal(windowStart) {
		return nil
	}
	rec.Count = max(rec.Count-1, 0)
	m.counters[k] = rec
	return nil
}

func (m *memStore) DecrementCredit(_ context.Context, userID uuid.UUID) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return 0, false, errStoreDown
	}
	c := m.credits[userID]
	if c <= 0 {
		return 0, false, nil
	}
	m.credits[userID] = c - 1
	return c - 1, true, nil
}

func (m *memStore) IncrementCredit(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAll {
		return errStoreDown
	}
	m.credits[userID]++
	return nil
}

func (m *memStore) balance(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[userID]
}

func (m *memStore) count(userID uuid.UUID, kind CounterKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[counterKey{userID, kind}].Count
}

func (m *memStore) setRecord(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counterKey{rec.UserID, rec.Kind}] = rec
}

// accounts reads the credit balance from the store so both stay consistent.
type memAccounts struct {
	store *memStore
	tiers map[uuid.UUID]Account
	err   error
}

func (a *memAccounts) Account(_ context.Context, userID uuid.UUID) (Account, error) {
	if a.err != nil {
		return Account{}, a.err
	}
	acct, ok := a.tiers[userID]
	if !ok {
		acct = Account{Tier: TierFree}
	}
	a.store.mu.Lock()
	acct.CreditsRemaining = a.store.credits[userID]
	a.store.mu.Unlock()
	return acct, nil
}
