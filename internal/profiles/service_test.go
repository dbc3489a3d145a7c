package profiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treinoia/treinoia/internal/auth"
	inats "github.com/treinoia/treinoia/internal/nats"
	"github.com/treinoia/treinoia/internal/quota"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Profile
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]Profile)}
}

func (m *memRepo) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.UserID]; !ok {
		m.rows[p.UserID] = *p
	}
	return nil
}

func (m *memRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memRepo) Update(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.rows[p.UserID]
	cur.FullName, cur.FitnessLevel, cur.FitnessGoal = p.FullName, p.FitnessLevel, p.FitnessGoal
	cur.WeightKg, cur.HeightCm, cur.Age = p.WeightKg, p.HeightCm, p.Age
	m.rows[p.UserID] = cur
	return nil
}

func (m *memRepo) SetEntitlement(_ context.Context, userID uuid.UUID, tier, role string, credits *int) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	p.Tier = quota.Tier(tier)
	if role != "" {
		p.Role = Role(role)
	}
	if credits != nil {
		p.CreditsRemaining = *credits
	}
	m.rows[userID] = p
	return &p, nil
}

type recordingPublisher struct {
	inats.NopPublisher
	audits []inats.AuditEvent
}

func (r *recordingPublisher) PublishAuditEvent(_ context.Context, e inats.AuditEvent) error {
	r.audits = append(r.audits, e)
	return nil
}

func TestService_GetCreatesDefault(t *testing.T) {
	svc := NewService(newMemRepo(), nil, 10)
	userID := uuid.New()

	p, err := svc.Get(context.Background(), userID, "rita@example.pt")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, p.Role)
	assert.Equal(t, quota.TierFree, p.Tier)
	assert.Equal(t, 10, p.CreditsRemaining)
	assert.Equal(t, "rita@example.pt", p.Email)
}

func TestService_Account(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, 3)
	userID := uuid.New()
	require.NoError(t, svc.CreateDefault(context.Background(), userID, "a@b.pt", "Ana"))

	acct, err := svc.Account(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, quota.Account{Tier: quota.TierFree, CreditsRemaining: 3}, acct)

	repo.rows[userID] = Profile{UserID: userID, Role: RoleAdmin, Tier: quota.TierFree}
	acct, err = svc.Account(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, acct.Admin)
}

func TestService_UpdateKeepsPlanFields(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, 10)
	userID := uuid.New()
	require.NoError(t, svc.CreateDefault(context.Background(), userID, "a@b.pt", ""))

	level := "intermediario"
	age := 31
	p, err := svc.Update(context.Background(), userID, "", &UpdateProfileRequest{FitnessLevel: &level, Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "intermediario", p.FitnessLevel)
	require.NotNil(t, p.Age)
	assert.Equal(t, 31, *p.Age)

	stored, _ := repo.GetByUserID(context.Background(), userID)
	assert.Equal(t, quota.TierFree, stored.Tier)
	assert.Equal(t, 10, stored.CreditsRemaining)
}

func TestService_SetEntitlementPublishesAudit(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, pub, 10)
	userID, adminID := uuid.New(), uuid.New()
	require.NoError(t, svc.CreateDefault(context.Background(), userID, "a@b.pt", ""))

	credits := 50
	p, err := svc.SetEntitlement(context.Background(), adminID, userID, &EntitlementRequest{Tier: "premium", Credits: &credits})
	require.NoError(t, err)
	assert.Equal(t, quota.TierPremium, p.Tier)
	assert.Equal(t, 50, p.CreditsRemaining)

	require.Len(t, pub.audits, 1)
	assert.Equal(t, "entitlement_changed", pub.audits[0].EventType)
	assert.Equal(t, userID, pub.audits[0].OwnerUserID)

	missing, err := svc.SetEntitlement(context.Background(), adminID, uuid.New(), &EntitlementRequest{Tier: "plus"})
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Len(t, pub.audits, 1)
}

func TestRequireAdmin(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, 10)
	adminID, userID := uuid.New(), uuid.New()
	repo.rows[adminID] = Profile{UserID: adminID, Role: RoleAdmin}
	repo.rows[userID] = Profile{UserID: userID, Role: RoleUser}

	h := RequireAdmin(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		caller uuid.UUID
		status int
	}{
		{"admin passes", adminID, http.StatusNoContent},
		{"user rejected", userID, http.StatusForbidden},
		{"unknown rejected", uuid.New(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", nil)
			req = req.WithContext(auth.WithClaims(req.Context(), &auth.AccessClaims{UserID: tt.caller.String()}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
