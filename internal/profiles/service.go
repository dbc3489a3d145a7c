package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	inats "github.com/treinoia/treinoia/internal/nats"
	"github.com/treinoia/treinoia/internal/quota"
)

type Service struct {
	repo           Repository
	events         inats.EventPublisher
	defaultCredits int
}

func NewService(repo Repository, events inats.EventPublisher, defaultCredits int) *Service {
	if events == nil {
		events = inats.NopPublisher{}
	}
	return &Service{repo: repo, events: events, defaultCredits: defaultCredits}
}

// CreateDefault provisions a free, non-admin profile.
func (s *Service) CreateDefault(ctx context.Context, userID uuid.UUID, email, fullName string) error {
	_, err := s.create(ctx, userID, email, fullName)
	return err
}

func (s *Service) create(ctx context.Context, userID uuid.UUID, email, fullName string) (*Profile, error) {
	now := time.Now()
	p := &Profile{
		UserID:           userID,
		Email:            email,
		Role:             RoleUser,
		Tier:             quota.TierFree,
		CreditsRemaining: s.defaultCredits,
		FullName:         fullName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the profile, creating the default one if the user has none.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, email string) (*Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	slog.Info("profile missing, creating default", "user_id", userID)
	if _, err := s.create(ctx, userID, email, ""); err != nil {
		return nil, err
	}
	// Re-read in case a concurrent request created it first.
	p, err = s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile for %s not found after create", userID)
	}
	return p, nil
}

// Account implements quota.AccountSource.
func (s *Service) Account(ctx context.Context, userID uuid.UUID) (quota.Account, error) {
	p, err := s.Get(ctx, userID, "")
	if err != nil {
		return quota.Account{}, err
	}
	return p.Account(), nil
}

// Update applies the non-nil self-service fields.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, email string, req *UpdateProfileRequest) (*Profile, error) {
	p, err := s.Get(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		p.FullName = *req.FullName
	}
	if req.FitnessLevel != nil {
		p.FitnessLevel = *req.FitnessLevel
	}
	if req.FitnessGoal != nil {
		p.FitnessGoal = *req.FitnessGoal
	}
	if req.WeightKg != nil {
		p.WeightKg = req.WeightKg
	}
	if req.HeightCm != nil {
		p.HeightCm = req.HeightCm
	}
	if req.Age != nil {
		p.Age = req.Age
	}
	p.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetEntitlement applies a plan change made by an administrator and records
// it in the audit trail. Returns nil when the user has no profile.
func (s *Service) SetEntitlement(ctx context.Context, actorID, userID uuid.UUID, req *EntitlementRequest) (*Profile, error) {
	p, err := s.repo.SetEntitlement(ctx, userID, req.Tier, req.Role, req.Credits)
	if err != nil || p == nil {
		return p, err
	}

	details := fmt.Sprintf("tier=%s role=%s credits=%d by=%s", p.Tier, p.Role, p.CreditsRemaining, actorID)
	err = s.events.PublishAuditEvent(ctx, inats.AuditEvent{
		OwnerUserID:  userID,
		EventType:    "entitlement_changed",
		Severity:     "info",
		ResourceType: "profile",
		ResourceID:   userID.String(),
		Details:      details,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing entitlement event", "user_id", userID, "error", err)
	}
	return p, nil
}
