package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/config"
	"github.com/treinoia/treinoia/internal/metrics"
	inats "github.com/treinoia/treinoia/internal/nats"
)

// Store persists the counters and the credit balance. *Repository is the
// Postgres implementation.
type Store interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, kind CounterKind, now time.Time) (*Record, error)
	ResetWindow(ctx context.Context, userID uuid.UUID, kind CounterKind, dayStart, dayEnd, now time.Time) (bool, error)
	Increment(ctx context.Context, userID uuid.UUID, kind CounterKind) (*Record, error)
	IncrementIfBelow(ctx context.Context, userID uuid.UUID, kind CounterKind, limit int) (*Record, bool, error)
	Decrement(ctx context.Context, userID uuid.UUID, kind CounterKind, windowStart time.Time) error
	DecrementCredit(ctx context.Context, userID uuid.UUID) (int, bool, error)
	IncrementCredit(ctx context.Context, userID uuid.UUID) error
}

// AccountSource resolves the plan state of a user.
type AccountSource interface {
	Account(ctx context.Context, userID uuid.UUID) (Account, error)
}

// BurstLimiter caps calls per minute. *RateLimiter is the Redis implementation.
type BurstLimiter interface {
	CheckAndIncrement(ctx context.Context, userID uuid.UUID, maxPerMinute int) (bool, error)
	GetMinuteUsage(ctx context.Context, userID uuid.UUID) (int, error)
}

// Service gates metered actions against plan limits.
type Service struct {
	store    Store
	accounts AccountSource
	limiter  BurstLimiter
	events   inats.EventPublisher
	plans    Plans
	cal      Calendar
	cfg      config.QuotaConfig
}

// NewService creates a new quota Service. limiter may be nil to disable the
// per-minute cap.
func NewService(store Store, accounts AccountSource, limiter BurstLimiter, events inats.EventPublisher, cfg config.QuotaConfig) *Service {
	if events == nil {
		events = inats.NopPublisher{}
	}
	if cfg.PhotoPolicy == "" {
		cfg.PhotoPolicy = PolicyDaily
	}
	return &Service{
		store:    store,
		accounts: accounts,
		limiter:  limiter,
		events:   events,
		plans:    NewPlans(cfg.FreeChatDaily, cfg.FreePhotoDaily),
		cal:      NewCalendar(cfg.Location()),
		cfg:      cfg,
	}
}

// CheckAndMaybeReset loads the counter, creating it if absent, and zeroes it
// when its window started on an earlier calendar day. Repeated calls on the
// same day have no further effect.
func (s *Service) CheckAndMaybeReset(ctx context.Context, userID uuid.UUID, kind CounterKind) (*Record, error) {
	now := s.cal.Now()
	rec, err := s.store.GetOrCreate(ctx, userID, kind, now)
	if err != nil {
		return nil, err
	}
	if s.cal.SameDay(rec.WindowStart, now) {
		return rec, nil
	}

	dayStart, dayEnd := s.cal.DayBounds(now)
	reset, err := s.store.ResetWindow(ctx, userID, kind, dayStart, dayEnd, now)
	if err != nil {
		return nil, err
	}
	if reset {
		slog.Debug("quota: window rolled over", "user_id", userID, "kind", kind, "previous_count", rec.Count)
	}
	return s.store.GetOrCreate(ctx, userID, kind, now)
}

// Consume records one successful action. Only call it after the gated
// action has succeeded.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, kind CounterKind) (*Record, error) {
	if _, err := s.CheckAndMaybeReset(ctx, userID, kind); err != nil {
		return nil, err
	}
	return s.store.Increment(ctx, userID, kind)
}

// DecrementCredit takes one credit, floored at zero. It reports whether a
// credit was taken; unlimited plans are a no-op that reports true.
func (s *Service) DecrementCredit(ctx context.Context, userID uuid.UUID) (bool, error) {
	acct, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("loading account: %w", err)
	}
	if s.plans.CreditsUnlimited(acct) {
		return true, nil
	}
	_, applied, err := s.store.DecrementCredit(ctx, userID)
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Reserve claims one unit of the user's allowance before the gated action
// runs. The caller must Commit on success or Release on failure, so a failed
// action leaves the counters as they were.
//
// Store and lookup failures fail open: the action is allowed and nothing is
// recorded for it.
func (s *Service) Reserve(ctx context.Context, userID uuid.UUID, kind CounterKind) (*Reservation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown counter kind %q", kind)
	}

	acct, err := s.accounts.Account(ctx, userID)
	if err != nil {
		slog.Warn("quota: account lookup failed, allowing request", "user_id", userID, "error", err)
		return s.reservation(userID, kind, modeNone), nil
	}

	if err := s.checkBurst(ctx, userID, kind); err != nil {
		return nil, err
	}

	if kind == KindPhoto && s.cfg.PhotoPolicy == PolicyCredits {
		if s.plans.CreditsUnlimited(acct) {
			return s.reservation(userID, kind, modeNone), nil
		}
		// The credit is taken up front so concurrent analyses cannot spend
		// the same balance twice. Release refunds it.
		_, applied, err := s.store.DecrementCredit(ctx, userID)
		if err != nil {
			slog.Warn("quota: credit reserve failed, allowing request", "user_id", userID, "error", err)
			return s.reservation(userID, kind, modeNone), nil
		}
		if !applied {
			s.deny(ctx, userID, kind, 0)
			return nil, ErrQuotaExceeded
		}
		return s.reservation(userID, kind, modeRefundCredit), nil
	}

	ent := s.plans.Entitlement(acct, kind)
	rec, err := s.CheckAndMaybeReset(ctx, userID, kind)
	if err != nil {
		slog.Warn("quota: counter check failed, allowing request", "user_id", userID, "kind", kind, "error", err)
		return s.reservation(userID, kind, modeNone), nil
	}

	if ent.IsUnlimited() {
		// Still counted so the quota view shows usage.
		return s.reservation(userID, kind, modeConsume), nil
	}

	if !IsAllowed(*rec, ent) {
		s.deny(ctx, userID, kind, ent.DailyLimit)
		return nil, ErrQuotaExceeded
	}

	taken, ok, err := s.store.IncrementIfBelow(ctx, userID, kind, ent.DailyLimit)
	if err != nil {
		slog.Warn("quota: reserve failed, allowing request", "user_id", userID, "kind", kind, "error", err)
		return s.reservation(userID, kind, modeNone), nil
	}
	if !ok {
		// Another request took the last unit between the check and the update.
		s.deny(ctx, userID, kind, ent.DailyLimit)
		return nil, ErrQuotaExceeded
	}
	res := s.reservation(userID, kind, modeRelease)
	res.windowStart = taken.WindowStart
	return res, nil
}

func (s *Service) checkBurst(ctx context.Context, userID uuid.UUID, kind CounterKind) error {
	if s.limiter == nil || s.cfg.MaxPerMinute <= 0 {
		return nil
	}
	allowed, err := s.limiter.CheckAndIncrement(ctx, userID, s.cfg.MaxPerMinute)
	if err != nil {
		slog.Warn("quota: rate limiter check failed, allowing request", "error", err)
		return nil
	}
	if !allowed {
		slog.Info("quota: per-minute limit hit", "user_id", userID, "kind", kind)
		return ErrRateLimited
	}
	return nil
}

func (s *Service) deny(ctx context.Context, userID uuid.UUID, kind CounterKind, limit int) {
	metrics.QuotaDeniedTotal.WithLabelValues(string(kind)).Inc()

	details := fmt.Sprintf("daily limit of %d reached", limit)
	if kind == KindPhoto && s.cfg.PhotoPolicy == PolicyCredits {
		details = "no credits remaining"
	}
	err := s.events.PublishAuditEvent(ctx, inats.AuditEvent{
		OwnerUserID:  userID,
		EventType:    "quota_exceeded",
		Severity:     "warn",
		ResourceType: "quota",
		ResourceID:   string(kind),
		Details:      details,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("quota: publishing denial event", "error", err)
	}
}

// Status returns the current usage for every counter.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	acct, err := s.accounts.Account(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}

	st := &Status{
		Tier:             acct.Tier,
		PhotoPolicy:      s.cfg.PhotoPolicy,
		CreditsRemaining: acct.CreditsRemaining,
		MinuteLimit:      s.cfg.MaxPerMinute,
	}

	for _, kind := range Kinds {
		rec, err := s.CheckAndMaybeReset(ctx, userID, kind)
		if err != nil {
			return nil, fmt.Errorf("getting %s counter: %w", kind, err)
		}
		ent := s.plans.Entitlement(acct, kind)
		ks := KindStatus{
			Kind:        kind,
			Limit:       ent.DailyLimit,
			Used:        rec.Count,
			Remaining:   Remaining(*rec, ent),
			Unlimited:   ent.IsUnlimited(),
			WindowStart: rec.WindowStart,
		}
		if ks.Unlimited {
			ks.Limit = Unlimited
		}
		if kind == KindPhoto && s.cfg.PhotoPolicy == PolicyCredits {
			// No daily cap applies; the balance is the only limit.
			ks.CreditsDriven = true
			ks.Limit = Unlimited
			ks.Remaining = acct.CreditsRemaining
			if s.plans.CreditsUnlimited(acct) {
				ks.Remaining = Unlimited
			}
		}
		st.Counters = append(st.Counters, ks)
	}

	if s.limiter != nil {
		used, err := s.limiter.GetMinuteUsage(ctx, userID)
		if err != nil {
			slog.Warn("quota: failed to get minute usage", "error", err)
		}
		st.MinuteUsed = used
	}

	return st, nil
}

type reservationMode int

const (
	modeNone         reservationMode = iota // nothing recorded
	modeRelease                             // unit already taken, give it back on failure
	modeConsume                             // count on success only
	modeRefundCredit                        // credit already taken, refund it on failure
)

// Reservation is a claimed unit of quota for one in-flight action.
type Reservation struct {
	svc    *Service
	userID uuid.UUID
	kind   CounterKind
	mode   reservationMode

	// windowStart pins a modeRelease unit to the day it was taken from.
	windowStart time.Time
	done        bool
}

func (s *Service) reservation(userID uuid.UUID, kind CounterKind, mode reservationMode) *Reservation {
	return &Reservation{svc: s, userID: userID, kind: kind, mode: mode}
}

// Commit finalizes the reservation after the action succeeded. Bookkeeping
// errors are logged and swallowed.
func (r *Reservation) Commit(ctx context.Context) {
	if r.done {
		return
	}
	r.done = true
	ctx = context.WithoutCancel(ctx)

	if r.mode != modeConsume {
		return
	}
	if _, err := r.svc.Consume(ctx, r.userID, r.kind); err != nil {
		slog.Warn("quota: recording usage failed", "user_id", r.userID, "kind", r.kind, "error", err)
	}
}

// Release returns the reserved unit after the action failed.
func (r *Reservation) Release(ctx context.Context) {
	if r.done {
		return
	}
	r.done = true
	ctx = context.WithoutCancel(ctx)

	var err error
	switch r.mode {
	case modeRelease:
		err = r.svc.store.Decrement(ctx, r.userID, r.kind, r.windowStart)
	case modeRefundCredit:
		err = r.svc.store.IncrementCredit(ctx, r.userID)
	}
	if err != nil {
		slog.Warn("quota: releasing reservation failed", "user_id", r.userID, "kind", r.kind, "error", err)
	}
}
