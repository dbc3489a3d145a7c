package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles usage_counters and the credit column of profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quota Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `user_id, kind, count, window_start, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.UserID, &rec.Kind, &rec.Count, &rec.WindowStart, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetOrCreate returns the counter row, inserting a zeroed one starting at now
// if it doesn't exist.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID, kind CounterKind, now time.Time) (*Record, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_counters (user_id, kind, count, window_start)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (user_id, kind) DO NOTHING`, userID, kind, now)
	if err != nil {
		return nil, fmt.Errorf("ensuring usage counter: %w", err)
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM usage_counters WHERE user_id = $1 AND kind = $2`, userID, kind))
	if err != nil {
		return nil, fmt.Errorf("fetching usage counter: %w", err)
	}
	return rec, nil
}

// ResetWindow zeroes the counter if its window does not fall inside
// [dayStart, dayEnd). Returns true if a reset was performed; a concurrent
// reset by another request makes this a no-op.
func (r *Repository) ResetWindow(ctx context.Context, userID uuid.UUID, kind CounterKind, dayStart, dayEnd, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE usage_counters
		 SET count = 0,
		     window_start = $5,
		     updated_at = NOW()
		 WHERE user_id = $1 AND kind = $2
		   AND (window_start < $3 OR window_start >= $4)`,
		userID, kind, dayStart, dayEnd, now)
	if err != nil {
		return false, fmt.Errorf("resetting usage counter: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Increment adds one to the counter unconditionally.
func (r *Repository) Increment(ctx context.Context, userID uuid.UUID, kind CounterKind) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`UPDATE usage_counters
		 SET count = count + 1,
		     updated_at = NOW()
		 WHERE user_id = $1 AND kind = $2
		 RETURNING `+recordColumns, userID, kind))
	if err != nil {
		return nil, fmt.Errorf("incrementing usage counter: %w", err)
	}
	return rec, nil
}

// IncrementIfBelow adds one only while count < limit, in a single statement.
// The bool is false when the limit was already reached.
func (r *Repository) IncrementIfBelow(ctx context.Context, userID uuid.UUID, kind CounterKind, limit int) (*Record, bool, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`UPDATE usage_counters
		 SET count = count + 1,
		     updated_at = NOW()
		 WHERE user_id = $1 AND kind = $2 AND count < $3
		 RETURNING `+recordColumns, userID, kind, limit))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reserving usage counter: %w", err)
	}
	return rec, true, nil
}

// Decrement gives back one unit, never going below zero. It only applies
// while the counter is still in the window that was reserved from, so a
// release that lands after midnight leaves the new day untouched.
func (r *Repository) Decrement(ctx context.Context, userID uuid.UUID, kind CounterKind, windowStart time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE usage_counters
		 SET count = GREATEST(count - 1, 0),
		     updated_at = NOW()
		 WHERE user_id = $1 AND kind = $2 AND window_start = $3`, userID, kind, windowStart)
	if err != nil {
		return fmt.Errorf("releasing usage counter: %w", err)
	}
	return nil
}

// IncrementCredit refunds one credit taken by a failed action.
func (r *Repository) IncrementCredit(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE profiles
		 SET credits_remaining = credits_remaining + 1,
		     updated_at = NOW()
		 WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("refunding credit: %w", err)
	}
	return nil
}

// DecrementCredit takes one credit if any is left. The bool is false when the
// balance was already zero, in which case nothing changes.
func (r *Repository) DecrementCredit(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	var credits int
	err := r.pool.QueryRow(ctx,
		`UPDATE profiles
		 SET credits_remaining = credits_remaining - 1,
		     updated_at = NOW()
		 WHERE user_id = $1 AND credits_remaining > 0
		 RETURNING credits_remaining`, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("decrementing credits: %w", err)
	}
	return credits, true, nil
}
