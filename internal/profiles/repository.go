package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	SetEntitlement(ctx context.Context, userID uuid.UUID, tier string, role string, credits *int) (*Profile, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const profileColumns = `user_id, email, role, tier, credits_remaining, full_name, fitness_level,
	fitness_goal, weight_kg, height_cm, age, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(&p.UserID, &p.Email, &p.Role, &p.Tier, &p.CreditsRemaining,
		&p.FullName, &p.FitnessLevel, &p.FitnessGoal, &p.WeightKg, &p.HeightCm, &p.Age,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts the profile unless one already exists for the user.
func (r *postgresRepository) Create(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (user_id, email, role, tier, credits_remaining, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		p.UserID, p.Email, p.Role, p.Tier, p.CreditsRemaining, p.FullName, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// Update writes the self-service fields only.
func (r *postgresRepository) Update(ctx context.Context, p *Profile) error {
	query := `
		UPDATE profiles
		SET full_name = $2, fitness_level = $3, fitness_goal = $4,
		    weight_kg = $5, height_cm = $6, age = $7, updated_at = $8
		WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query,
		p.UserID, p.FullName, p.FitnessLevel, p.FitnessGoal, p.WeightKg, p.HeightCm, p.Age, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// SetEntitlement changes the tier, and optionally the role and the credit
// balance, in one statement.
func (r *postgresRepository) SetEntitlement(ctx context.Context, userID uuid.UUID, tier string, role string, credits *int) (*Profile, error) {
	query := `
		UPDATE profiles
		SET tier = $2,
		    role = COALESCE(NULLIF($3, ''), role),
		    credits_remaining = COALESCE($4, credits_remaining),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID, tier, role, credits))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("setting entitlement: %w", err)
	}
	return p, nil
}
