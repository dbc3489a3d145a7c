package profiles

import (
	"time"

	"github.com/google/uuid"

	"github.com/treinoia/treinoia/internal/quota"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Profile holds the plan entitlement and the fitness data of a user.
type Profile struct {
	UserID           uuid.UUID  `json:"user_id"`
	Email            string     `json:"email"`
	Role             Role       `json:"role"`
	Tier             quota.Tier `json:"subscription_tier"`
	CreditsRemaining int        `json:"credits_remaining"`
	FullName         string     `json:"full_name,omitempty"`
	FitnessLevel     string     `json:"fitness_level,omitempty"`
	FitnessGoal      string     `json:"fitness_goal,omitempty"`
	WeightKg         *float64   `json:"weight,omitempty"`
	HeightCm         *float64   `json:"height,omitempty"`
	Age              *int       `json:"age,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Account projects the profile onto what the quota engine needs.
func (p *Profile) Account() quota.Account {
	return quota.Account{
		Tier:             p.Tier,
		Admin:            p.Role == RoleAdmin,
		CreditsRemaining: p.CreditsRemaining,
	}
}

// UpdateProfileRequest carries the self-service fields. Plan fields are
// changed only through SetEntitlement.
type UpdateProfileRequest struct {
	FullName     *string  `json:"full_name" validate:"omitempty,max=120"`
	FitnessLevel *string  `json:"fitness_level" validate:"omitempty,oneof=iniciante intermediario avancado"`
	FitnessGoal  *string  `json:"fitness_goal" validate:"omitempty,oneof=perder_peso ganhar_massa manter_forma melhorar_resistencia"`
	WeightKg     *float64 `json:"weight" validate:"omitempty,gt=0,lt=500"`
	HeightCm     *float64 `json:"height" validate:"omitempty,gt=0,lt=300"`
	Age          *int     `json:"age" validate:"omitempty,gte=10,lte=120"`
}

// EntitlementRequest is the admin payload for a plan change.
type EntitlementRequest struct {
	Tier    string `json:"tier" validate:"required,oneof=free plus premium unlimited"`
	Credits *int   `json:"credits" validate:"omitempty,gte=0"`
	Role    string `json:"role" validate:"omitempty,oneof=admin user"`
}
