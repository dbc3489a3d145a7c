package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service is the account store behind registration and login. Emails are
// expected already normalized by the caller.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	if email == "" || passwordHash == "" {
		return nil, fmt.Errorf("creating user: email and password hash are required")
	}
	if email != strings.ToLower(strings.TrimSpace(email)) {
		return nil, fmt.Errorf("creating user: email %q is not normalized", email)
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail returns nil, nil for an unknown email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
