package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "refresh:"

type Service struct {
	jwt *JWTManager
	rdb redis.Cmdable
}

func NewService(jwt *JWTManager, rdb redis.Cmdable) *Service {
	return &Service{
		jwt: jwt,
		rdb: rdb,
	}
}

func refreshKey(userID, tokenID string) string {
	return fmt.Sprintf("%s%s:%s", refreshKeyPrefix, userID, tokenID)
}

// GenerateTokens issues a new pair and remembers the refresh token id so it
// can be revoked.
func (s *Service) GenerateTokens(ctx context.Context, userID, email string) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(userID, email)
	if err != nil {
		return nil, err
	}

	if err := s.rdb.Set(ctx, refreshKey(userID, tokenID), email, s.jwt.RefreshExpiry()).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	return pair, nil
}

// RefreshTokens rotates a refresh token. The old one is revoked.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := refreshKey(claims.UserID, claims.TokenID)
	email, err := s.rdb.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("refresh token revoked")
	}
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}

	return s.GenerateTokens(ctx, claims.UserID, email)
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID string) error {
	iter := s.rdb.Scan(ctx, 0, refreshKey(userID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("revoking refresh token: %w", err)
		}
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*AccessClaims, error) {
	return s.jwt.ValidateAccessToken(token)
}

func (s *Service) JWT() *JWTManager {
	return s.jwt
}
