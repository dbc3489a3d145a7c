package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "treinoia"

	// Distinct audiences keep a refresh token from being replayed as an
	// access token even if both secrets were configured the same.
	audienceAccess  = "treinoia-api"
	audienceRefresh = "treinoia-refresh"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AccessClaims identify the caller on every authenticated request.
type AccessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims carry the id under which the token is stored in Redis.
type RefreshClaims struct {
	UserID  string `json:"uid"`
	TokenID string `json:"tid"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

func NewJWTManager(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

func (m *JWTManager) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// GenerateTokenPair signs a new access/refresh pair and returns the refresh
// token id alongside it.
func (m *JWTManager) GenerateTokenPair(userID, email string) (*TokenPair, string, error) {
	access := AccessClaims{
		UserID:           userID,
		Email:            email,
		RegisteredClaims: m.registered(userID, audienceAccess, m.accessExpiry),
	}
	accessStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(m.accessSecret)
	if err != nil {
		return nil, "", fmt.Errorf("signing access token: %w", err)
	}

	tokenID := uuid.NewString()
	refresh := RefreshClaims{
		UserID:           userID,
		TokenID:          tokenID,
		RegisteredClaims: m.registered(userID, audienceRefresh, m.refreshExpiry),
	}
	refreshStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(m.refreshSecret)
	if err != nil {
		return nil, "", fmt.Errorf("signing refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessStr,
		RefreshToken: refreshStr,
		ExpiresIn:    int64(m.accessExpiry.Seconds()),
		TokenType:    "Bearer",
	}, tokenID, nil
}

func (m *JWTManager) ValidateAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.accessSecret, audienceAccess); err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	return claims, nil
}

func (m *JWTManager) ValidateRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.refreshSecret, audienceRefresh); err != nil {
		return nil, fmt.Errorf("parsing refresh token: %w", err)
	}
	if claims.TokenID == "" {
		return nil, fmt.Errorf("parsing refresh token: missing token id")
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenStr string, claims jwt.Claims, secret []byte, audience string) error {
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	return err
}

func (m *JWTManager) RefreshExpiry() time.Duration {
	return m.refreshExpiry
}
