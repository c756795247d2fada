// Package services provides external service integrations and technical concerns like the upstream ad API and tokens
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/click-sentinel/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenService issues and validates advertiser access tokens
type TokenService interface {
	GenerateToken(advertiserID uint) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in an access token
type TokenClaims struct {
	AdvertiserID uint      `json:"advertiser_id"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenID      string    `json:"jti"`
}

type advertiserClaims struct {
	AdvertiserID uint `json:"advertiser_id"`
	jwt.RegisteredClaims
}

// TokenServiceImpl implements TokenService with HS256
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	secretKey      []byte
	issuer         string
	audience       string
}

// NewTokenService creates a new token service
func NewTokenService(accessTokenTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if accessTokenTTL <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		secretKey:      []byte(secretKey),
		issuer:         issuer,
		audience:       audience,
	}, nil
}

// GenerateToken issues an access token for an advertiser
func (s *TokenServiceImpl) GenerateToken(advertiserID uint) (string, error) {
	now := utils.UTCNow()
	claims := advertiserClaims{
		AdvertiserID: advertiserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken validates a token and returns its claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims advertiserClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.AdvertiserID == 0 || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		AdvertiserID: claims.AdvertiserID,
		IssuedAt:     claims.IssuedAt.Time,
		ExpiresAt:    claims.ExpiresAt.Time,
		TokenID:      claims.ID,
	}, nil
}
