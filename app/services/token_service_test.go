package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", testSecret)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		ttl         time.Duration
		secretKey   string
		expectError bool
	}{
		{name: "valid configuration", ttl: time.Minute, secretKey: testSecret},
		{name: "missing secret key", ttl: time.Minute, expectError: true},
		{name: "zero ttl", ttl: 0, secretKey: testSecret, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.ttl, "iss", "aud", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := createTestTokenService(t)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.AdvertiserID)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, claims.IssuedAt.Add(15*time.Minute), claims.ExpiresAt, time.Second)
}

func TestTokenService_ValidateToken_Invalid(t *testing.T) {
	svc := createTestTokenService(t)

	other, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", "another-secret-key-that-is-32-chars-long")
	require.NoError(t, err)
	foreign, err := other.GenerateToken(1)
	require.NoError(t, err)

	wrongIssuer, err := NewTokenService(15*time.Minute, "someone-else", "test-audience", testSecret)
	require.NoError(t, err)
	wrongIssuerToken, err := wrongIssuer.GenerateToken(1)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"advertiser_id": 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
		{name: "foreign signature", token: foreign},
		{name: "wrong issuer", token: wrongIssuerToken},
		{name: "alg none", token: noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTokenService_ValidateToken_Expired(t *testing.T) {
	svc := createTestTokenService(t)

	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, advertiserClaims{
		AdvertiserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
