package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{Secret: "   "})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestIssueAndParse(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "super-secret", Issuer: "directory", AccessTokenTTL: time.Hour, Clock: fixedClock(&current)})
	require.NoError(t, err)

	token, err := svc.Issue(Identity{UID: "cust-1", Email: "jonas@example.com", DisplayName: "Jonas"})
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "cust-1", claims.UserID)
	require.Equal(t, "cust-1", claims.Subject)
	require.Equal(t, "directory", claims.Issuer)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))

	_, err = svc.Issue(Identity{UID: " "})
	require.Error(t, err)
}

func TestVerifyReturnsIdentity(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	want := Identity{UID: "admin-1", Email: "ops@example.com", DisplayName: "Ops", Admin: true}
	token, err := svc.Issue(want)
	require.NoError(t, err)

	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, &want, identity)

	_, err = svc.Verify(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAcceptsSubjectOnlyTokens(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "vendor-agent-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	identity, err := svc.Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "vendor-agent-9", identity.UID)
}

func TestParseRejects(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "directory", AccessTokenTTL: time.Minute, Clock: fixedClock(&current)})
	require.NoError(t, err)
	token, err := svc.Issue(Identity{UID: "cust-1"})
	require.NoError(t, err)

	other, err := NewJWTService(JWTConfig{Secret: "other-secret", Issuer: "directory", Clock: fixedClock(&current)})
	require.NoError(t, err)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	foreign, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "elsewhere", Clock: fixedClock(&current)})
	require.NoError(t, err)
	_, err = foreign.Parse(token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "cust-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Parse(noExpiry)
	require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)

	current = current.Add(20 * time.Second)
	_, err = svc.Parse(token)
	require.NoError(t, err, "within expiry")

	current = current.Add(2 * time.Minute)
	_, err = svc.Parse(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}
