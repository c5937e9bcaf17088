package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/require"
)

type stubTokenVerifier struct {
	token *fbauth.Token
	err   error
	seen  string
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	s.seen = idToken
	return s.token, s.err
}

func TestFirebaseVerifierMapsClaims(t *testing.T) {
	stub := &stubTokenVerifier{token: &fbauth.Token{
		UID: "uid-1",
		Claims: map[string]interface{}{
			"email": "agent@acme.example",
			"name":  "Agent A",
			"admin": true,
		},
	}}
	verifier := newFirebaseVerifier(stub)

	identity, err := verifier.Verify(context.Background(), " id-token ")
	require.NoError(t, err)
	require.Equal(t, "id-token", stub.seen)
	require.Equal(t, &Identity{UID: "uid-1", Email: "agent@acme.example", DisplayName: "Agent A", Admin: true}, identity)
}

func TestFirebaseVerifierRejects(t *testing.T) {
	verifier := newFirebaseVerifier(&stubTokenVerifier{err: errors.New("expired")})
	_, err := verifier.Verify(context.Background(), "token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = verifier.Verify(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidToken)

	verifier = newFirebaseVerifier(&stubTokenVerifier{token: &fbauth.Token{}})
	_, err = verifier.Verify(context.Background(), "token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimBool(t *testing.T) {
	require.True(t, claimBool(map[string]any{"admin": "TRUE"}, "admin"))
	require.False(t, claimBool(map[string]any{"admin": 1}, "admin"))
	require.False(t, claimBool(nil, "admin"))
}
