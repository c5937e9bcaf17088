package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL applies when JWTConfig.AccessTokenTTL is unset.
	DefaultAccessTokenTTL = 15 * time.Minute

	clockSkew = 30 * time.Second
)

// JWTConfig configures the HS256 provider.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims follow the Firebase ID token layout so both providers yield the same Identity.
// Subject and user_id both carry the uid.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) uid() string {
	if uid := strings.TrimSpace(c.UserID); uid != "" {
		return uid
	}
	return strings.TrimSpace(c.Subject)
}

// JWTService verifies HS256 bearer tokens signed with a shared secret. Issue exists for
// trusted tooling and tests; browsers get their tokens from the identity provider.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
	issuer string
}

// NewJWTService validates cfg and builds the service.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	svc := &JWTService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.AccessTokenTTL,
		now:    cfg.Clock,
		issuer: strings.TrimSpace(cfg.Issuer),
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(svc.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if svc.issuer != "" {
		opts = append(opts, jwt.WithIssuer(svc.issuer))
	}
	svc.parser = jwt.NewParser(opts...)
	return svc, nil
}

// Issue signs a token for identity that expires after the configured TTL.
func (s *JWTService) Issue(identity Identity) (string, error) {
	uid := strings.TrimSpace(identity.UID)
	if uid == "" {
		return "", errors.New("jwt: identity has no uid")
	}

	now := s.now()
	claims := &Claims{
		UserID: uid,
		Email:  identity.Email,
		Name:   identity.DisplayName,
		Admin:  identity.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse checks the signature, expiry and issuer of raw and returns its claims.
func (s *JWTService) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("jwt: empty token")
	}

	var claims Claims
	if _, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	if claims.uid() == "" {
		return nil, errors.New("jwt: token has no uid")
	}
	return &claims, nil
}

// Verify implements Verifier.
func (s *JWTService) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return &Identity{
		UID:         claims.uid(),
		Email:       strings.TrimSpace(claims.Email),
		DisplayName: strings.TrimSpace(claims.Name),
		Admin:       claims.Admin,
	}, nil
}
