// Package auth resolves the caller's identity from a bearer token. Every
// balance operation is scoped to the user id found here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"saldo/internal/core"
)

// Authenticator turns a raw bearer token into a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Claims accepts the user id in either sub or user_id.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) user() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// JWTAuthenticator validates HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTAuthenticator builds an authenticator. An empty issuer accepts any.
func NewJWTAuthenticator(secret, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", core.ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}

	userID := strings.TrimSpace(claims.user())
	if userID == "" {
		return "", fmt.Errorf("%w: token has no subject", core.ErrUnauthorized)
	}
	return userID, nil
}

// IssueToken signs a token for userID. The server never issues tokens on
// its own; this is for tooling and tests.
func (a *JWTAuthenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
