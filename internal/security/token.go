// Package security verifies bearer tokens issued by the identity provider.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the role claim.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

var (
	// ErrMissingToken reports an absent or malformed Authorization header.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken reports a token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the identity provider claims the service relies on. Subject is
// the employee id; Tenant, when set, pins the token to one corporate id.
type Claims struct {
	Role   string `json:"role"`
	Tenant string `json:"tenant,omitempty"`
	jwt.RegisteredClaims
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// ParseToken verifies an HS256 token against secret.
func ParseToken(secret, token string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	claims := &Claims{}
	parsed, errParse := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if errParse != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errParse)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	claims.Tenant = strings.ToLower(strings.TrimSpace(claims.Tenant))
	return claims, nil
}

// IssueToken signs a token for subject. Used for local development and tests;
// production tokens come from the identity provider.
func IssueToken(secret, subject, role, tenant string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("security: empty secret")
	}
	now := time.Now().UTC()
	claims := Claims{
		Role:   role,
		Tenant: strings.ToLower(strings.TrimSpace(tenant)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// GenerateRandomString returns n random bytes hex encoded.
func GenerateRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: read random: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}
