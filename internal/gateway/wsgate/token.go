package wsgate

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/gateway"
)

const issuer = "aaflbot"

// Claims identify a member to the gateway.
type Claims struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Member returns the member the claims describe.
func (c *Claims) Member() gateway.Member {
	return gateway.Member{ID: c.UserID, Name: c.Name, Roles: c.Roles}
}

// IssueToken signs a token for m valid for ttl.
func IssueToken(secret string, m gateway.Member, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.NewValidationError("a signing secret is required").WithField("gateway.jwt_secret")
	}
	if strings.TrimSpace(m.ID) == "" {
		return "", errors.NewValidationError("user id must not be empty").WithField("user_id")
	}
	now := time.Now()
	claims := Claims{
		UserID: m.ID,
		Name:   m.Name,
		Roles:  m.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   m.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a token and returns its claims.
func ParseToken(token, secret string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, errors.NewAuthorizationError("anonymous", "a valid token").WithCause(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, errors.NewAuthorizationError("anonymous", "a valid token").WithCause(jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}
