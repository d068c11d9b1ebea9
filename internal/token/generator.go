package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/retailcore/user-management/internal/crypto"
	"github.com/retailcore/user-management/internal/domain"
)

// Claims are the session token claims. The subject is the hashed user
// identifier, never the plaintext email.
type Claims struct {
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Generator signs and verifies the session bearer tokens issued by the plain
// login endpoint. These are distinct from OAuth access tokens: different
// subject, lifetime, and validation path.
type Generator struct {
	secret []byte
	ttl    time.Duration
}

func NewGenerator(secret string, ttl time.Duration) *Generator {
	return &Generator{secret: []byte(secret), ttl: ttl}
}

// Generate issues a signed HS256 session token for the user.
func (g *Generator) Generate(user domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserType: string(user.Tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", domain.NewInternal("sign session token", err)
	}
	return signed, nil
}

// Validate verifies the token signature and expiry, and that the subject
// matches the hash of claimedEmail. A stolen token cannot be replayed
// against a different user identifier. A leading "Bearer " prefix is
// accepted and stripped.
func (g *Generator) Validate(tokenString, claimedEmail string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	if claims.Subject != crypto.HashIdentifier(claimedEmail) {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
