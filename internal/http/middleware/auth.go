package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/retailcore/user-management/internal/token"
)

const claimsKey = "sessionClaims"

// Auth validates the session token on protected user routes.
type Auth struct {
	Tokens *token.Generator
}

// ValidateSessionToken requires a bearer token whose subject matches the
// userId path parameter.
func (m *Auth) ValidateSessionToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}

	claims, err := m.Tokens.Validate(header, c.Param("userId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

// GetSessionClaims exposes validated claims to handlers.
func GetSessionClaims(c *gin.Context) (*token.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*token.Claims)
	return claims, ok
}
