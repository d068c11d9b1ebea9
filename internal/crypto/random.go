package crypto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Opaque identifiers are UUIDv4 strings with a kind prefix. The prefix is
// for operational readability only and carries no security meaning.

func NewClientID() string {
	return "client_" + uuid.NewString()
}

func NewClientSecret() string {
	return "secret_" + uuid.NewString()
}

func NewAuthorizationCode() string {
	return "auth_" + uuid.NewString()
}

func NewAccessToken() string {
	return "token_" + uuid.NewString()
}

func NewRefreshToken() string {
	return "refresh_" + uuid.NewString()
}

// NewCSRFToken generates the hidden token embedded in the login form.
func NewCSRFToken() string {
	return fmt.Sprintf("csrf_%d_%s", time.Now().UnixNano(), uuid.NewString())
}
