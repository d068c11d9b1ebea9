package oauth

import (
	"strings"
	"time"

	"github.com/retailcore/user-management/internal/domain"
)

// GrantType enumerates the OAuth 2.0 grants a client may use.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantClientCredentials GrantType = "client_credentials"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantImplicit          GrantType = "implicit"
)

// ParseGrantType validates a grant type string from client registration.
func ParseGrantType(value string) (GrantType, error) {
	switch GrantType(value) {
	case GrantAuthorizationCode, GrantClientCredentials, GrantRefreshToken, GrantImplicit:
		return GrantType(value), nil
	default:
		return "", domain.NewInvalidInput("invalid grant type: %s", value)
	}
}

// ResponseType enumerates supported authorization response types.
type ResponseType string

const (
	ResponseTypeCode  ResponseType = "code"
	ResponseTypeToken ResponseType = "token"
)

// ParseResponseType validates a response type string from client registration.
func ParseResponseType(value string) (ResponseType, error) {
	switch ResponseType(value) {
	case ResponseTypeCode, ResponseTypeToken:
		return ResponseType(value), nil
	default:
		return "", domain.NewInvalidInput("invalid response type: %s", value)
	}
}

// TokenEndpointAuthMethod enumerates client authentication styles at the
// token endpoint.
type TokenEndpointAuthMethod string

const (
	AuthMethodBasic TokenEndpointAuthMethod = "client_secret_basic"
	AuthMethodPost  TokenEndpointAuthMethod = "client_secret_post"
	AuthMethodNone  TokenEndpointAuthMethod = "none"
)

// ValidateRedirectURIs rejects any URI that is neither HTTPS nor localhost.
func ValidateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return domain.NewInvalidInput("at least one redirect URI is required")
	}
	for _, uri := range uris {
		if !strings.HasPrefix(uri, "https://") && !strings.HasPrefix(uri, "http://localhost") {
			return domain.NewInvalidInput("redirect URIs must use HTTPS or localhost")
		}
	}
	return nil
}

// Client is a registered OAuth 2.0 client.
type Client struct {
	ClientID                string
	ClientSecret            string
	ClientName              string
	RedirectURIs            []string
	GrantTypes              []GrantType
	ResponseTypes           []ResponseType
	Scopes                  []string
	TokenEndpointAuthMethod TokenEndpointAuthMethod
	CreatedAt               time.Time
	UpdatedAt               time.Time
	IsActive                bool
}

// HasGrantType reports whether the client declared the grant.
func (c Client) HasGrantType(grant GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == grant {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri is in the client's registered set.
func (c Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsScope reports whether scope is in the client's registered scopes.
func (c Client) AllowsScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Update applies the mutable registration fields. Empty values leave the
// current value in place.
func (c *Client) Update(name string, redirectURIs, scopes []string) {
	if name != "" {
		c.ClientName = name
	}
	if len(redirectURIs) > 0 {
		c.RedirectURIs = redirectURIs
	}
	if len(scopes) > 0 {
		c.Scopes = scopes
	}
	c.UpdatedAt = time.Now().UTC()
}

// AuthorizationCode is a single-use code minted after a successful login
// during an authorization request.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
	IsUsed              bool
}

// Expired reports whether the code is past its expiry.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// Token is an issued OAuth access token, optionally paired with a refresh
// token. Access tokens are opaque; introspection resolves them.
type Token struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	Scope        string
	ClientID     string
	UserID       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	IsRevoked    bool
}

// Active reports whether the token is neither revoked nor expired.
func (t Token) Active(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
