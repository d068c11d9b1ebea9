package service

import "fmt"

// DiscoveryService builds the RFC 8414 authorization server metadata
// document.
type DiscoveryService struct{}

func NewDiscoveryService() *DiscoveryService {
	return &DiscoveryService{}
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ResponseModesSupported            []string `json:"response_modes_supported"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ServiceDocumentation              string   `json:"service_documentation,omitempty"`
	UILocalesSupported                []string `json:"ui_locales_supported,omitempty"`
	OpPolicyURI                       string   `json:"op_policy_uri,omitempty"`
	OpTosURI                          string   `json:"op_tos_uri,omitempty"`
}

// Metadata builds the document from the request scheme and host.
func (s *DiscoveryService) Metadata(scheme, host string) AuthorizationServerMetadata {
	issuer := fmt.Sprintf("%s://%s", scheme, host)
	base := issuer + "/oauth"
	return AuthorizationServerMetadata{
		Issuer:                issuer,
		AuthorizationEndpoint: base + "/authorize",
		TokenEndpoint:         base + "/token",
		ScopesSupported:       []string{"openid", "profile", "email", "read", "write"},
		ResponseTypesSupported: []string{
			"code",
			"token",
			"id_token",
			"code token",
			"code id_token",
			"token id_token",
			"code token id_token",
		},
		GrantTypesSupported: []string{
			"authorization_code",
			"implicit",
			"refresh_token",
			"client_credentials",
		},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_basic",
			"client_secret_post",
			"none",
		},
		ResponseModesSupported:        []string{"query", "fragment", "form_post"},
		RegistrationEndpoint:          base + "/register",
		RevocationEndpoint:            base + "/revoke",
		IntrospectionEndpoint:         base + "/introspect",
		CodeChallengeMethodsSupported: []string{"plain", "S256"},
		ServiceDocumentation:          base + "/docs",
		UILocalesSupported:            []string{"en"},
	}
}
