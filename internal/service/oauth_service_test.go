package service_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/crypto"
	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
	"github.com/retailcore/user-management/internal/repository"
	"github.com/retailcore/user-management/internal/service"
)

const (
	testEmail    = "john@example.com"
	testPassword = "hunter2hunter2"
)

func newOAuthFixture(t *testing.T) (*repository.MemoryRepository, *service.OAuthService, oauth.Client) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	svc := service.NewOAuthService(repo, 10*time.Minute, time.Hour, zap.NewNop())

	hash, err := crypto.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateUser(context.Background(), domain.NewUser(testEmail, "John", "Doe", hash)))

	now := time.Now().UTC()
	client := oauth.Client{
		ClientID:     "client_test",
		ClientSecret: "secret_test",
		ClientName:   "Test App",
		RedirectURIs: []string{"https://app.example.com/callback"},
		GrantTypes:   []oauth.GrantType{oauth.GrantAuthorizationCode, oauth.GrantRefreshToken, oauth.GrantClientCredentials},
		Scopes:       []string{"read", "write", "email", "openid", "profile"},
		CreatedAt:    now,
		UpdatedAt:    now,
		IsActive:     true,
	}
	require.NoError(t, repo.CreateClient(context.Background(), client))
	return repo, svc, client
}

func authorizeRequest(client oauth.Client) service.AuthorizeRequest {
	return service.AuthorizeRequest{
		ClientID:     client.ClientID,
		RedirectURI:  client.RedirectURIs[0],
		ResponseType: "code",
		Scope:        "read openid",
		State:        "xyz",
	}
}

func codeFromRedirect(t *testing.T, redirect string) string {
	t.Helper()
	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	code := parsed.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestValidateAuthorizeRequest(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	_, err := svc.ValidateAuthorizeRequest(ctx, authorizeRequest(client))
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*service.AuthorizeRequest)
		code   string
	}{
		{"missing client id", func(r *service.AuthorizeRequest) { r.ClientID = "" }, "invalid_request"},
		{"unknown client", func(r *service.AuthorizeRequest) { r.ClientID = "client_missing" }, "invalid_client"},
		{"missing redirect", func(r *service.AuthorizeRequest) { r.RedirectURI = "" }, "invalid_request"},
		{"unregistered redirect", func(r *service.AuthorizeRequest) { r.RedirectURI = "https://evil.example.com" }, "invalid_request"},
		{"wrong response type", func(r *service.AuthorizeRequest) { r.ResponseType = "token" }, "unsupported_response_type"},
		{"disallowed scope", func(r *service.AuthorizeRequest) { r.Scope = "admin" }, "invalid_scope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authorizeRequest(client)
			tc.mutate(&req)
			_, err := svc.ValidateAuthorizeRequest(ctx, req)
			var oauthErr *service.OAuthError
			require.ErrorAs(t, err, &oauthErr)
			require.Equal(t, tc.code, oauthErr.Code)
		})
	}
}

func TestCompleteLoginIssuesCodeAndState(t *testing.T) {
	ctx := context.Background()
	repo, svc, client := newOAuthFixture(t)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(redirect, client.RedirectURIs[0]))

	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, "xyz", parsed.Query().Get("state"))

	stored, err := repo.GetCode(ctx, parsed.Query().Get("code"))
	require.NoError(t, err)
	require.Equal(t, client.ClientID, stored.ClientID)
	require.Equal(t, crypto.HashIdentifier(testEmail), stored.UserID)
	require.False(t, stored.IsUsed)
}

func TestCompleteLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	_, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)

	// Unknown user looks exactly like a wrong password.
	_, err = svc.CompleteLogin(ctx, authorizeRequest(client), "nobody@example.com", testPassword)
	require.ErrorIs(t, err, domain.ErrInvalidPassword)
}

func TestAuthorizationCodeExchangeWithClientSecret(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	code := codeFromRedirect(t, redirect)

	resp, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  client.RedirectURIs[0],
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.AccessToken, "token_"))
	require.True(t, strings.HasPrefix(resp.RefreshToken, "refresh_"))
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int64(3600), resp.ExpiresIn)
	require.Equal(t, "read openid", resp.Scope)
}

func TestAuthorizationCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	code := codeFromRedirect(t, redirect)

	req := service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  client.RedirectURIs[0],
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	}
	_, err = svc.Token(ctx, req)
	require.NoError(t, err)

	_, err = svc.Token(ctx, req)
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)
}

func TestAuthorizationCodeExchangeWithPKCE(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	req := authorizeRequest(client)
	req.CodeChallenge = crypto.ChallengeS256(verifier)
	req.CodeChallengeMethod = "S256"

	redirect, err := svc.CompleteLogin(ctx, req, testEmail, testPassword)
	require.NoError(t, err)
	code := codeFromRedirect(t, redirect)

	// Wrong verifier fails and does not consume the code.
	_, err = svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  req.RedirectURI,
		ClientID:     client.ClientID,
		CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier",
	})
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)

	// No client secret needed when PKCE is in play.
	resp, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  req.RedirectURI,
		ClientID:     client.ClientID,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestAuthorizationCodeRejectsMismatches(t *testing.T) {
	ctx := context.Background()
	repo, svc, client := newOAuthFixture(t)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	code := codeFromRedirect(t, redirect)

	base := service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  client.RedirectURIs[0],
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	}

	wrongRedirect := base
	wrongRedirect.RedirectURI = "https://app.example.com/other"
	_, err = svc.Token(ctx, wrongRedirect)
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)

	wrongClient := base
	wrongClient.ClientID = "client_other"
	_, err = svc.Token(ctx, wrongClient)
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)

	wrongSecret := base
	wrongSecret.ClientSecret = "secret_wrong"
	_, err = svc.Token(ctx, wrongSecret)
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_client", oauthErr.Code)

	// An expired code is rejected before any consumption.
	stored, err := repo.GetCode(ctx, code)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.StoreCode(ctx, stored))
	_, err = svc.Token(ctx, base)
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)
}

func TestPercentEncodedRedirectURIMatches(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	code := codeFromRedirect(t, redirect)

	resp, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  url.QueryEscape(client.RedirectURIs[0]),
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	repo, svc, client := newOAuthFixture(t)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)

	first, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         codeFromRedirect(t, redirect),
		RedirectURI:  client.RedirectURIs[0],
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	require.NoError(t, err)

	second, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     client.ClientID,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-out access token no longer introspects as active.
	old, err := repo.GetToken(ctx, first.AccessToken)
	require.NoError(t, err)
	require.True(t, old.IsRevoked)

	// Wrong client cannot replay the refresh token.
	_, err = svc.Token(ctx, service.TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: second.RefreshToken,
		ClientID:     "client_other",
	})
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	resp, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		Scope:        "read",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Empty(t, resp.RefreshToken)

	introspection := svc.Introspect(ctx, resp.AccessToken)
	require.True(t, introspection.Active)
	require.Equal(t, client.ClientID, introspection.Username)

	_, err = svc.Token(ctx, service.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     client.ClientID,
		ClientSecret: "secret_wrong",
	})
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_client", oauthErr.Code)
}

func TestUnsupportedGrantType(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	_, err := svc.Token(ctx, service.TokenRequest{GrantType: "password", ClientID: client.ClientID})
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "unsupported_grant_type", oauthErr.Code)
}

func TestIntrospectHidesTokenState(t *testing.T) {
	ctx := context.Background()
	repo, svc, client := newOAuthFixture(t)

	unknown := svc.Introspect(ctx, "token_unknown")
	require.False(t, unknown.Active)
	require.Empty(t, unknown.ClientID)
	require.Empty(t, unknown.Scope)

	empty := svc.Introspect(ctx, "")
	require.False(t, empty.Active)

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	resp, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         codeFromRedirect(t, redirect),
		RedirectURI:  client.RedirectURIs[0],
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	require.NoError(t, err)

	active := svc.Introspect(ctx, resp.AccessToken)
	require.True(t, active.Active)
	require.Equal(t, client.ClientID, active.ClientID)
	require.Equal(t, "Bearer", active.TokenType)
	require.Greater(t, active.Exp, active.Iat)

	// Expired tokens collapse into the same inactive response.
	stored, err := repo.GetToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.StoreToken(ctx, stored))
	require.False(t, svc.Introspect(ctx, resp.AccessToken).Active)
}

func TestRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	// Unknown tokens succeed.
	require.NoError(t, svc.Revoke(ctx, "token_unknown", "", ""))

	redirect, err := svc.CompleteLogin(ctx, authorizeRequest(client), testEmail, testPassword)
	require.NoError(t, err)
	resp, err := svc.Token(ctx, service.TokenRequest{
		GrantType:    "authorization_code",
		Code:         codeFromRedirect(t, redirect),
		RedirectURI:  client.RedirectURIs[0],
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, resp.AccessToken, "", ""))
	require.False(t, svc.Introspect(ctx, resp.AccessToken).Active)
	require.NoError(t, svc.Revoke(ctx, resp.AccessToken, "", ""))
}

func TestRevokeValidatesSuppliedClientCredentials(t *testing.T) {
	ctx := context.Background()
	_, svc, client := newOAuthFixture(t)

	err := svc.Revoke(ctx, "token_unknown", client.ClientID, "secret_wrong")
	var oauthErr *service.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_client", oauthErr.Code)

	require.NoError(t, svc.Revoke(ctx, "token_unknown", client.ClientID, client.ClientSecret))
}
