package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/crypto"
	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
	"github.com/retailcore/user-management/internal/repository"
)

// OAuthService implements the authorization server: the authorize and token
// endpoints, introspection, and revocation.
type OAuthService struct {
	repo     repository.Repository
	codeTTL  time.Duration
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewOAuthService(repo repository.Repository, codeTTL, tokenTTL time.Duration, logger *zap.Logger) *OAuthService {
	return &OAuthService{repo: repo, codeTTL: codeTTL, tokenTTL: tokenTTL, logger: logger}
}

// AuthorizeRequest is the query portion of GET /oauth/authorize, carried
// through the login form as hidden fields.
type AuthorizeRequest struct {
	ClientID            string `form:"client_id"`
	RedirectURI         string `form:"redirect_uri"`
	ResponseType        string `form:"response_type"`
	Scope               string `form:"scope"`
	State               string `form:"state"`
	CodeChallenge       string `form:"code_challenge"`
	CodeChallengeMethod string `form:"code_challenge_method"`
}

// ValidateAuthorizeRequest checks the authorization request against the
// client registration before any login page is rendered.
func (s *OAuthService) ValidateAuthorizeRequest(ctx context.Context, req AuthorizeRequest) (oauth.Client, error) {
	if req.ClientID == "" {
		return oauth.Client{}, invalidRequest("client_id is required")
	}
	if req.RedirectURI == "" {
		return oauth.Client{}, invalidRequest("redirect_uri is required")
	}
	if req.ResponseType != string(oauth.ResponseTypeCode) {
		return oauth.Client{}, newOAuthError("unsupported_response_type", "only response_type=code is supported", 400)
	}

	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return oauth.Client{}, invalidClient("unknown client")
		}
		return oauth.Client{}, serverError("failed to load client")
	}
	if !client.IsActive {
		return oauth.Client{}, invalidClient("client is not active")
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		return oauth.Client{}, invalidRequest("redirect_uri is not registered for this client")
	}
	for _, scope := range strings.Fields(req.Scope) {
		if !client.AllowsScope(scope) {
			return oauth.Client{}, newOAuthError("invalid_scope", fmt.Sprintf("scope %q is not allowed for this client", scope), 400)
		}
	}
	return client, nil
}

// CompleteLogin authenticates the resource owner and, on success, mints a
// single-use authorization code and returns the redirect URL. Authentication
// failures return domain.ErrInvalidPassword regardless of whether the user
// exists, so the login page cannot be used to probe for accounts.
func (s *OAuthService) CompleteLogin(ctx context.Context, req AuthorizeRequest, email, password string) (string, error) {
	if _, err := s.ValidateAuthorizeRequest(ctx, req); err != nil {
		return "", err
	}

	user, err := s.repo.GetUser(ctx, crypto.HashIdentifier(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidPassword
		}
		return "", serverError("failed to load user")
	}
	if !crypto.VerifyPassword(password, user.PasswordHash) {
		return "", domain.ErrInvalidPassword
	}

	now := time.Now().UTC()
	code := oauth.AuthorizationCode{
		Code:                crypto.NewAuthorizationCode(),
		ClientID:            req.ClientID,
		UserID:              user.UserID,
		RedirectURI:         req.RedirectURI,
		Scopes:              strings.Fields(req.Scope),
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           now.Add(s.codeTTL),
		CreatedAt:           now,
	}
	if err := s.repo.StoreCode(ctx, code); err != nil {
		s.logger.Error("store authorization code failed", zap.Error(err))
		return "", serverError("failed to store authorization code")
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", invalidRequest("redirect_uri is not a valid URL")
	}
	query := redirect.Query()
	query.Set("code", code.Code)
	if req.State != "" {
		query.Set("state", req.State)
	}
	redirect.RawQuery = query.Encode()

	s.logger.Info("authorization code issued",
		zap.String("client_id", req.ClientID),
		zap.String("user_id", user.UserID),
	)
	return redirect.String(), nil
}

// TokenRequest is the token endpoint input, accepted as form or JSON.
type TokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
	Scope        string `form:"scope" json:"scope"`
}

// TokenResponse is the RFC 6749 token endpoint success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token dispatches on grant_type.
func (s *OAuthService) Token(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if req.ClientID == "" {
		return TokenResponse{}, invalidRequest("client_id is required")
	}
	switch oauth.GrantType(req.GrantType) {
	case oauth.GrantAuthorizationCode:
		return s.exchangeAuthorizationCode(ctx, req)
	case oauth.GrantRefreshToken:
		return s.refreshAccessToken(ctx, req)
	case oauth.GrantClientCredentials:
		return s.clientCredentials(ctx, req)
	default:
		return TokenResponse{}, newOAuthError("unsupported_grant_type", fmt.Sprintf("grant type %q is not supported", req.GrantType), 400)
	}
}

func (s *OAuthService) exchangeAuthorizationCode(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if req.Code == "" {
		return TokenResponse{}, invalidRequest("code is required")
	}

	code, err := s.repo.GetCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenResponse{}, invalidGrant("invalid authorization code")
		}
		return TokenResponse{}, serverError("failed to load authorization code")
	}

	now := time.Now().UTC()
	if code.Expired(now) {
		return TokenResponse{}, invalidGrant("authorization code has expired")
	}
	if code.ClientID != req.ClientID {
		return TokenResponse{}, invalidGrant("authorization code was issued to a different client")
	}

	// Clients routinely send the redirect URI percent-encoded; compare the
	// decoded form against what the code was bound to.
	requestRedirect := req.RedirectURI
	if decoded, decodeErr := url.QueryUnescape(requestRedirect); decodeErr == nil {
		requestRedirect = decoded
	}
	if requestRedirect != code.RedirectURI {
		return TokenResponse{}, invalidGrant("redirect_uri does not match the authorization request")
	}

	if code.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return TokenResponse{}, invalidRequest("code_verifier is required")
		}
		if !crypto.VerifyPKCE(req.CodeVerifier, code.CodeChallenge, code.CodeChallengeMethod) {
			return TokenResponse{}, invalidGrant("code verifier does not match the challenge")
		}
	} else {
		valid, err := s.repo.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret)
		if err != nil {
			return TokenResponse{}, serverError("failed to validate client credentials")
		}
		if !valid {
			return TokenResponse{}, invalidClient("invalid client credentials")
		}
	}

	// Single-use guarantee: exactly one concurrent exchange wins the
	// conditional update, every other one lands here with ErrCodeConsumed.
	if err := s.repo.ConsumeCode(ctx, req.Code); err != nil {
		if errors.Is(err, repository.ErrCodeConsumed) || errors.Is(err, domain.ErrNotFound) {
			return TokenResponse{}, invalidGrant("authorization code has already been used")
		}
		return TokenResponse{}, serverError("failed to consume authorization code")
	}

	return s.issueToken(ctx, code.ClientID, code.UserID, strings.Join(code.Scopes, " "), true)
}

func (s *OAuthService) refreshAccessToken(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if req.RefreshToken == "" {
		return TokenResponse{}, invalidRequest("refresh_token is required")
	}

	existing, err := s.repo.GetTokenByRefresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenResponse{}, invalidGrant("invalid refresh token")
		}
		return TokenResponse{}, serverError("failed to load refresh token")
	}
	if existing.IsRevoked {
		return TokenResponse{}, invalidGrant("refresh token has been revoked")
	}
	if existing.ClientID != req.ClientID {
		return TokenResponse{}, invalidGrant("refresh token was issued to a different client")
	}
	if req.ClientSecret != "" {
		valid, err := s.repo.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret)
		if err != nil {
			return TokenResponse{}, serverError("failed to validate client credentials")
		}
		if !valid {
			return TokenResponse{}, invalidClient("invalid client credentials")
		}
	}

	response, err := s.issueToken(ctx, existing.ClientID, existing.UserID, existing.Scope, true)
	if err != nil {
		return TokenResponse{}, err
	}

	// Rotation: the old access token stops working once the new pair exists.
	if err := s.repo.RevokeToken(ctx, existing.AccessToken); err != nil {
		s.logger.Warn("revoke rotated access token failed",
			zap.String("client_id", existing.ClientID),
			zap.Error(err),
		)
	}
	return response, nil
}

func (s *OAuthService) clientCredentials(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	valid, err := s.repo.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenResponse{}, invalidClient("unknown client")
		}
		return TokenResponse{}, serverError("failed to validate client credentials")
	}
	if !valid {
		return TokenResponse{}, invalidClient("invalid client credentials")
	}

	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		return TokenResponse{}, serverError("failed to load client")
	}
	if !client.HasGrantType(oauth.GrantClientCredentials) {
		return TokenResponse{}, newOAuthError("unauthorized_client", "client is not authorized for the client_credentials grant", 400)
	}

	scope := req.Scope
	if scope == "" {
		scope = strings.Join(client.Scopes, " ")
	}
	for _, sc := range strings.Fields(scope) {
		if !client.AllowsScope(sc) {
			return TokenResponse{}, newOAuthError("invalid_scope", fmt.Sprintf("scope %q is not allowed for this client", sc), 400)
		}
	}

	// Machine tokens belong to the client itself.
	return s.issueToken(ctx, req.ClientID, req.ClientID, scope, false)
}

func (s *OAuthService) issueToken(ctx context.Context, clientID, userID, scope string, withRefresh bool) (TokenResponse, error) {
	now := time.Now().UTC()
	token := oauth.Token{
		AccessToken: crypto.NewAccessToken(),
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
		Scope:       scope,
		ClientID:    clientID,
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.tokenTTL),
	}
	if withRefresh {
		token.RefreshToken = crypto.NewRefreshToken()
	}

	if err := s.repo.StoreToken(ctx, token); err != nil {
		s.logger.Error("store token failed", zap.Error(err))
		return TokenResponse{}, serverError("failed to store token")
	}

	return TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		ExpiresIn:    token.ExpiresIn,
		RefreshToken: token.RefreshToken,
		Scope:        token.Scope,
	}, nil
}

// IntrospectionResponse is the RFC 7662 response body. Inactive tokens carry
// active=false and nothing else.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
}

// Introspect resolves an access token. Unknown, expired, and revoked tokens
// all produce the same inactive response; the caller learns nothing about why.
func (s *OAuthService) Introspect(ctx context.Context, accessToken string) IntrospectionResponse {
	if accessToken == "" {
		return IntrospectionResponse{Active: false}
	}

	token, err := s.repo.GetToken(ctx, accessToken)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error("introspection lookup failed", zap.Error(err))
		}
		return IntrospectionResponse{Active: false}
	}
	if !token.Active(time.Now().UTC()) {
		return IntrospectionResponse{Active: false}
	}

	return IntrospectionResponse{
		Active:    true,
		Scope:     token.Scope,
		ClientID:  token.ClientID,
		Username:  token.UserID,
		TokenType: token.TokenType,
		Exp:       token.ExpiresAt.Unix(),
		Iat:       token.CreatedAt.Unix(),
	}
}

// Revoke invalidates an access token. Unknown tokens succeed; revocation is
// idempotent per RFC 7009. Client credentials are checked only when supplied.
func (s *OAuthService) Revoke(ctx context.Context, accessToken, clientID, clientSecret string) error {
	if accessToken == "" {
		return invalidRequest("token is required")
	}

	if clientSecret != "" {
		valid, err := s.repo.ValidateClientSecret(ctx, clientID, clientSecret)
		if err != nil {
			return serverError("failed to validate client credentials")
		}
		if !valid {
			return invalidClient("invalid client credentials")
		}
	}

	if err := s.repo.RevokeToken(ctx, accessToken); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return serverError("failed to revoke token")
	}
	return nil
}
