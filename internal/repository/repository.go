package repository

import (
	"context"
	"errors"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
)

// ErrCodeConsumed is returned by ConsumeCode when the authorization code was
// already exchanged. Callers treat it the same as an invalid code.
var ErrCodeConsumed = errors.New("authorization code already consumed")

// UserRepository persists the identity aggregate. Lookups are keyed by the
// hashed user id, never the plaintext email.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error
}

// ClientRepository persists registered OAuth clients.
type ClientRepository interface {
	CreateClient(ctx context.Context, client oauth.Client) error
	GetClient(ctx context.Context, clientID string) (oauth.Client, error)
	UpdateClient(ctx context.Context, client oauth.Client) error
	DeleteClient(ctx context.Context, clientID string) error
	ListClients(ctx context.Context, page, limit int) ([]oauth.Client, error)
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) (bool, error)
}

// CodeRepository persists authorization codes. ConsumeCode is the atomic
// check-and-mark-used transition: it succeeds for exactly one caller per
// code, even under concurrent duplicate exchange requests.
type CodeRepository interface {
	StoreCode(ctx context.Context, code oauth.AuthorizationCode) error
	GetCode(ctx context.Context, code string) (oauth.AuthorizationCode, error)
	ConsumeCode(ctx context.Context, code string) error
}

// TokenRepository persists issued OAuth tokens.
type TokenRepository interface {
	StoreToken(ctx context.Context, token oauth.Token) error
	GetToken(ctx context.Context, accessToken string) (oauth.Token, error)
	GetTokenByRefresh(ctx context.Context, refreshToken string) (oauth.Token, error)
	RevokeToken(ctx context.Context, accessToken string) error
	RevokeAllTokensForClient(ctx context.Context, clientID string) error
}

// Repository aggregates all persistence ports. Adapters implement the whole
// set against a single backing store.
type Repository interface {
	UserRepository
	ClientRepository
	CodeRepository
	TokenRepository
}
