package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository implements Repository over four tables:
// users, oauth_clients, oauth_codes, oauth_tokens.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

const getUserSQL = `SELECT user_id, email_address, first_name, last_name, password_hash, user_type, created_at, last_active, order_count
FROM users WHERE user_id = $1`

func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var user domain.User
	var userType string
	err := r.db.QueryRow(ctx, getUserSQL, userID).Scan(
		&user.UserID,
		&user.EmailAddress,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&userType,
		&user.CreatedAt,
		&user.LastActive,
		&user.OrderCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	tier, err := domain.ParseTier(userType)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	user.Tier = tier
	return user, nil
}

const upsertUserSQL = `INSERT INTO users (user_id, email_address, first_name, last_name, password_hash, user_type, created_at, last_active, order_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	password_hash = EXCLUDED.password_hash,
	user_type = EXCLUDED.user_type,
	last_active = EXCLUDED.last_active,
	order_count = EXCLUDED.order_count`

func (r *PostgresRepository) UpdateUser(ctx context.Context, user domain.User) error {
	if _, err := r.db.Exec(ctx, upsertUserSQL,
		user.UserID,
		user.EmailAddress,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		string(user.Tier),
		user.CreatedAt,
		user.LastActive,
		user.OrderCount,
	); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

const upsertClientSQL = `INSERT INTO oauth_clients (client_id, client_secret, client_name, redirect_uris, grant_types, response_types, scopes, token_endpoint_auth_method, created_at, updated_at, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (client_id) DO UPDATE SET
	client_name = EXCLUDED.client_name,
	redirect_uris = EXCLUDED.redirect_uris,
	scopes = EXCLUDED.scopes,
	updated_at = EXCLUDED.updated_at,
	is_active = EXCLUDED.is_active`

func (r *PostgresRepository) CreateClient(ctx context.Context, client oauth.Client) error {
	grants := make([]string, 0, len(client.GrantTypes))
	for _, g := range client.GrantTypes {
		grants = append(grants, string(g))
	}
	responses := make([]string, 0, len(client.ResponseTypes))
	for _, rt := range client.ResponseTypes {
		responses = append(responses, string(rt))
	}
	if _, err := r.db.Exec(ctx, upsertClientSQL,
		client.ClientID,
		client.ClientSecret,
		client.ClientName,
		client.RedirectURIs,
		grants,
		responses,
		client.Scopes,
		string(client.TokenEndpointAuthMethod),
		client.CreatedAt,
		client.UpdatedAt,
		client.IsActive,
	); err != nil {
		return fmt.Errorf("create oauth client: %w", err)
	}
	return nil
}

const getClientSQL = `SELECT client_id, client_secret, client_name, redirect_uris, grant_types, response_types, scopes, token_endpoint_auth_method, created_at, updated_at, is_active
FROM oauth_clients WHERE client_id = $1`

func (r *PostgresRepository) GetClient(ctx context.Context, clientID string) (oauth.Client, error) {
	return r.scanClient(r.db.QueryRow(ctx, getClientSQL, clientID))
}

func (r *PostgresRepository) scanClient(row pgx.Row) (oauth.Client, error) {
	var client oauth.Client
	var grants, responses []string
	var authMethod string
	err := row.Scan(
		&client.ClientID,
		&client.ClientSecret,
		&client.ClientName,
		&client.RedirectURIs,
		&grants,
		&responses,
		&client.Scopes,
		&authMethod,
		&client.CreatedAt,
		&client.UpdatedAt,
		&client.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.Client{}, domain.ErrNotFound
	}
	if err != nil {
		return oauth.Client{}, fmt.Errorf("scan oauth client: %w", err)
	}
	for _, g := range grants {
		client.GrantTypes = append(client.GrantTypes, oauth.GrantType(g))
	}
	for _, rt := range responses {
		client.ResponseTypes = append(client.ResponseTypes, oauth.ResponseType(rt))
	}
	client.TokenEndpointAuthMethod = oauth.TokenEndpointAuthMethod(authMethod)
	return client, nil
}

func (r *PostgresRepository) UpdateClient(ctx context.Context, client oauth.Client) error {
	return r.CreateClient(ctx, client)
}

func (r *PostgresRepository) DeleteClient(ctx context.Context, clientID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_clients WHERE client_id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("delete oauth client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const listClientsSQL = `SELECT client_id, client_secret, client_name, redirect_uris, grant_types, response_types, scopes, token_endpoint_auth_method, created_at, updated_at, is_active
FROM oauth_clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`

func (r *PostgresRepository) ListClients(ctx context.Context, page, limit int) ([]oauth.Client, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, listClientsSQL, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list oauth clients: %w", err)
	}
	defer rows.Close()

	clients := make([]oauth.Client, 0, limit)
	for rows.Next() {
		client, err := r.scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *PostgresRepository) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) (bool, error) {
	client, err := r.GetClient(ctx, clientID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !client.IsActive {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) == 1, nil
}

const insertCodeSQL = `INSERT INTO oauth_codes (code, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, created_at, is_used)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *PostgresRepository) StoreCode(ctx context.Context, code oauth.AuthorizationCode) error {
	if _, err := r.db.Exec(ctx, insertCodeSQL,
		code.Code,
		code.ClientID,
		code.UserID,
		code.RedirectURI,
		code.Scopes,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.ExpiresAt,
		code.CreatedAt,
		code.IsUsed,
	); err != nil {
		return fmt.Errorf("store authorization code: %w", err)
	}
	return nil
}

const getCodeSQL = `SELECT code, client_id, user_id, redirect_uri, scopes, code_challenge, code_challenge_method, expires_at, created_at, is_used
FROM oauth_codes WHERE code = $1`

func (r *PostgresRepository) GetCode(ctx context.Context, code string) (oauth.AuthorizationCode, error) {
	var stored oauth.AuthorizationCode
	err := r.db.QueryRow(ctx, getCodeSQL, code).Scan(
		&stored.Code,
		&stored.ClientID,
		&stored.UserID,
		&stored.RedirectURI,
		&stored.Scopes,
		&stored.CodeChallenge,
		&stored.CodeChallengeMethod,
		&stored.ExpiresAt,
		&stored.CreatedAt,
		&stored.IsUsed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.AuthorizationCode{}, domain.ErrNotFound
	}
	if err != nil {
		return oauth.AuthorizationCode{}, fmt.Errorf("get authorization code: %w", err)
	}
	return stored, nil
}

// ConsumeCode flips is_used under a row-level condition so concurrent
// duplicate exchanges cannot both succeed.
func (r *PostgresRepository) ConsumeCode(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `UPDATE oauth_codes SET is_used = TRUE WHERE code = $1 AND is_used = FALSE`, code)
	if err != nil {
		return fmt.Errorf("consume authorization code: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM oauth_codes WHERE code = $1)`, code).Scan(&exists); err != nil {
		return fmt.Errorf("consume authorization code: %w", err)
	}
	if exists {
		return ErrCodeConsumed
	}
	return domain.ErrNotFound
}

const insertTokenSQL = `INSERT INTO oauth_tokens (access_token, token_type, expires_in, refresh_token, scope, client_id, user_id, created_at, expires_at, is_revoked)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (r *PostgresRepository) StoreToken(ctx context.Context, token oauth.Token) error {
	if _, err := r.db.Exec(ctx, insertTokenSQL,
		token.AccessToken,
		token.TokenType,
		token.ExpiresIn,
		token.RefreshToken,
		token.Scope,
		token.ClientID,
		token.UserID,
		token.CreatedAt,
		token.ExpiresAt,
		token.IsRevoked,
	); err != nil {
		return fmt.Errorf("store oauth token: %w", err)
	}
	return nil
}

const getTokenSQL = `SELECT access_token, token_type, expires_in, refresh_token, scope, client_id, user_id, created_at, expires_at, is_revoked
FROM oauth_tokens WHERE access_token = $1`

const getTokenByRefreshSQL = `SELECT access_token, token_type, expires_in, refresh_token, scope, client_id, user_id, created_at, expires_at, is_revoked
FROM oauth_tokens WHERE refresh_token = $1`

func (r *PostgresRepository) GetToken(ctx context.Context, accessToken string) (oauth.Token, error) {
	return r.scanToken(r.db.QueryRow(ctx, getTokenSQL, accessToken))
}

func (r *PostgresRepository) GetTokenByRefresh(ctx context.Context, refreshToken string) (oauth.Token, error) {
	return r.scanToken(r.db.QueryRow(ctx, getTokenByRefreshSQL, refreshToken))
}

func (r *PostgresRepository) scanToken(row pgx.Row) (oauth.Token, error) {
	var token oauth.Token
	err := row.Scan(
		&token.AccessToken,
		&token.TokenType,
		&token.ExpiresIn,
		&token.RefreshToken,
		&token.Scope,
		&token.ClientID,
		&token.UserID,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.IsRevoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.Token{}, domain.ErrNotFound
	}
	if err != nil {
		return oauth.Token{}, fmt.Errorf("scan oauth token: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) RevokeToken(ctx context.Context, accessToken string) error {
	tag, err := r.db.Exec(ctx, `UPDATE oauth_tokens SET is_revoked = TRUE WHERE access_token = $1`, accessToken)
	if err != nil {
		return fmt.Errorf("revoke oauth token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RevokeAllTokensForClient(ctx context.Context, clientID string) error {
	if _, err := r.db.Exec(ctx, `UPDATE oauth_tokens SET is_revoked = TRUE WHERE client_id = $1`, clientID); err != nil {
		return fmt.Errorf("revoke client tokens: %w", err)
	}
	return nil
}
