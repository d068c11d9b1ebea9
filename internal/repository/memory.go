package repository

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is a mutex-guarded in-process Repository. It backs the
// "memory" driver for local development and the test suites.
type MemoryRepository struct {
	mu      sync.Mutex
	users   map[string]domain.User
	clients map[string]oauth.Client
	codes   map[string]oauth.AuthorizationCode
	tokens  map[string]oauth.Token
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string]domain.User),
		clients: make(map[string]oauth.Client),
		codes:   make(map[string]oauth.AuthorizationCode),
		tokens:  make(map[string]oauth.Token),
	}
}

func (r *MemoryRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
	return nil
}

func (r *MemoryRepository) CreateClient(ctx context.Context, client oauth.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ClientID] = client
	return nil
}

func (r *MemoryRepository) GetClient(ctx context.Context, clientID string) (oauth.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return oauth.Client{}, domain.ErrNotFound
	}
	return client, nil
}

func (r *MemoryRepository) UpdateClient(ctx context.Context, client oauth.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client.ClientID]; !ok {
		return domain.ErrNotFound
	}
	r.clients[client.ClientID] = client
	return nil
}

func (r *MemoryRepository) DeleteClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[clientID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.clients, clientID)
	return nil
}

func (r *MemoryRepository) ListClients(ctx context.Context, page, limit int) ([]oauth.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	all := make([]oauth.Client, 0, len(r.clients))
	for _, client := range r.clients {
		all = append(all, client)
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []oauth.Client{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *MemoryRepository) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok || !client.IsActive {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) == 1, nil
}

func (r *MemoryRepository) StoreCode(ctx context.Context, code oauth.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.Code] = code
	return nil
}

func (r *MemoryRepository) GetCode(ctx context.Context, code string) (oauth.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.codes[code]
	if !ok {
		return oauth.AuthorizationCode{}, domain.ErrNotFound
	}
	return stored, nil
}

func (r *MemoryRepository) ConsumeCode(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.codes[code]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.IsUsed {
		return ErrCodeConsumed
	}
	stored.IsUsed = true
	r.codes[code] = stored
	return nil
}

func (r *MemoryRepository) StoreToken(ctx context.Context, token oauth.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.AccessToken] = token
	return nil
}

func (r *MemoryRepository) GetToken(ctx context.Context, accessToken string) (oauth.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[accessToken]
	if !ok {
		return oauth.Token{}, domain.ErrNotFound
	}
	return token, nil
}

func (r *MemoryRepository) GetTokenByRefresh(ctx context.Context, refreshToken string) (oauth.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.RefreshToken != "" && token.RefreshToken == refreshToken {
			return token, nil
		}
	}
	return oauth.Token{}, domain.ErrNotFound
}

func (r *MemoryRepository) RevokeToken(ctx context.Context, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[accessToken]
	if !ok {
		return domain.ErrNotFound
	}
	token.IsRevoked = true
	r.tokens[accessToken] = token
	return nil
}

func (r *MemoryRepository) RevokeAllTokensForClient(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, token := range r.tokens {
		if token.ClientID == clientID {
			token.IsRevoked = true
			r.tokens[key] = token
		}
	}
	return nil
}
