package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/crypto"
	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
	"github.com/retailcore/user-management/internal/repository"
)

// Scopes granted to every newly registered client.
var defaultClientScopes = []string{"read", "write", "email", "openid", "profile"}

// ClientService manages OAuth client registration and lifecycle.
type ClientService struct {
	clients repository.ClientRepository
	tokens  repository.TokenRepository
	logger  *zap.Logger
}

func NewClientService(clients repository.ClientRepository, tokens repository.TokenRepository, logger *zap.Logger) *ClientService {
	return &ClientService{clients: clients, tokens: tokens, logger: logger}
}

// RegisterClientCommand carries RFC 7591-style dynamic registration input.
type RegisterClientCommand struct {
	ClientName    string   `json:"client_name" binding:"required"`
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
}

// ClientDTO is the client projection without the secret.
type ClientDTO struct {
	ClientID      string    `json:"client_id"`
	ClientName    string    `json:"client_name"`
	RedirectURIs  []string  `json:"redirect_uris"`
	GrantTypes    []string  `json:"grant_types"`
	ResponseTypes []string  `json:"response_types"`
	Scopes        []string  `json:"scopes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	IsActive      bool      `json:"is_active"`
}

// ClientCreatedDTO is returned exactly once, at registration; it is the only
// place the plaintext secret ever appears.
type ClientCreatedDTO struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	ClientName   string    `json:"client_name"`
	RedirectURIs []string  `json:"redirect_uris"`
	GrantTypes   []string  `json:"grant_types"`
	Scopes       []string  `json:"scopes"`
	CreatedAt    time.Time `json:"created_at"`
}

func clientDTO(client oauth.Client) ClientDTO {
	grants := make([]string, 0, len(client.GrantTypes))
	for _, g := range client.GrantTypes {
		grants = append(grants, string(g))
	}
	responses := make([]string, 0, len(client.ResponseTypes))
	for _, rt := range client.ResponseTypes {
		responses = append(responses, string(rt))
	}
	return ClientDTO{
		ClientID:      client.ClientID,
		ClientName:    client.ClientName,
		RedirectURIs:  client.RedirectURIs,
		GrantTypes:    grants,
		ResponseTypes: responses,
		Scopes:        client.Scopes,
		CreatedAt:     client.CreatedAt,
		UpdatedAt:     client.UpdatedAt,
		IsActive:      client.IsActive,
	}
}

// RegisterClient validates the registration, generates credentials, and
// persists the client with the default scope set.
func (s *ClientService) RegisterClient(ctx context.Context, cmd RegisterClientCommand) (ClientCreatedDTO, error) {
	if cmd.ClientName == "" {
		return ClientCreatedDTO{}, domain.NewInvalidInput("client name is required")
	}
	if err := oauth.ValidateRedirectURIs(cmd.RedirectURIs); err != nil {
		return ClientCreatedDTO{}, err
	}

	if len(cmd.GrantTypes) == 0 {
		return ClientCreatedDTO{}, domain.NewInvalidInput("at least one grant type is required")
	}
	grants := make([]oauth.GrantType, 0, len(cmd.GrantTypes))
	for _, value := range cmd.GrantTypes {
		grant, err := oauth.ParseGrantType(value)
		if err != nil {
			return ClientCreatedDTO{}, err
		}
		grants = append(grants, grant)
	}

	responses := make([]oauth.ResponseType, 0, len(cmd.ResponseTypes))
	for _, value := range cmd.ResponseTypes {
		response, err := oauth.ParseResponseType(value)
		if err != nil {
			return ClientCreatedDTO{}, err
		}
		responses = append(responses, response)
	}

	now := time.Now().UTC()
	client := oauth.Client{
		ClientID:                crypto.NewClientID(),
		ClientSecret:            crypto.NewClientSecret(),
		ClientName:              cmd.ClientName,
		RedirectURIs:            cmd.RedirectURIs,
		GrantTypes:              grants,
		ResponseTypes:           responses,
		Scopes:                  defaultClientScopes,
		TokenEndpointAuthMethod: oauth.AuthMethodPost,
		CreatedAt:               now,
		UpdatedAt:               now,
		IsActive:                true,
	}

	if err := s.clients.CreateClient(ctx, client); err != nil {
		return ClientCreatedDTO{}, domain.NewInternal("create oauth client", err)
	}

	s.logger.Info("oauth client registered", zap.String("client_id", client.ClientID))

	grantStrings := make([]string, 0, len(client.GrantTypes))
	for _, g := range client.GrantTypes {
		grantStrings = append(grantStrings, string(g))
	}
	return ClientCreatedDTO{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		ClientName:   client.ClientName,
		RedirectURIs: client.RedirectURIs,
		GrantTypes:   grantStrings,
		Scopes:       client.Scopes,
		CreatedAt:    client.CreatedAt,
	}, nil
}

// GetClient loads a client's public metadata.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (ClientDTO, error) {
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return ClientDTO{}, err
	}
	return clientDTO(client), nil
}

// UpdateClientCommand mutates the editable registration fields.
type UpdateClientCommand struct {
	ClientID     string   `json:"client_id"`
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
}

// UpdateClient applies the mutable fields after re-validating redirect URIs.
func (s *ClientService) UpdateClient(ctx context.Context, cmd UpdateClientCommand) (ClientDTO, error) {
	client, err := s.clients.GetClient(ctx, cmd.ClientID)
	if err != nil {
		return ClientDTO{}, err
	}

	if len(cmd.RedirectURIs) > 0 {
		if err := oauth.ValidateRedirectURIs(cmd.RedirectURIs); err != nil {
			return ClientDTO{}, err
		}
	}

	client.Update(cmd.ClientName, cmd.RedirectURIs, cmd.Scopes)

	if err := s.clients.UpdateClient(ctx, client); err != nil {
		return ClientDTO{}, domain.NewInternal("update oauth client", err)
	}
	return clientDTO(client), nil
}

// DeleteClient revokes every token issued to the client, then removes it.
func (s *ClientService) DeleteClient(ctx context.Context, clientID string) error {
	if _, err := s.clients.GetClient(ctx, clientID); err != nil {
		return err
	}

	if err := s.tokens.RevokeAllTokensForClient(ctx, clientID); err != nil {
		return domain.NewInternal("revoke client tokens", err)
	}

	if err := s.clients.DeleteClient(ctx, clientID); err != nil {
		return domain.NewInternal("delete oauth client", err)
	}

	s.logger.Info("oauth client deleted", zap.String("client_id", clientID))
	return nil
}

// ListClients pages through registered clients.
func (s *ClientService) ListClients(ctx context.Context, page, limit int) ([]ClientDTO, error) {
	clients, err := s.clients.ListClients(ctx, page, limit)
	if err != nil {
		return nil, domain.NewInternal("list oauth clients", err)
	}
	dtos := make([]ClientDTO, 0, len(clients))
	for _, client := range clients {
		dtos = append(dtos, clientDTO(client))
	}
	return dtos, nil
}

// ValidateClientSecret checks credentials against the stored secret.
func (s *ClientService) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) (bool, error) {
	valid, err := s.clients.ValidateClientSecret(ctx, clientID, clientSecret)
	if err != nil {
		return false, domain.NewInternal("validate client credentials", err)
	}
	return valid, nil
}
