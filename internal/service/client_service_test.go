package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/repository"
	"github.com/retailcore/user-management/internal/service"
)

func newClientFixture(t *testing.T) (*repository.MemoryRepository, *service.ClientService) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	return repo, service.NewClientService(repo, repo, zap.NewNop())
}

func registerCommand() service.RegisterClientCommand {
	return service.RegisterClientCommand{
		ClientName:    "Test App",
		RedirectURIs:  []string{"https://app.example.com/callback", "http://localhost:3000/callback"},
		GrantTypes:    []string{"authorization_code", "refresh_token"},
		ResponseTypes: []string{"code"},
	}
}

func TestRegisterClientDefaults(t *testing.T) {
	ctx := context.Background()
	repo, svc := newClientFixture(t)

	created, err := svc.RegisterClient(ctx, registerCommand())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(created.ClientID, "client_"))
	require.True(t, strings.HasPrefix(created.ClientSecret, "secret_"))
	require.ElementsMatch(t, []string{"read", "write", "email", "openid", "profile"}, created.Scopes)

	stored, err := repo.GetClient(ctx, created.ClientID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
	require.Equal(t, "client_secret_post", string(stored.TokenEndpointAuthMethod))

	// The secret never appears on the read path.
	dto, err := svc.GetClient(ctx, created.ClientID)
	require.NoError(t, err)
	require.Equal(t, created.ClientID, dto.ClientID)
}

func TestRegisterClientValidation(t *testing.T) {
	ctx := context.Background()
	_, svc := newClientFixture(t)

	cases := []struct {
		name   string
		mutate func(*service.RegisterClientCommand)
	}{
		{"empty name", func(c *service.RegisterClientCommand) { c.ClientName = "" }},
		{"no redirect uris", func(c *service.RegisterClientCommand) { c.RedirectURIs = nil }},
		{"plain http redirect", func(c *service.RegisterClientCommand) { c.RedirectURIs = []string{"http://app.example.com/cb"} }},
		{"no grant types", func(c *service.RegisterClientCommand) { c.GrantTypes = nil }},
		{"unknown grant type", func(c *service.RegisterClientCommand) { c.GrantTypes = []string{"magic_link"} }},
		{"unknown response type", func(c *service.RegisterClientCommand) { c.ResponseTypes = []string{"fragment"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := registerCommand()
			tc.mutate(&cmd)
			_, err := svc.RegisterClient(ctx, cmd)
			require.Error(t, err)
			require.True(t, domain.IsInvalidInput(err))
		})
	}
}

func TestUpdateClient(t *testing.T) {
	ctx := context.Background()
	_, svc := newClientFixture(t)

	created, err := svc.RegisterClient(ctx, registerCommand())
	require.NoError(t, err)

	updated, err := svc.UpdateClient(ctx, service.UpdateClientCommand{
		ClientID:     created.ClientID,
		ClientName:   "Renamed App",
		RedirectURIs: []string{"https://app.example.com/v2/callback"},
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed App", updated.ClientName)
	require.Equal(t, []string{"https://app.example.com/v2/callback"}, updated.RedirectURIs)

	_, err = svc.UpdateClient(ctx, service.UpdateClientCommand{
		ClientID:     created.ClientID,
		RedirectURIs: []string{"http://app.example.com/insecure"},
	})
	require.Error(t, err)
	require.True(t, domain.IsInvalidInput(err))

	_, err = svc.UpdateClient(ctx, service.UpdateClientCommand{ClientID: "client_missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteClientRevokesTokens(t *testing.T) {
	ctx := context.Background()
	repo, svc := newClientFixture(t)

	cmd := registerCommand()
	cmd.GrantTypes = []string{"client_credentials"}
	machine, err := svc.RegisterClient(ctx, cmd)
	require.NoError(t, err)

	oauthSvc := service.NewOAuthService(repo, 10*time.Minute, time.Hour, zap.NewNop())
	tokenResp, err := oauthSvc.Token(ctx, service.TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     machine.ClientID,
		ClientSecret: machine.ClientSecret,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteClient(ctx, machine.ClientID))

	_, err = svc.GetClient(ctx, machine.ClientID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.False(t, oauthSvc.Introspect(ctx, tokenResp.AccessToken).Active)

	require.ErrorIs(t, svc.DeleteClient(ctx, "client_missing"), domain.ErrNotFound)
}

func TestListClients(t *testing.T) {
	ctx := context.Background()
	_, svc := newClientFixture(t)

	for i := 0; i < 3; i++ {
		_, err := svc.RegisterClient(ctx, registerCommand())
		require.NoError(t, err)
	}

	clients, err := svc.ListClients(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, clients, 3)
}

func TestValidateClientSecret(t *testing.T) {
	ctx := context.Background()
	_, svc := newClientFixture(t)

	created, err := svc.RegisterClient(ctx, registerCommand())
	require.NoError(t, err)

	valid, err := svc.ValidateClientSecret(ctx, created.ClientID, created.ClientSecret)
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = svc.ValidateClientSecret(ctx, created.ClientID, "secret_wrong")
	require.NoError(t, err)
	require.False(t, valid)
}
