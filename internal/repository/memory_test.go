package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/domain/oauth"
	"github.com/retailcore/user-management/internal/repository"
)

func TestConsumeCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	code := oauth.AuthorizationCode{Code: "auth_code_1", ClientID: "client_1", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.StoreCode(ctx, code))

	require.NoError(t, repo.ConsumeCode(ctx, "auth_code_1"))
	require.ErrorIs(t, repo.ConsumeCode(ctx, "auth_code_1"), repository.ErrCodeConsumed)
	require.ErrorIs(t, repo.ConsumeCode(ctx, "missing"), domain.ErrNotFound)
}

func TestConsumeCodeUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.StoreCode(ctx, oauth.AuthorizationCode{Code: "auth_code_1"}))

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.ConsumeCode(ctx, "auth_code_1")
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, repository.ErrCodeConsumed)
		}
	}
	require.Equal(t, 1, wins)
}

func TestValidateClientSecret(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	client := oauth.Client{ClientID: "client_1", ClientSecret: "secret_1", IsActive: true}
	require.NoError(t, repo.CreateClient(ctx, client))

	valid, err := repo.ValidateClientSecret(ctx, "client_1", "secret_1")
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = repo.ValidateClientSecret(ctx, "client_1", "secret_2")
	require.NoError(t, err)
	require.False(t, valid)

	valid, err = repo.ValidateClientSecret(ctx, "missing", "secret_1")
	require.NoError(t, err)
	require.False(t, valid)

	client.IsActive = false
	require.NoError(t, repo.UpdateClient(ctx, client))
	valid, err = repo.ValidateClientSecret(ctx, "client_1", "secret_1")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	token := oauth.Token{AccessToken: "token_1", RefreshToken: "refresh_1", ClientID: "client_1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.StoreToken(ctx, token))

	byRefresh, err := repo.GetTokenByRefresh(ctx, "refresh_1")
	require.NoError(t, err)
	require.Equal(t, "token_1", byRefresh.AccessToken)

	_, err = repo.GetTokenByRefresh(ctx, "refresh_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.RevokeAllTokensForClient(ctx, "client_1"))
	stored, err := repo.GetToken(ctx, "token_1")
	require.NoError(t, err)
	require.True(t, stored.IsRevoked)
}

func TestListClientsPagination(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	for _, id := range []string{"client_a", "client_b", "client_c"} {
		require.NoError(t, repo.CreateClient(ctx, oauth.Client{ClientID: id, IsActive: true}))
	}

	first, err := repo.ListClients(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := repo.ListClients(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)

	empty, err := repo.ListClients(ctx, 3, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}
