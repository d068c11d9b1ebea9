package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retailcore/user-management/internal/crypto"
)

func TestHashIdentifierIsCaseInsensitive(t *testing.T) {
	a := crypto.HashIdentifier("Test@Example.com")
	b := crypto.HashIdentifier("test@example.COM")
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.NotEqual(t, a, crypto.HashIdentifier("other@example.com"))
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := crypto.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	require.True(t, crypto.VerifyPassword("correct horse battery staple", hash))
	require.False(t, crypto.VerifyPassword("wrong password", hash))
	require.False(t, crypto.VerifyPassword("correct horse battery staple", "not-a-hash"))
}

func TestPasswordHashesAreSalted(t *testing.T) {
	first, err := crypto.HashPassword("password")
	require.NoError(t, err)
	second, err := crypto.HashPassword("password")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyPKCES256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := crypto.ChallengeS256(verifier)

	require.True(t, crypto.VerifyPKCE(verifier, challenge, "S256"))
	require.False(t, crypto.VerifyPKCE(verifier+"x", challenge, "S256"))

	// A single changed character in the challenge must fail.
	flipped := "A" + challenge[1:]
	if flipped == challenge {
		flipped = "B" + challenge[1:]
	}
	require.False(t, crypto.VerifyPKCE(verifier, flipped, "S256"))
}

func TestVerifyPKCEPlain(t *testing.T) {
	require.True(t, crypto.VerifyPKCE("verifier-value", "verifier-value", "plain"))
	require.True(t, crypto.VerifyPKCE("verifier-value", "verifier-value", ""))
	require.False(t, crypto.VerifyPKCE("verifier-value", "other-value", "plain"))
	require.False(t, crypto.VerifyPKCE("verifier-value", "verifier-value", "S512"))
}

func TestOpaqueTokenPrefixes(t *testing.T) {
	require.True(t, strings.HasPrefix(crypto.NewClientID(), "client_"))
	require.True(t, strings.HasPrefix(crypto.NewClientSecret(), "secret_"))
	require.True(t, strings.HasPrefix(crypto.NewAuthorizationCode(), "auth_"))
	require.True(t, strings.HasPrefix(crypto.NewAccessToken(), "token_"))
	require.True(t, strings.HasPrefix(crypto.NewRefreshToken(), "refresh_"))
	require.NotEqual(t, crypto.NewAccessToken(), crypto.NewAccessToken())
}
