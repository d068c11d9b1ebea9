package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// ChallengeS256 computes the S256 code challenge for a PKCE verifier.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks a code verifier against the challenge recorded at
// authorization time. An empty method is treated as "plain" per RFC 7636;
// unknown methods always fail.
func VerifyPKCE(verifier, challenge, method string) bool {
	switch method {
	case "S256":
		return ChallengeS256(verifier) == challenge
	case "", "plain":
		return verifier == challenge
	default:
		return false
	}
}
