package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashIdentifier derives the storage key for an email address. The key is a
// one-way hash of the uppercased address so persisted keys never carry the
// plaintext email.
func HashIdentifier(emailAddress string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(emailAddress)))
	return hex.EncodeToString(sum[:])
}
