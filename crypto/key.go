package crypto

import (
	"crypto/sha256"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyPassphrase is the shared secret every client derives the session
	// key from. One key for all conversations: this obfuscates transit and
	// at-rest payloads but provides no per-pair confidentiality boundary.
	keyPassphrase = "oldschool-messanger-shared-secret"
	// keySalt must match across clients or nobody can read anybody.
	keySalt = "oldschool-messanger-salt"
	// keyIterations slows offline brute-force of the passphrase.
	keyIterations = 100_000
)

var (
	sessionKeyOnce sync.Once
	sessionKey     []byte
)

// SessionKey derives the process-wide AES-256 key from the shared
// passphrase. Derivation runs at most once; concurrent first callers all
// wait on the same derivation. Each call returns its own copy so no
// caller can mutate the key out from under another.
func SessionKey() []byte {
	sessionKeyOnce.Do(func() {
		sessionKey = pbkdf2.Key([]byte(keyPassphrase), []byte(keySalt), keyIterations, aes256KeySize, sha256.New)
	})
	key := make([]byte, len(sessionKey))
	copy(key, sessionKey)
	return key
}
