package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"kestrel-irp/config"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// Principal is the authenticated caller of an API request.
type Principal struct {
	ID   string
	Role string
}

// HashAPIKey derives an argon2id hash for storage in config. Format:
// argon2id$<base64 salt>$<base64 hash>.
func HashAPIKey(key string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyAPIKey checks a presented key against a stored hash in
// constant time.
func VerifyAPIKey(stored, presented string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(presented), salt, argonTime, argonMemory, argonThreads, uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1
}

// Authenticate resolves a presented API key to a principal, or nil if
// no configured key matches.
func Authenticate(cfg config.AuthConfig, presented string) *Principal {
	if strings.TrimSpace(presented) == "" {
		return nil
	}
	for _, key := range cfg.Keys {
		if VerifyAPIKey(key.Hash, presented) {
			return &Principal{ID: key.ID, Role: key.Role}
		}
	}
	return nil
}
