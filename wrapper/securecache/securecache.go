// Package securecache hardens a cacheproxy.Store against an untrusted or
// shared persistence backend. Cache keys are canonicalized request lines —
// full URLs — so they are SHA-256-hashed before reaching the backend, and
// entry bytes are optionally sealed with AES-256-GCM under a
// passphrase-derived key. Each ciphertext is bound to its own hashed key
// via GCM associated data: an entry copied between keys inside the backend
// fails to open instead of being served for the wrong resource.
package securecache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/loomwright/httpproxy/cacheproxy"
)

// scrypt cost parameters for deriving the AES key from the passphrase.
const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
)

// keySaltLabel feeds the deterministic scrypt salt. The salt cannot be
// random without somewhere durable to store it; deriving it from a fixed
// label keeps entries readable across restarts while still separating this
// module's keys from any other scrypt user of the same passphrase.
const keySaltLabel = "httpproxy/securecache/key/v1"

// SecureCache decorates a Store with key hashing (always) and sealed
// entries (when a passphrase is configured).
type SecureCache struct {
	store cacheproxy.Store
	aead  cipher.AEAD // nil when running hash-only
}

// Config holds the configuration for creating a SecureCache.
type Config struct {
	// Store is the underlying persistence backend to wrap. Required.
	Store cacheproxy.Store

	// Passphrase is the secret the sealing key is derived from. Empty
	// means hash-only mode: keys are still hashed, entry bytes pass
	// through untouched. Must stay constant across restarts or previously
	// sealed entries become unreadable.
	Passphrase string
}

// New creates a SecureCache wrapping config.Store.
func New(config Config) (*SecureCache, error) {
	if config.Store == nil {
		return nil, errors.New("securecache: Store is required")
	}
	sc := &SecureCache{store: config.Store}
	if config.Passphrase != "" {
		aead, err := newAEAD(config.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("securecache: %w", err)
		}
		sc.aead = aead
	}
	return sc, nil
}

// newAEAD derives the AES-256 key from the passphrase and builds the GCM
// instance used for every seal/open.
func newAEAD(passphrase string) (cipher.AEAD, error) {
	salt := sha256.Sum256([]byte(keySaltLabel))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build GCM: %w", err)
	}
	return aead, nil
}

// hashKey maps a cache key to the name the backend actually sees.
func (sc *SecureCache) hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// seal encrypts plaintext, prepending the random nonce and binding the
// ciphertext to hashedKey as associated data.
func (sc *SecureCache) seal(plaintext []byte, hashedKey string) ([]byte, error) {
	nonce := make([]byte, sc.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("securecache: generate nonce: %w", err)
	}
	return sc.aead.Seal(nonce, nonce, plaintext, []byte(hashedKey)), nil
}

// open reverses seal. It fails when the bytes were tampered with, sealed
// under a different passphrase, or sealed for a different key.
func (sc *SecureCache) open(sealed []byte, hashedKey string) ([]byte, error) {
	n := sc.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("securecache: sealed entry shorter than its nonce")
	}
	plaintext, err := sc.aead.Open(nil, sealed[:n], sealed[n:], []byte(hashedKey))
	if err != nil {
		return nil, fmt.Errorf("securecache: open entry: %w", err)
	}
	return plaintext, nil
}

// Get looks up the hashed key and, in sealed mode, authenticates and
// decrypts the entry. Bytes that fail authentication — tampering, a
// rotated passphrase, or an entry moved between keys — are reported as an
// error, never returned as data.
func (sc *SecureCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	hashed := sc.hashKey(key)
	data, ok, err := sc.store.Get(ctx, hashed)
	if err != nil || !ok {
		return nil, false, err
	}
	if sc.aead == nil {
		return data, true, nil
	}

	plaintext, err := sc.open(data, hashed)
	if err != nil {
		cacheproxy.GetLogger().Warn("securecache: cached entry failed authentication",
			"key", hashed, "error", err)
		return nil, false, err
	}
	return plaintext, true, nil
}

// Set stores data under the hashed key, sealing it first when a passphrase
// is configured.
func (sc *SecureCache) Set(ctx context.Context, key string, data []byte) error {
	hashed := sc.hashKey(key)
	if sc.aead == nil {
		return sc.store.Set(ctx, hashed, data)
	}

	sealed, err := sc.seal(data, hashed)
	if err != nil {
		cacheproxy.GetLogger().Warn("securecache: sealing entry failed",
			"key", hashed, "error", err)
		return err
	}
	return sc.store.Set(ctx, hashed, sealed)
}

// Delete removes the entry stored under the hashed key.
func (sc *SecureCache) Delete(ctx context.Context, key string) error {
	return sc.store.Delete(ctx, sc.hashKey(key))
}

// IsEncrypted reports whether entries are sealed, not merely key-hashed.
func (sc *SecureCache) IsEncrypted() bool {
	return sc.aead != nil
}

var _ cacheproxy.Store = (*SecureCache)(nil)
