// Package privacy provides field-level encryption for sensitive identity
// fields. The national-ID number is the single most sensitive value the
// system stores and must never be persisted as plaintext.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Masked is the placeholder shown in place of a field that failed to
// decrypt. The raw error is logged as an integrity signal, never displayed.
const Masked = "************"

// Ciphertext format: "v{n}:" + base64(nonce + sealed). The version prefix
// identifies which key produced the ciphertext so keys can be rotated
// without a storage format change.
const (
	versionPrefix    = "v"
	versionSeparator = ":"
)

// DecryptionError reports ciphertext that could not be decrypted: produced
// under a different key, truncated, or tampered with. Callers render Masked
// instead of propagating the message to the user.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string { return fmt.Sprintf("field decrypt: %v", e.Err) }

func (e *DecryptionError) Unwrap() error { return e.Err }

// FieldEncryptor is the interface repositories depend on. Pass nil to store
// fields unencrypted (local development only).
type FieldEncryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// FieldCipher is an AES-256-GCM field encryptor with versioned keys. Encrypt
// always uses the current key; Decrypt selects the key by the ciphertext's
// version prefix, so old data stays readable after a rotation.
type FieldCipher struct {
	mu         sync.RWMutex
	current    cipher.AEAD
	currentVer int
	previous   map[int]cipher.AEAD
}

// NewFieldCipher creates a cipher with the given 32-byte key as version 1.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	return NewFieldCipherVersion(key, 1)
}

// NewFieldCipherVersion creates a cipher whose current key carries the given
// version number.
func NewFieldCipherVersion(key []byte, version int) (*FieldCipher, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	return &FieldCipher{
		current:    aead,
		currentVer: version,
		previous:   make(map[int]cipher.AEAD),
	}, nil
}

// AddPreviousKey registers a retired key so ciphertext written under it can
// still be decrypted. Re-encryption under the current key is a separate
// migration pass.
func (c *FieldCipher) AddPreviousKey(key []byte, version int) error {
	aead, err := newAEAD(key)
	if err != nil {
		return fmt.Errorf("field cipher: previous key v%d: %w", version, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previous[version] = aead
	return nil
}

// Encrypt seals the plaintext under the current key and returns the
// version-prefixed, base64-encoded ciphertext with the nonce prepended.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nonce := make([]byte, c.current.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("field encrypt: generate nonce: %w", err)
	}

	sealed := c.current.Seal(nonce, nonce, []byte(plaintext), nil)
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return versionPrefix + strconv.Itoa(c.currentVer) + versionSeparator + encoded, nil
}

// Decrypt reverses Encrypt. Any failure (unknown version, bad base64, short
// ciphertext, authentication failure) is returned as a *DecryptionError.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	version, body, err := splitVersion(ciphertext)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	aead := c.current
	if version != c.currentVer {
		prev, ok := c.previous[version]
		if !ok {
			return "", &DecryptionError{Err: fmt.Errorf("no key for version %d", version)}
		}
		aead = prev
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", &DecryptionError{Err: fmt.Errorf("base64 decode: %w", err)}
	}
	if len(data) < aead.NonceSize() {
		return "", &DecryptionError{Err: fmt.Errorf("ciphertext too short")}
	}

	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	return string(plaintext), nil
}

// CurrentVersion returns the version number of the active key.
func (c *FieldCipher) CurrentVersion() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentVer
}

// NeedsReEncryption reports whether the ciphertext was written under a
// retired key.
func (c *FieldCipher) NeedsReEncryption(ciphertext string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	version, _, err := splitVersion(ciphertext)
	if err != nil {
		return true
	}
	return version != c.currentVer
}

// NewEphemeralKey generates a random 32-byte key for local development.
// Anything encrypted under it is unrecoverable once the process exits; the
// caller is expected to warn loudly when falling back to it.
func NewEphemeralKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func splitVersion(s string) (int, string, error) {
	if !strings.HasPrefix(s, versionPrefix) {
		return 0, "", fmt.Errorf("missing version prefix")
	}
	idx := strings.Index(s, versionSeparator)
	if idx < 0 {
		return 0, "", fmt.Errorf("missing version separator")
	}
	version, err := strconv.Atoi(s[len(versionPrefix):idx])
	if err != nil {
		return 0, "", fmt.Errorf("invalid version: %w", err)
	}
	return version, s[idx+1:], nil
}
