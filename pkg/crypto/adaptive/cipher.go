package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the key length every algorithm takes.
const KeySize = 32

// Errors.
var (
	ErrUnknownAlgorithm = errors.New("adaptive: unknown algorithm")
	ErrKeySize          = errors.New("adaptive: key must be 32 bytes")
	ErrAuthFailed       = errors.New("adaptive: message authentication failed")
)

// Algorithm identifies an AEAD construction. The numeric value is written
// into encrypted objects.
type Algorithm uint8

const (
	AESGCM   Algorithm = 1
	ChaCha20 Algorithm = 2
)

// String returns the configuration name of a.
func (a Algorithm) String() string {
	switch a {
	case AESGCM:
		return "aes-gcm"
	case ChaCha20:
		return "chacha20-poly1305"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// ParseAlgorithm maps a configuration name to an Algorithm. "" and "auto"
// select Auto().
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "auto":
		return Auto(), nil
	case "aes-gcm", "aes-256-gcm":
		return AESGCM, nil
	case "chacha20-poly1305", "chacha20":
		return ChaCha20, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Auto returns AESGCM where Go uses hardware AES (amd64, arm64) and
// ChaCha20 elsewhere.
func Auto() Algorithm {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return AESGCM
	default:
		return ChaCha20
	}
}

// Cipher seals and opens messages. Sealed output is nonce || ciphertext || tag.
// Safe for concurrent use.
type Cipher struct {
	algo Algorithm
	aead cipher.AEAD
}

// New returns a cipher for algo keyed with a KeySize key.
func New(algo Algorithm, key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	var (
		aead cipher.AEAD
		err  error
	)
	switch algo {
	case AESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case ChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, uint8(algo))
	}
	if err != nil {
		return nil, fmt.Errorf("adaptive: %s: %w", algo, err)
	}
	return &Cipher{algo: algo, aead: aead}, nil
}

// Algorithm returns the construction c uses.
func (c *Cipher) Algorithm() Algorithm { return c.algo }

// Overhead is the number of bytes Seal adds.
func (c *Cipher) Overhead() int { return c.aead.NonceSize() + c.aead.Overhead() }

// Seal encrypts plaintext under a fresh random nonce.
func (c *Cipher) Seal(plaintext, aad []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, ns, ns+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("adaptive: nonce: %w", err)
	}
	return c.aead.Seal(out, out, plaintext, aad), nil
}

// Open authenticates and decrypts a message produced by Seal with the same aad.
func (c *Cipher) Open(sealed, aad []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, ErrAuthFailed
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plain, nil
}
