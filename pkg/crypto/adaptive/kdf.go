package adaptive

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// SaltSize is the salt length NewSalt returns.
	SaltSize = 16

	// MinPassphraseLength is the shortest passphrase DeriveKey accepts.
	MinPassphraseLength = 8

	// MinMasterKeyLength is the shortest master key Subkey accepts.
	MinMasterKeyLength = 16
)

var (
	ErrPassphraseTooShort = errors.New("adaptive: passphrase too short (minimum 8 bytes)")
	ErrMasterKeyTooShort  = errors.New("adaptive: master key too short (minimum 16 bytes)")
)

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultKDFParams returns the RFC 9106 second recommended option with
// three passes.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches passphrase into a KeySize key with Argon2id.
func DeriveKey(passphrase, salt []byte, p KDFParams) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooShort
	}
	if len(salt) == 0 {
		return nil, errors.New("adaptive: salt is required")
	}
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		p = DefaultKDFParams()
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}

// Subkey derives a KeySize key for purpose from a master key with HKDF-SHA256.
func Subkey(master []byte, purpose string) ([]byte, error) {
	if len(master) < MinMasterKeyLength {
		return nil, ErrMasterKeyTooShort
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("adaptive: subkey: %w", err)
	}
	return key, nil
}

// Wipe zeroes b.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
