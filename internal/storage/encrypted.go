package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/yndnr/savekeep-go/pkg/crypto/adaptive"
)

// Encrypted object layout:
//
//	magic "SKE1" | algorithm (1) | salt length (1) | salt | nonce | ciphertext | tag
//
// The object path is authenticated as associated data, so a sealed save
// cannot be moved to another path unnoticed.
var encMagic = []byte("SKE1")

// ErrDecrypt is returned when an object cannot be authenticated with the
// configured key.
var ErrDecrypt = errors.New("storage: decryption failed (wrong key or corrupted object)")

// EncryptionConfig selects the key source for Encrypted. Exactly one of Key
// or Passphrase is used; Passphrase wins when both are set.
type EncryptionConfig struct {
	// Key is a master key of at least 16 bytes.
	Key []byte

	// Passphrase is stretched with Argon2id under a per-backend salt.
	Passphrase []byte

	// Algorithm is "auto" (default), "aes-gcm" or "chacha20-poly1305".
	Algorithm string

	// KDF overrides the Argon2id cost. Zero means adaptive.DefaultKDFParams.
	KDF adaptive.KDFParams
}

const keyPurpose = "savekeep object encryption v1"

type encryptedBackend struct {
	Backend
	cfg   EncryptionConfig
	seal  *adaptive.Cipher
	salt  []byte
	mu    sync.Mutex
	byKey map[string]*adaptive.Cipher
}

// Encrypted wraps b so objects are sealed on Put and opened on Get.
// Exists, Delete, List and Close pass through.
func Encrypted(b Backend, cfg EncryptionConfig) (Backend, error) {
	algo, err := adaptive.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	e := &encryptedBackend{Backend: b, cfg: cfg, byKey: make(map[string]*adaptive.Cipher)}

	var key []byte
	switch {
	case len(cfg.Passphrase) > 0:
		if e.salt, err = adaptive.NewSalt(); err != nil {
			return nil, err
		}
		key, err = adaptive.DeriveKey(cfg.Passphrase, e.salt, cfg.KDF)
	case len(cfg.Key) > 0:
		key, err = adaptive.Subkey(cfg.Key, keyPurpose)
	default:
		return nil, errors.New("storage: encryption needs a key or passphrase")
	}
	if err != nil {
		return nil, err
	}
	defer adaptive.Wipe(key)

	if e.seal, err = adaptive.New(algo, key); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *encryptedBackend) Name() string { return e.Backend.Name() + "+encrypted" }

// MkdirAll forwards to the wrapped backend when it has directories.
func (e *encryptedBackend) MkdirAll(ctx context.Context, dir string) error {
	if dm, ok := e.Backend.(DirMaker); ok {
		return dm.MkdirAll(ctx, dir)
	}
	return nil
}

func (e *encryptedBackend) Put(ctx context.Context, path string, r io.Reader) error {
	clean, err := CleanPath(path)
	if err != nil {
		return err
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("storage: read object: %w", err)
	}
	sealed, err := e.seal.Seal(plain, []byte(clean))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Grow(len(encMagic) + 2 + len(e.salt) + len(sealed))
	buf.Write(encMagic)
	buf.WriteByte(byte(e.seal.Algorithm()))
	buf.WriteByte(byte(len(e.salt)))
	buf.Write(e.salt)
	buf.Write(sealed)
	return e.Backend.Put(ctx, path, &buf)
}

func (e *encryptedBackend) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	data, err := ReadAll(ctx, e.Backend, path)
	if err != nil {
		return nil, err
	}

	if len(data) < len(encMagic)+2 || !bytes.Equal(data[:len(encMagic)], encMagic) {
		return nil, fmt.Errorf("%w: %s: not an encrypted object", ErrDecrypt, path)
	}
	algo := adaptive.Algorithm(data[len(encMagic)])
	saltLen := int(data[len(encMagic)+1])
	rest := data[len(encMagic)+2:]
	if len(rest) < saltLen {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrDecrypt, path)
	}
	salt, sealed := rest[:saltLen], rest[saltLen:]

	c, err := e.cipherFor(algo, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecrypt, path, err)
	}
	plain, err := c.Open(sealed, []byte(clean))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, path)
	}
	return io.NopCloser(bytes.NewReader(plain)), nil
}

// cipherFor returns the cipher that opens objects written with algo and salt.
// Objects written by another process carry that process's salt; derived
// ciphers are cached per salt.
func (e *encryptedBackend) cipherFor(algo adaptive.Algorithm, salt []byte) (*adaptive.Cipher, error) {
	if algo == e.seal.Algorithm() && bytes.Equal(salt, e.salt) {
		return e.seal, nil
	}
	id := fmt.Sprintf("%d/%x", algo, salt)

	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.byKey[id]; ok {
		return c, nil
	}

	var (
		key []byte
		err error
	)
	switch {
	case len(e.cfg.Passphrase) > 0:
		if len(salt) == 0 {
			return nil, errors.New("object has no salt")
		}
		key, err = adaptive.DeriveKey(e.cfg.Passphrase, salt, e.cfg.KDF)
	default:
		if len(salt) != 0 {
			return nil, errors.New("object was sealed with a passphrase")
		}
		key, err = adaptive.Subkey(e.cfg.Key, keyPurpose)
	}
	if err != nil {
		return nil, err
	}
	defer adaptive.Wipe(key)

	c, err := adaptive.New(algo, key)
	if err != nil {
		return nil, err
	}
	e.byKey[id] = c
	return c, nil
}
