// Package adaptive provides the authenticated ciphers save files are
// encrypted with, plus key derivation from passphrases and master keys.
//
// Algorithms:
//
//   - AES-256-GCM: chosen by Auto on CPUs with AES instructions
//   - ChaCha20-Poly1305: chosen elsewhere
//
// Every algorithm has a one-byte wire ID so an encrypted object records
// which cipher sealed it.
//
// Usage:
//
//	key, err := adaptive.DeriveKey(passphrase, salt, adaptive.DefaultKDFParams())
//	c, err := adaptive.New(adaptive.Auto(), key)
//	sealed, err := c.Seal(plaintext, aad)
//	plaintext, err := c.Open(sealed, aad)
package adaptive
