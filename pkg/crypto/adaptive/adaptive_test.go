package adaptive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{0x42}, KeySize)

// cheap keeps Argon2 fast in tests.
var cheap = KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in   string
		want Algorithm
	}{
		{"", Auto()},
		{"auto", Auto()},
		{"aes-gcm", AESGCM},
		{"aes-256-gcm", AESGCM},
		{"chacha20-poly1305", ChaCha20},
		{"chacha20", ChaCha20},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseAlgorithm("rot13")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestAlgorithm_String(t *testing.T) {
	assert.Equal(t, "aes-gcm", AESGCM.String())
	assert.Equal(t, "chacha20-poly1305", ChaCha20.String())
	assert.Equal(t, "algorithm(9)", Algorithm(9).String())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(AESGCM, testKey[:16])
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = New(Algorithm(0), testKey)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestCipher_SealOpen(t *testing.T) {
	for _, algo := range []Algorithm{AESGCM, ChaCha20} {
		t.Run(algo.String(), func(t *testing.T) {
			c, err := New(algo, testKey)
			require.NoError(t, err)
			assert.Equal(t, algo, c.Algorithm())

			plain := []byte(`[{"type":"Player","properties":{}}]`)
			aad := []byte("autosave1.json")

			sealed, err := c.Seal(plain, aad)
			require.NoError(t, err)
			assert.Len(t, sealed, len(plain)+c.Overhead())

			again, err := c.Seal(plain, aad)
			require.NoError(t, err)
			assert.NotEqual(t, sealed, again, "nonces are random")

			got, err := c.Open(sealed, aad)
			require.NoError(t, err)
			assert.Equal(t, plain, got)

			_, err = c.Open(sealed, []byte("autosave2.json"))
			assert.ErrorIs(t, err, ErrAuthFailed)

			tampered := append([]byte(nil), sealed...)
			tampered[len(tampered)-1] ^= 1
			_, err = c.Open(tampered, aad)
			assert.ErrorIs(t, err, ErrAuthFailed)

			_, err = c.Open(sealed[:3], aad)
			assert.ErrorIs(t, err, ErrAuthFailed)
		})
	}
}

func TestCipher_EmptyPlaintext(t *testing.T) {
	c, err := New(ChaCha20, testKey)
	require.NoError(t, err)

	sealed, err := c.Seal(nil, nil)
	require.NoError(t, err)
	got, err := c.Open(sealed, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeriveKey(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)

	k1, err := DeriveKey([]byte("correct horse"), salt, cheap)
	require.NoError(t, err)
	assert.Len(t, k1, KeySize)

	k2, err := DeriveKey([]byte("correct horse"), salt, cheap)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "same salt gives same key")

	other, err := NewSalt()
	require.NoError(t, err)
	k3, err := DeriveKey([]byte("correct horse"), other, cheap)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	_, err = DeriveKey([]byte("short"), salt, cheap)
	assert.ErrorIs(t, err, ErrPassphraseTooShort)

	_, err = DeriveKey([]byte("correct horse"), nil, cheap)
	assert.Error(t, err)
}

func TestSubkey(t *testing.T) {
	master := bytes.Repeat([]byte{7}, 16)

	a, err := Subkey(master, "objects")
	require.NoError(t, err)
	b, err := Subkey(master, "objects")
	require.NoError(t, err)
	c, err := Subkey(master, "index")
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = Subkey(master[:8], "objects")
	assert.ErrorIs(t, err, ErrMasterKeyTooShort)
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3}
	Wipe(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
