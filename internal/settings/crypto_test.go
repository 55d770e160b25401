// ABOUTME: Tests for master key handling and value sealing
// ABOUTME: Malformed key files must fail instead of being regenerated

package settings

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return c
}

func TestCipherRoundTrip(t *testing.T) {
	c := testCipher(t)

	sealed, err := c.Seal([]byte(`{"apiKey":"secret"}`))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	again, err := c.Seal([]byte(`{"apiKey":"secret"}`))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"secret"}`, string(plain))
}

func TestCipherOpenRejectsTampering(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Seal([]byte("hello"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff

	_, err = c.Open(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Open("%%%")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = c.Open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrDecrypt)

	other, err := NewCipher(bytes.Repeat([]byte{8}, 32))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewCipherKeyLength(t *testing.T) {
	_, err := NewCipher([]byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidMasterKey)
}

func TestLoadOrCreateMasterKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	key, err := LoadOrCreateMasterKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	info, err := os.Stat(filepath.Join(dir, MasterKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := LoadOrCreateMasterKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again, "existing key must be reused")
}

func TestLoadOrCreateMasterKeyMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":   "!!!not-base64!!!",
		"wrong length": base64.StdEncoding.EncodeToString([]byte("sixteen bytes!!!")),
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, MasterKeyFile)
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			_, err := LoadOrCreateMasterKey(dir)
			assert.ErrorIs(t, err, ErrInvalidMasterKey)

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, content, string(after), "malformed key must not be overwritten")
		})
	}
}
