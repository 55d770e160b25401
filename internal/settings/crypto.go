// ABOUTME: XChaCha20-Poly1305 sealing of sensitive setting values
// ABOUTME: Loads or creates the 32-byte master key file under the data directory

package settings

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// MasterKeyFile is the file name of the master key inside the data directory
const MasterKeyFile = "master.key"

var (
	// ErrInvalidMasterKey is returned when the key file exists but cannot be used.
	// The file is never regenerated in that case; doing so would orphan every
	// value sealed with the old key.
	ErrInvalidMasterKey = errors.New("invalid master key")

	// ErrDecrypt is returned when a stored value cannot be opened
	ErrDecrypt = errors.New("decrypt failed")
)

// Cipher seals and opens setting values with a single master key.
// Output is base64(nonce || ciphertext).
type Cipher struct {
	key []byte
}

// NewCipher creates a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidMasterKey, chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	out := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(sealed string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecrypt, err)
	}
	if len(raw) <= aead.NonceSize() {
		return nil, fmt.Errorf("%w: payload too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// LoadOrCreateMasterKey reads <dataDir>/master.key, creating it with a new
// random key and 0600 permissions only when the file does not exist.
func LoadOrCreateMasterKey(dataDir string) ([]byte, error) {
	path := filepath.Join(dataDir, MasterKeyFile)

	data, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMasterKey, path, decodeErr)
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: %s: want %d bytes, got %d", ErrInvalidMasterKey, path, chacha20poly1305.KeySize, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading master key: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	// O_EXCL so two processes racing on first start cannot overwrite each other
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrCreateMasterKey(dataDir)
		}
		return nil, fmt.Errorf("creating master key: %w", err)
	}
	if _, err := f.WriteString(encoded); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing master key: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("writing master key: %w", err)
	}
	return key, nil
}
