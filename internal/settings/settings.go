// ABOUTME: SettingsService implementation over the store's key/value table
// ABOUTME: Seals configured sensitive keys and resolves dotted sub-keys with gjson

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aduitools/adui/internal/store"
)

// DefaultEncryptedKeys are sealed when no list is configured
var DefaultEncryptedKeys = []string{"api_keys"}

var (
	// ErrInvalidJSON is returned when Set receives a value that is not JSON
	ErrInvalidJSON = errors.New("value is not valid JSON")

	// ErrMissingKey is returned for an empty key
	ErrMissingKey = errors.New("setting key is required")

	// ErrNoCipher is returned by New when encrypted keys are configured without a cipher
	ErrNoCipher = errors.New("encrypted keys configured without a cipher")
)

// Option configures a Service.
type Option func(*Service)

// WithCipher sets the cipher used for sensitive keys.
func WithCipher(c *Cipher) Option {
	return func(s *Service) {
		s.cipher = c
	}
}

// WithEncryptedKeys replaces the list of sensitive keys. A key is sensitive
// when it equals an entry or lies below it ("api_keys.translation").
func WithEncryptedKeys(keys ...string) Option {
	return func(s *Service) {
		s.encrypted = append([]string(nil), keys...)
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service stores JSON setting values. It satisfies toolkit.SettingsService.
type Service struct {
	store     store.SettingsStore
	cipher    *Cipher
	encrypted []string
	logger    *slog.Logger
}

// New creates a Service over st.
func New(st store.SettingsStore, opts ...Option) (*Service, error) {
	s := &Service{
		store:     st,
		encrypted: DefaultEncryptedKeys,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.encrypted) > 0 && s.cipher == nil {
		return nil, ErrNoCipher
	}
	s.logger = s.logger.With("component", "settings")
	return s, nil
}

// Get returns the JSON stored under key, or nil when nothing is stored.
//
// When key itself is absent, the longest stored dotted prefix is used and the
// remainder is looked up inside that value, so "api_keys.translation.baidu"
// resolves into the "api_keys" document.
func (s *Service) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	value, err := s.load(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	for i := strings.LastIndexByte(key, '.'); i > 0; i = strings.LastIndexByte(key[:i], '.') {
		parent, err := s.load(ctx, key[:i])
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		res := gjson.GetBytes(parent, key[i+1:])
		if !res.Exists() {
			return nil, nil
		}
		return json.RawMessage(res.Raw), nil
	}
	return nil, nil
}

// Set stores value under key, sealing it when key is sensitive.
func (s *Service) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrMissingKey
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: %q", ErrInvalidJSON, key)
	}

	stored := string(value)
	if s.isEncrypted(key) {
		sealed, err := s.cipher.Seal(value)
		if err != nil {
			return fmt.Errorf("sealing %q: %w", key, err)
		}
		stored = sealed
	}

	if err := s.store.SetSetting(ctx, key, stored); err != nil {
		return err
	}
	s.logger.Debug("setting saved", "key", key, "encrypted", s.isEncrypted(key))
	return nil
}

// Keys lists every stored key.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	return s.store.ListSettingKeys(ctx)
}

// Delete removes a stored key.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.store.DeleteSetting(ctx, key)
}

func (s *Service) load(ctx context.Context, key string) (json.RawMessage, error) {
	row, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}
	if !s.isEncrypted(key) {
		return json.RawMessage(row.Value), nil
	}

	plain, err := s.cipher.Open(row.Value)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", key, err)
	}
	return json.RawMessage(plain), nil
}

func (s *Service) isEncrypted(key string) bool {
	for _, k := range s.encrypted {
		if key == k || strings.HasPrefix(key, k+".") {
			return true
		}
	}
	return false
}
