// ABOUTME: Mock Store implementation for testing
// ABOUTME: Keeps settings and conversations in memory with optional injected errors

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	settings      map[string]*Setting
	conversations map[string]*Conversation
	order         map[string]int // insertion sequence, breaks updated_at ties
	seq           int

	// Err, when set, is returned by every method
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		settings:      make(map[string]*Setting),
		conversations: make(map[string]*Conversation),
		order:         make(map[string]int),
	}
}

// GetSetting retrieves a setting by key.
func (m *MockStore) GetSetting(ctx context.Context, key string) (*Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	s, ok := m.settings[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// SetSetting upserts a setting.
func (m *MockStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	m.settings[key] = &Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

// ListSettingKeys returns all keys sorted.
func (m *MockStore) ListSettingKeys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	keys := make([]string, 0, len(m.settings))
	for k := range m.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteSetting removes a setting.
func (m *MockStore) DeleteSetting(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.settings[key]; !ok {
		return ErrNotFound
	}
	delete(m.settings, key)
	return nil
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if conv.ID == "" || strings.TrimSpace(conv.Title) == "" {
		return fmt.Errorf("%w: id and title are required", ErrInvalidConversation)
	}
	if _, exists := m.conversations[conv.ID]; exists {
		return fmt.Errorf("inserting conversation: duplicate id %q", conv.ID)
	}
	stampConversation(conv)

	// Make a copy to avoid external modification
	c := *conv
	m.conversations[c.ID] = &c
	m.seq++
	m.order[c.ID] = m.seq
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

// ListConversations returns conversations most recently updated first.
func (m *MockStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return m.order[out[i].ID] > m.order[out[j].ID]
	})
	return out, nil
}

// TouchConversation updates a conversation's updated_at.
func (m *MockStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = at.UTC().Truncate(time.Second)
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time interface check
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
