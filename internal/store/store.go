// ABOUTME: Store interfaces and data types for adui persistence
// ABOUTME: Defines Setting and Conversation structs and the interfaces backing the runtime

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidConversation is returned when a conversation is missing required fields
var ErrInvalidConversation = errors.New("invalid conversation")

// Setting is a single row of the key/value settings table.
// Value holds the serialized (and possibly encrypted) payload.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Conversation is a stored chat or translation session
type Conversation struct {
	ID           string
	Title        string
	Provider     string
	Model        string
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SettingsStore persists raw setting values by key
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*Setting, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettingKeys(ctx context.Context) ([]string, error)
	DeleteSetting(ctx context.Context, key string) error
}

// ConversationStore persists conversations
type ConversationStore interface {
	// ListConversations returns conversations, most recently updated first
	ListConversations(ctx context.Context) ([]*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	CreateConversation(ctx context.Context, conv *Conversation) error
	TouchConversation(ctx context.Context, id string, at time.Time) error
}

// Store is the full persistence surface
type Store interface {
	SettingsStore
	ConversationStore

	// Close releases any resources held by the store
	Close() error
}
