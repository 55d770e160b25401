// ABOUTME: JSON facing conversations repository backed by a ConversationStore
// ABOUTME: Assigns uuid identifiers and maps rows to snake_case JSON objects

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// conversationJSON is the wire shape of a conversation
type conversationJSON struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationsRepository exposes a ConversationStore as opaque JSON records.
type ConversationsRepository struct {
	store ConversationStore
	newID func() string
}

// NewConversationsRepository wraps store.
func NewConversationsRepository(store ConversationStore) *ConversationsRepository {
	return &ConversationsRepository{
		store: store,
		newID: uuid.NewString,
	}
}

// List returns every conversation, most recently updated first.
func (r *ConversationsRepository) List(ctx context.Context) ([]json.RawMessage, error) {
	convs, err := r.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(convs))
	for _, c := range convs {
		b, err := json.Marshal(toJSON(c))
		if err != nil {
			return nil, fmt.Errorf("encoding conversation %s: %w", c.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Create decodes payload, stores it under a fresh ID and returns the ID.
// Any id or timestamps in the payload are ignored.
func (r *ConversationsRepository) Create(ctx context.Context, payload json.RawMessage) (string, error) {
	var in conversationJSON
	if err := json.Unmarshal(payload, &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConversation, err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidConversation)
	}

	conv := &Conversation{
		ID:           r.newID(),
		Title:        in.Title,
		Provider:     in.Provider,
		Model:        in.Model,
		SystemPrompt: in.SystemPrompt,
	}
	if err := r.store.CreateConversation(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

// Get returns a single conversation as JSON.
func (r *ConversationsRepository) Get(ctx context.Context, id string) (json.RawMessage, error) {
	conv, err := r.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(toJSON(conv))
}

func toJSON(c *Conversation) conversationJSON {
	return conversationJSON{
		ID:           c.ID,
		Title:        c.Title,
		Provider:     c.Provider,
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
