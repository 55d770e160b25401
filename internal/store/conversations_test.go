// ABOUTME: Tests for the JSON conversations repository
// ABOUTME: Runs against both MockStore and an in-memory SQLiteStore

package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationsRepository(t *testing.T) {
	backends := map[string]func(t *testing.T) ConversationStore{
		"mock":   func(t *testing.T) ConversationStore { return NewMockStore() },
		"sqlite": func(t *testing.T) ConversationStore { return newTestStore(t) },
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewConversationsRepository(open(t))

			empty, err := repo.List(ctx)
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			id, err := repo.Create(ctx, json.RawMessage(`{"id":"ignored","title":"Translate: hi","provider":"baidu"}`))
			require.NoError(t, err)
			_, err = uuid.Parse(id)
			assert.NoError(t, err, "id should be a uuid")
			assert.NotEqual(t, "ignored", id)

			list, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)

			var got map[string]any
			require.NoError(t, json.Unmarshal(list[0], &got))
			assert.Equal(t, id, got["id"])
			assert.Equal(t, "Translate: hi", got["title"])
			assert.Equal(t, "baidu", got["provider"])
			assert.Contains(t, got, "created_at")
			assert.Contains(t, got, "updated_at")
			assert.NotContains(t, got, "model")

			one, err := repo.Get(ctx, id)
			require.NoError(t, err)
			assert.JSONEq(t, string(list[0]), string(one))
		})
	}
}

func TestConversationsRepository_CreateInvalid(t *testing.T) {
	repo := NewConversationsRepository(NewMockStore())
	ctx := context.Background()

	for _, payload := range []string{`not json`, `{}`, `{"title":"  "}`, `[1,2]`} {
		_, err := repo.Create(ctx, json.RawMessage(payload))
		assert.ErrorIs(t, err, ErrInvalidConversation, payload)
	}
}

func TestConversationsRepository_BackendError(t *testing.T) {
	backend := NewMockStore()
	backend.Err = errors.New("disk full")
	repo := NewConversationsRepository(backend)
	ctx := context.Background()

	_, err := repo.List(ctx)
	assert.EqualError(t, err, "disk full")

	_, err = repo.Create(ctx, json.RawMessage(`{"title":"x"}`))
	assert.EqualError(t, err, "disk full")
}
