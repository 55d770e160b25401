// Package store provides persistent storage for adui using SQLite.
//
// # Architecture
//
// Two narrow interfaces cover the data the runtime keeps on disk:
//
//   - SettingsStore: key/value rows holding serialized setting payloads
//   - ConversationStore: chat and translation sessions
//
// Store combines both with Close. SQLiteStore implements Store in a single
// struct; MockStore is the in-memory equivalent for unit tests.
//
// The settings table never interprets values. Encryption and JSON handling
// live in the settings package above it.
//
// # Conversations repository
//
// ConversationsRepository adapts a ConversationStore to the JSON shaped
// repository that tools see. Payloads are decoded into Conversation fields,
// IDs are assigned with google/uuid, and List returns each row as a JSON
// object with snake_case keys.
//
// # SQLite Configuration
//
// File databases use WAL mode. An in-memory database (":memory:") is pinned
// to a single connection so every query sees the same data:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
//   - ErrNotFound: requested key or conversation does not exist
//   - ErrInvalidConversation: create payload is missing a title or is malformed
//
// All methods accept context.Context for cancellation support.
package store
