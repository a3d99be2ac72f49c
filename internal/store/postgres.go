// postgres.go — Postgres-backed ConversationStore.
//
// Schema:
//
//	CREATE TABLE chat_conversation_pointers (
//	    user_id         TEXT PRIMARY KEY,
//	    conversation_id TEXT NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresConversationStore persists conversation pointers in Postgres.
type PostgresConversationStore struct {
	db *sql.DB
}

// NewPostgresConversationStore wraps an open database handle.
func NewPostgresConversationStore(db *sql.DB) *PostgresConversationStore {
	return &PostgresConversationStore{db: db}
}

func (s *PostgresConversationStore) Get(ctx context.Context, userID string) (string, error) {
	var conversationID string
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id FROM chat_conversation_pointers WHERE user_id = $1`,
		userID,
	).Scan(&conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get conversation pointer: %w", err)
	}
	return conversationID, nil
}

func (s *PostgresConversationStore) Set(ctx context.Context, userID, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_conversation_pointers (user_id, conversation_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET conversation_id = EXCLUDED.conversation_id, updated_at = now()`,
		userID, conversationID,
	)
	if err != nil {
		return fmt.Errorf("set conversation pointer: %w", err)
	}
	return nil
}

func (s *PostgresConversationStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_conversation_pointers WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete conversation pointer: %w", err)
	}
	return nil
}

var _ ConversationStore = (*PostgresConversationStore)(nil)
