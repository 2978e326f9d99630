package storage

import (
	"errors"
	"fmt"
)

// UpsertConversation inserts or refreshes one conversation row.
func (s *Store) UpsertConversation(conversation Conversation) error {
	if conversation.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	if conversation.OtherUserID == "" {
		return errors.New("other_user_id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO conversations (conversation_id, other_user_id, other_username, last_activity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			other_username = excluded.other_username,
			last_activity = MAX(conversations.last_activity, excluded.last_activity)`,
		conversation.ConversationID,
		conversation.OtherUserID,
		conversation.OtherUsername,
		conversation.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation %q: %w", conversation.ConversationID, err)
	}

	return nil
}

// Conversations returns cached conversations, most recent activity first.
func (s *Store) Conversations() ([]Conversation, error) {
	rows, err := s.db.Query(
		`SELECT conversation_id, other_user_id, other_username, last_activity
		FROM conversations
		ORDER BY last_activity DESC, conversation_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]Conversation, 0)
	for rows.Next() {
		var conversation Conversation
		if err := rows.Scan(
			&conversation.ConversationID,
			&conversation.OtherUserID,
			&conversation.OtherUsername,
			&conversation.LastActivity,
		); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	return conversations, nil
}
