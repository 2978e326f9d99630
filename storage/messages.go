package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

type scanner interface {
	Scan(dest ...any) error
}

// UpsertMessage inserts or refreshes one cached message row.
func (s *Store) UpsertMessage(message Message) error {
	if message.MessageID == "" {
		return errors.New("message_id is required")
	}
	if message.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	if message.Status == "" {
		message.Status = statusSent
	}
	if err := validateStatus(message.Status); err != nil {
		return err
	}
	if message.CreatedAt == 0 {
		message.CreatedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (
			message_id,
			conversation_id,
			sender_id,
			body,
			status,
			delivered_at,
			read_at,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			body = excluded.body,
			status = excluded.status,
			delivered_at = excluded.delivered_at,
			read_at = excluded.read_at`,
		message.MessageID,
		message.ConversationID,
		message.SenderID,
		message.Body,
		message.Status,
		nullInt64(message.DeliveredAt),
		nullInt64(message.ReadAt),
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert message %q: %w", message.MessageID, err)
	}

	return nil
}

// MessagesForConversation returns cached messages ordered by creation time.
func (s *Store) MessagesForConversation(conversationID string, limit, offset int) ([]Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(
		`SELECT
			message_id,
			conversation_id,
			sender_id,
			body,
			status,
			delivered_at,
			read_at,
			created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?`,
		conversationID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages for conversation %q: %w", conversationID, err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return messages, nil
}

// UpdateMessageStatus merges status/timestamp fields for a cached message.
func (s *Store) UpdateMessageStatus(messageID, status string, deliveredAt, readAt *int64) error {
	if messageID == "" {
		return errors.New("message_id is required")
	}
	if status != "" {
		if err := validateStatus(status); err != nil {
			return err
		}
	}

	res, err := s.db.Exec(
		`UPDATE messages
		SET status = COALESCE(NULLIF(?, ''), status),
		    delivered_at = COALESCE(?, delivered_at),
		    read_at = COALESCE(?, read_at)
		WHERE message_id = ?`,
		status,
		nullInt64(deliveredAt),
		nullInt64(readAt),
		messageID,
	)
	if err != nil {
		return fmt.Errorf("update status for message %q: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for status update %q: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetMessageByID fetches one cached message by message ID.
func (s *Store) GetMessageByID(messageID string) (*Message, error) {
	if messageID == "" {
		return nil, errors.New("message_id is required")
	}

	row := s.db.QueryRow(
		`SELECT
			message_id,
			conversation_id,
			sender_id,
			body,
			status,
			delivered_at,
			read_at,
			created_at
		FROM messages
		WHERE message_id = ?`,
		messageID,
	)

	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message %q: %w", messageID, err)
	}
	return message, nil
}

func scanMessage(row scanner) (*Message, error) {
	var (
		message     Message
		deliveredAt sql.NullInt64
		readAt      sql.NullInt64
	)

	if err := row.Scan(
		&message.MessageID,
		&message.ConversationID,
		&message.SenderID,
		&message.Body,
		&message.Status,
		&deliveredAt,
		&readAt,
		&message.CreatedAt,
	); err != nil {
		return nil, err
	}

	message.DeliveredAt = int64Ptr(deliveredAt)
	message.ReadAt = int64Ptr(readAt)

	return &message, nil
}
