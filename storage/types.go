package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates a requested row does not exist.
var ErrNotFound = errors.New("storage: record not found")

const (
	statusSent      = "sent"
	statusDelivered = "delivered"
	statusRead      = "read"
)

// Conversation is the SQLite representation of a conversation entry.
type Conversation struct {
	ConversationID string
	OtherUserID    string
	OtherUsername  string
	LastActivity   int64
}

// Message is the SQLite representation of a cached, decrypted message.
type Message struct {
	MessageID      string
	ConversationID string
	SenderID       string
	Body           string
	Status         string
	DeliveredAt    *int64
	ReadAt         *int64
	CreatedAt      int64
}

func validateStatus(status string) error {
	switch status {
	case statusSent, statusDelivered, statusRead:
		return nil
	default:
		return fmt.Errorf("invalid delivery status %q", status)
	}
}

func nullInt64(ptr *int64) sql.NullInt64 {
	if ptr == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ptr, Valid: true}
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
