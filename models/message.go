package models

// Message delivery statuses assigned by the server.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message is one message record. The server only ever sees Ciphertext and
// IV; Plaintext exists on the client and is populated after decryption.
type Message struct {
	MessageID      string `json:"_id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Ciphertext     string `json:"ciphertext"`
	IV             string `json:"iv"`
	Status         string `json:"status"`
	DeliveredAt    *int64 `json:"deliveredAt,omitempty"`
	ReadAt         *int64 `json:"readAt,omitempty"`
	CreatedAt      int64  `json:"createdAt"`

	Plaintext string `json:"-"`
}

// PresenceRecord holds the last known presence for one user identity.
// Absence of a record means unknown, not offline.
type PresenceRecord struct {
	Online   bool   `json:"online"`
	LastSeen *int64 `json:"lastSeen"`
}

// ValidStatus reports whether s is a server-assigned delivery status.
func ValidStatus(s string) bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	default:
		return false
	}
}
