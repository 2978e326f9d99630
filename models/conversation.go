package models

// Conversation represents a two-party thread as returned by the server.
type Conversation struct {
	ConversationID string `json:"conversationId"`
	OtherUserID    string `json:"otherUserId"`
	OtherUsername  string `json:"otherUsername"`
	LastActivity   int64  `json:"lastActivity"`
}
