package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultHandshakeTimeout bounds the websocket dial and upgrade.
	DefaultHandshakeTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds each outbound frame write.
	DefaultWriteTimeout = 10 * time.Second
)

// Server-to-client events.
const (
	EventNewMessage          = "newMessage"
	EventMessageStatusUpdate = "messageStatusUpdate"
	EventPresenceUpdate      = "presenceUpdate"
	EventTyping              = "typing"
	EventStopTyping          = "stopTyping"
)

// Client-to-server intents. Typing intents reuse the event names above.
const (
	IntentRegisterUser     = "registerUser"
	IntentJoinConversation = "joinConversation"
	IntentConversationRead = "conversationRead"
)

var (
	// ErrInvalidEvent indicates the event name is missing or unknown.
	ErrInvalidEvent = errors.New("socket: invalid event")
	// ErrNotConnected indicates no live push-channel connection exists.
	ErrNotConnected = errors.New("socket: not connected")
	// ErrSessionClosed indicates the session was torn down.
	ErrSessionClosed = errors.New("socket: session closed")
)

// Envelope frames every event and intent on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StatusUpdate mutates one message's delivery state in place.
type StatusUpdate struct {
	MessageID   string `json:"messageId"`
	Status      string `json:"status,omitempty"`
	DeliveredAt *int64 `json:"deliveredAt,omitempty"`
	ReadAt      *int64 `json:"readAt,omitempty"`
}

// PresenceUpdate reports one user's online/last-seen state.
type PresenceUpdate struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen *int64 `json:"lastSeen"`
}

// TypingEvent carries typing/stopTyping in both directions.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// RegisterUser announces the local identity so the server can route
// events to this connection.
type RegisterUser struct {
	UserID string `json:"userId"`
}

// JoinConversation subscribes this connection to a conversation's events.
type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

// ConversationRead marks a conversation read by the local user.
type ConversationRead struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// EncodeEvent marshals an event name and payload into one wire frame.
func EncodeEvent(event string, data any) ([]byte, error) {
	if event == "" {
		return nil, ErrInvalidEvent
	}

	rawData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	payload, err := json.Marshal(Envelope{Event: event, Data: rawData})
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return payload, nil
}

// DecodeEnvelope extracts the envelope from a wire frame.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Event == "" {
		return Envelope{}, ErrInvalidEvent
	}
	return envelope, nil
}
