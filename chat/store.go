// Package chat holds the client-side messaging state: the active
// conversation's message sequence, the conversation list, presence, and
// typing indicators. All state transitions are applied through the
// Controller's event queue so no handler ever reads a stale snapshot.
package chat

import (
	"log"
	"sync"

	"oldschool-messanger/crypto"
	"oldschool-messanger/models"
	"oldschool-messanger/socket"
	"oldschool-messanger/storage"
)

// DecryptFunc turns a ciphertext/IV pair into renderable plaintext. It
// must degrade, never fail: a bad input yields a placeholder.
type DecryptFunc func(ciphertext, iv string) string

// MessageStoreOptions configures a MessageStore.
type MessageStoreOptions struct {
	// Decrypt defaults to crypto.DecryptOrPlaceholder.
	Decrypt DecryptFunc
	// Cache, when set, receives a best-effort write-through copy of every
	// decrypted message. Cache failures are logged, never surfaced.
	Cache *storage.Store
}

// MessageStore owns the ordered, deduplicated message sequence for the
// active conversation. Merges are identity-keyed and idempotent, so
// completions and push events may arrive in any order.
type MessageStore struct {
	decrypt DecryptFunc
	cache   *storage.Store

	mu             sync.RWMutex
	conversationID string
	messages       []models.Message
	index          map[string]int
}

// NewMessageStore builds an empty store with no active conversation.
func NewMessageStore(options MessageStoreOptions) *MessageStore {
	decrypt := options.Decrypt
	if decrypt == nil {
		decrypt = crypto.DecryptOrPlaceholder
	}

	return &MessageStore{
		decrypt: decrypt,
		cache:   options.Cache,
		index:   make(map[string]int),
	}
}

// SetActive switches the store to a conversation, clearing the previous
// sequence. Entries from the previous conversation never leak into the
// new view.
func (s *MessageStore) SetActive(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = conversationID
	s.messages = nil
	s.index = make(map[string]int)
}

// ActiveConversation returns the conversation the store currently owns.
func (s *MessageStore) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Load replaces the active sequence with a fetched history batch. Each
// message is decrypted in parallel; the resulting sequence preserves the
// fetch order, not decryption completion order. A completion for a
// conversation that is no longer active is discarded at merge time.
func (s *MessageStore) Load(conversationID string, fetched []models.Message) {
	decrypted := make([]models.Message, len(fetched))

	var wg sync.WaitGroup
	wg.Add(len(fetched))
	for i := range fetched {
		go func(i int) {
			defer wg.Done()
			message := fetched[i]
			message.Plaintext = s.decrypt(message.Ciphertext, message.IV)
			decrypted[i] = message
		}(i)
	}
	wg.Wait()

	s.mu.Lock()
	if s.conversationID != conversationID {
		s.mu.Unlock()
		log.Printf("chat: discarding stale history load for conversation %q", conversationID)
		return
	}

	s.messages = make([]models.Message, 0, len(decrypted))
	s.index = make(map[string]int, len(decrypted))
	for _, message := range decrypted {
		if _, exists := s.index[message.MessageID]; exists {
			continue
		}
		s.index[message.MessageID] = len(s.messages)
		s.messages = append(s.messages, message)
	}
	s.mu.Unlock()

	s.cacheBatch(decrypted)
}

// Append inserts a message at the end of the active sequence. The merge
// is idempotent: an identity already present is a no-op, so a push event
// duplicating a send acknowledgment never creates a second entry. A
// message for another conversation is discarded.
func (s *MessageStore) Append(message models.Message) {
	if message.Plaintext == "" && message.Ciphertext != "" {
		message.Plaintext = s.decrypt(message.Ciphertext, message.IV)
	}

	s.mu.Lock()
	if s.conversationID == "" || message.ConversationID != s.conversationID {
		s.mu.Unlock()
		return
	}
	if _, exists := s.index[message.MessageID]; exists {
		s.mu.Unlock()
		return
	}
	s.index[message.MessageID] = len(s.messages)
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	s.cacheOne(message)
}

// ApplyStatusUpdate merges status/timestamp fields into the matching
// entry in place. An identity not present locally is a silent no-op: the
// message belongs to another conversation or has not arrived yet.
func (s *MessageStore) ApplyStatusUpdate(update socket.StatusUpdate) {
	s.mu.Lock()
	position, exists := s.index[update.MessageID]
	if !exists {
		s.mu.Unlock()
		return
	}

	message := &s.messages[position]
	if update.Status != "" && models.ValidStatus(update.Status) {
		message.Status = update.Status
	}
	if update.DeliveredAt != nil {
		message.DeliveredAt = update.DeliveredAt
	}
	if update.ReadAt != nil {
		message.ReadAt = update.ReadAt
	}
	updated := *message
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.UpdateMessageStatus(updated.MessageID, updated.Status, updated.DeliveredAt, updated.ReadAt); err != nil {
			log.Printf("chat: cache status update failed: %v", err)
		}
	}
}

// Messages returns a copy of the active sequence in first-append order.
func (s *MessageStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear drops the active conversation and its sequence.
func (s *MessageStore) Clear() {
	s.SetActive("")
}

func (s *MessageStore) cacheBatch(messages []models.Message) {
	if s.cache == nil {
		return
	}
	for _, message := range messages {
		s.cacheOne(message)
	}
}

func (s *MessageStore) cacheOne(message models.Message) {
	if s.cache == nil || message.MessageID == "" {
		return
	}
	if err := s.cache.UpsertMessage(storage.Message{
		MessageID:      message.MessageID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Body:           message.Plaintext,
		Status:         message.Status,
		DeliveredAt:    message.DeliveredAt,
		ReadAt:         message.ReadAt,
		CreatedAt:      message.CreatedAt,
	}); err != nil {
		log.Printf("chat: cache write failed for message %q: %v", message.MessageID, err)
	}
}
