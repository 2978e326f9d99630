package chat

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"oldschool-messanger/api"
	"oldschool-messanger/models"
	"oldschool-messanger/storage"
)

// Directory is the request/response API surface the manager consumes.
// *api.Client satisfies it.
type Directory interface {
	Conversations(userID string) ([]models.Conversation, error)
	Messages(conversationID string) ([]models.Message, error)
	StartByPhone(phoneNumber string) (*api.StartConversationResult, error)
}

// PushChannel is the outbound intent surface of the push channel.
// *socket.Session satisfies it.
type PushChannel interface {
	JoinConversation(conversationID string) error
	ConversationRead(conversationID string) error
	TypingEmitter
}

// Selection identifies the currently open conversation.
type Selection struct {
	ConversationID string
	OtherUserID    string
	OtherUsername  string
}

// ConversationManagerOptions configures a ConversationManager.
type ConversationManagerOptions struct {
	Session models.SessionContext
	API     Directory
	Store   *MessageStore
	Typing  *TypingIndicator
	// Cache, when set, receives a best-effort copy of the conversation
	// list for offline access.
	Cache *storage.Store
}

// ConversationManager maintains the conversation list, the selection
// pointer, and selection-triggered side effects: history load, join, and
// read receipt.
type ConversationManager struct {
	session models.SessionContext
	api     Directory
	store   *MessageStore
	typing  *TypingIndicator
	cache   *storage.Store

	mu            sync.RWMutex
	push          PushChannel
	conversations []models.Conversation
	selected      *Selection
}

// NewConversationManager validates options and builds a manager.
func NewConversationManager(options ConversationManagerOptions) (*ConversationManager, error) {
	if options.Session.UserID == "" {
		return nil, errors.New("session user ID is required")
	}
	if options.API == nil {
		return nil, errors.New("directory API is required")
	}
	if options.Store == nil {
		return nil, errors.New("message store is required")
	}
	if options.Typing == nil {
		options.Typing = NewTypingIndicator(0)
	}

	return &ConversationManager{
		session: options.Session,
		api:     options.API,
		store:   options.Store,
		typing:  options.Typing,
		cache:   options.Cache,
	}, nil
}

// AttachPush wires the push channel used for selection side effects.
// Before attachment those side effects degrade to "no live updates".
func (m *ConversationManager) AttachPush(push PushChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push = push
}

// List fetches the conversation list from the server. A fetch failure is
// logged and leaves the existing list unchanged; the previous list is
// returned.
func (m *ConversationManager) List() []models.Conversation {
	fetched, err := m.api.Conversations(m.session.UserID)
	if err != nil {
		log.Printf("chat: conversation list fetch failed, keeping current list: %v", err)
		return m.Conversations()
	}

	sort.SliceStable(fetched, func(i, j int) bool {
		return fetched[i].LastActivity > fetched[j].LastActivity
	})

	m.mu.Lock()
	m.conversations = fetched
	m.mu.Unlock()

	m.cacheConversations(fetched)
	return m.Conversations()
}

// Conversations returns a copy of the current list, most recent first.
func (m *ConversationManager) Conversations() []models.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Conversation, len(m.conversations))
	copy(out, m.conversations)
	return out
}

// Select opens a conversation: it resets transient typing state, swaps
// the message store to the conversation, loads history, and announces
// join plus a read receipt on the push channel. History and live push
// events may overlap in flight; identity-keyed dedup in the store
// resolves it. A history fetch failure leaves the selection in place
// with an empty sequence and is returned for inline surfacing.
func (m *ConversationManager) Select(conversationID, otherUsername, otherUserID string) error {
	if conversationID == "" {
		return errors.New("conversation ID is required")
	}

	m.mu.Lock()
	m.selected = &Selection{
		ConversationID: conversationID,
		OtherUserID:    otherUserID,
		OtherUsername:  otherUsername,
	}
	push := m.push
	m.mu.Unlock()

	m.typing.SetScope(conversationID, otherUserID)
	m.store.SetActive(conversationID)

	if push != nil {
		if err := push.JoinConversation(conversationID); err != nil {
			log.Printf("chat: join intent not delivered: %v", err)
		}
		if err := push.ConversationRead(conversationID); err != nil {
			log.Printf("chat: read receipt not delivered: %v", err)
		}
	}

	history, err := m.api.Messages(conversationID)
	if err != nil {
		return fmt.Errorf("load history for conversation %q: %w", conversationID, err)
	}
	m.store.Load(conversationID, history)
	return nil
}

// StartByPhone asks the server to find or create a conversation for a
// phone number, refreshes the list, and selects the result. Failure
// leaves selection state untouched.
func (m *ConversationManager) StartByPhone(phoneNumber string) (*Selection, error) {
	result, err := m.api.StartByPhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	m.List()
	if err := m.Select(result.ConversationID, result.OtherUsername, result.OtherUserID); err != nil {
		log.Printf("chat: history load after phone lookup failed: %v", err)
	}

	return &Selection{
		ConversationID: result.ConversationID,
		OtherUserID:    result.OtherUserID,
		OtherUsername:  result.OtherUsername,
	}, nil
}

// Deselect clears the selection and all per-conversation transient
// state.
func (m *ConversationManager) Deselect() {
	m.mu.Lock()
	m.selected = nil
	m.mu.Unlock()

	m.typing.Reset()
	m.store.Clear()
}

// Selected returns the current selection, if any.
func (m *ConversationManager) Selected() (Selection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selected == nil {
		return Selection{}, false
	}
	return *m.selected, true
}

// RecordActivity bumps a conversation's last-activity ordering hint and
// moves it to the front of the list.
func (m *ConversationManager) RecordActivity(conversationID string, timestamp int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.conversations {
		if m.conversations[i].ConversationID != conversationID {
			continue
		}
		conversation := m.conversations[i]
		if timestamp > conversation.LastActivity {
			conversation.LastActivity = timestamp
		}
		copy(m.conversations[1:i+1], m.conversations[:i])
		m.conversations[0] = conversation
		return
	}
}

func (m *ConversationManager) cacheConversations(conversations []models.Conversation) {
	if m.cache == nil {
		return
	}
	for _, conversation := range conversations {
		if err := m.cache.UpsertConversation(storage.Conversation{
			ConversationID: conversation.ConversationID,
			OtherUserID:    conversation.OtherUserID,
			OtherUsername:  conversation.OtherUsername,
			LastActivity:   conversation.LastActivity,
		}); err != nil {
			log.Printf("chat: cache write failed for conversation %q: %v", conversation.ConversationID, err)
		}
	}
}
