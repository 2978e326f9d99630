package chat

import (
	"sync"

	"oldschool-messanger/api"
	"oldschool-messanger/models"
)

// fakeAPI is an in-memory stand-in for the REST client.
type fakeAPI struct {
	mu sync.Mutex

	conversations []models.Conversation
	listErr       error
	listCalls     int

	histories  map[string][]models.Message
	historyErr error

	startResult *api.StartConversationResult
	startErr    error

	send func(conversationID, ciphertext, iv string) (*models.Message, error)
}

func (f *fakeAPI) Conversations(userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeAPI) Messages(conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	history := f.histories[conversationID]
	out := make([]models.Message, len(history))
	copy(out, history)
	return out, nil
}

func (f *fakeAPI) StartByPhone(phoneNumber string) (*api.StartConversationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startResult, nil
}

func (f *fakeAPI) SendMessage(conversationID, ciphertext, iv string) (*models.Message, error) {
	f.mu.Lock()
	send := f.send
	f.mu.Unlock()
	return send(conversationID, ciphertext, iv)
}

// fakePush records outbound intents.
type fakePush struct {
	mu      sync.Mutex
	intents []string
}

func (f *fakePush) record(intent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	return nil
}

func (f *fakePush) JoinConversation(conversationID string) error {
	return f.record("join:" + conversationID)
}

func (f *fakePush) ConversationRead(conversationID string) error {
	return f.record("read:" + conversationID)
}

func (f *fakePush) Typing(conversationID string) error {
	return f.record("typing:" + conversationID)
}

func (f *fakePush) StopTyping(conversationID string) error {
	return f.record("stopTyping:" + conversationID)
}

func (f *fakePush) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.intents))
	copy(out, f.intents)
	return out
}

// passthroughDecrypt marks a body as decrypted without real crypto.
func passthroughDecrypt(ciphertext, iv string) string {
	return "plain:" + ciphertext
}

func testSession() models.SessionContext {
	return models.SessionContext{UserID: "user-1", Username: "alice", Token: "tok"}
}
