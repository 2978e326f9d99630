package chat

import (
	"testing"
	"time"

	"oldschool-messanger/models"
	"oldschool-messanger/socket"
	"oldschool-messanger/storage"
)

func newTestController(t *testing.T, fake *fakeAPI, cache *storage.Store) *Controller {
	t.Helper()

	controller, err := NewController(ControllerOptions{
		Session: testSession(),
		API:     fake,
		Encrypt: func(plaintext string) (string, string, error) {
			return "enc:" + plaintext, "iv", nil
		},
		Decrypt: passthroughDecrypt,
		Cache:   cache,
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	t.Cleanup(controller.Close)

	return controller
}

func TestSendMergesByServerIdentityAndDeduplicatesPush(t *testing.T) {
	fake := &fakeAPI{histories: map[string][]models.Message{}}
	fake.send = func(conversationID, ciphertext, iv string) (*models.Message, error) {
		return &models.Message{
			MessageID:      "m-server-1",
			ConversationID: conversationID,
			SenderID:       "user-1",
			Ciphertext:     ciphertext,
			IV:             iv,
			Status:         models.StatusSent,
			CreatedAt:      time.Now().UnixMilli(),
		}, nil
	}
	controller := newTestController(t, fake, nil)
	controller.AttachPush(&fakePush{})

	if err := controller.Conversations().Select("c-123", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	sent, err := controller.SendMessage("hi")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if sent.Plaintext != "hi" || sent.Ciphertext != "enc:hi" {
		t.Fatalf("unexpected sent record %+v", sent)
	}

	// The server pushes the same message back over the socket.
	handlers := controller.SocketHandlers()
	handlers.OnNewMessage(*sent)
	controller.Flush()

	messages := controller.Store().Messages()
	if len(messages) != 1 {
		t.Fatalf("push duplicating the send acknowledgment created %d entries", len(messages))
	}
	if messages[0].MessageID != "m-server-1" {
		t.Fatalf("unexpected entry %+v", messages[0])
	}
}

func TestSendRejectsEmptyMessageLocally(t *testing.T) {
	calls := 0
	fake := &fakeAPI{histories: map[string][]models.Message{}}
	fake.send = func(conversationID, ciphertext, iv string) (*models.Message, error) {
		calls++
		return nil, nil
	}
	controller := newTestController(t, fake, nil)

	if err := controller.Conversations().Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if _, err := controller.SendMessage("   "); err == nil {
		t.Fatal("expected validation error for empty message")
	}
	if calls != 0 {
		t.Fatal("empty message must be rejected before any network call")
	}
}

func TestSendRequiresSelection(t *testing.T) {
	fake := &fakeAPI{histories: map[string][]models.Message{}}
	controller := newTestController(t, fake, nil)

	if _, err := controller.SendMessage("hello"); err == nil {
		t.Fatal("expected error when no conversation is selected")
	}
}

func TestInboundEventsApplyInArrivalOrder(t *testing.T) {
	fake := &fakeAPI{histories: map[string][]models.Message{}}
	controller := newTestController(t, fake, nil)
	controller.AttachPush(&fakePush{})

	if err := controller.Conversations().Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	handlers := controller.SocketHandlers()
	handlers.OnNewMessage(message("m-1", "c-1", "one"))
	readAt := time.Now().UnixMilli()
	handlers.OnStatusUpdate(socket.StatusUpdate{MessageID: "m-1", Status: models.StatusRead, ReadAt: &readAt})
	controller.Flush()

	messages := controller.Store().Messages()
	if len(messages) != 1 || messages[0].Status != models.StatusRead {
		t.Fatalf("events did not apply in arrival order: %+v", messages)
	}
}

func TestInboundMessageForOtherConversationStaysOut(t *testing.T) {
	fake := &fakeAPI{
		conversations: []models.Conversation{
			{ConversationID: "c-1", OtherUserID: "u-2", LastActivity: 500},
			{ConversationID: "c-2", OtherUserID: "u-3", LastActivity: 100},
		},
		histories: map[string][]models.Message{},
	}
	controller := newTestController(t, fake, nil)
	controller.AttachPush(&fakePush{})
	controller.Conversations().List()

	if err := controller.Conversations().Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	other := message("m-9", "c-2", "elsewhere")
	other.CreatedAt = 900
	controller.SocketHandlers().OnNewMessage(other)
	controller.Flush()

	if got := len(controller.Store().Messages()); got != 0 {
		t.Fatalf("message for non-selected conversation leaked into the store: %d", got)
	}
	if list := controller.Conversations().Conversations(); list[0].ConversationID != "c-2" {
		t.Fatal("activity for the other conversation must still bump the list")
	}
}

func TestInboundMessageDeduplicatedBySeenLedger(t *testing.T) {
	cache, _, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	fake := &fakeAPI{histories: map[string][]models.Message{}}
	controller := newTestController(t, fake, cache)
	controller.AttachPush(&fakePush{})

	if err := controller.Conversations().Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	// Redelivered push for a conversation that is not selected.
	other := message("m-5", "c-2", "body")
	handlers := controller.SocketHandlers()
	handlers.OnNewMessage(other)
	handlers.OnNewMessage(other)
	controller.Flush()

	seen, err := cache.HasSeenID("m-5")
	if err != nil {
		t.Fatalf("HasSeenID failed: %v", err)
	}
	if !seen {
		t.Fatal("expected seen-ID ledger entry for cached push")
	}

	cached, err := cache.MessagesForConversation("c-2", 10, 0)
	if err != nil {
		t.Fatalf("MessagesForConversation failed: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("expected a single cached row after duplicate push, got %d", len(cached))
	}
}

func TestOnInputChangeForwardsToTyping(t *testing.T) {
	fake := &fakeAPI{histories: map[string][]models.Message{}}
	controller := newTestController(t, fake, nil)
	push := &fakePush{}
	controller.AttachPush(push)

	if err := controller.Conversations().Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	controller.OnInputChange("h")
	controller.OnInputChange("")

	got := push.recorded()
	// join + read from Select, then the two typing transitions.
	if len(got) != 4 || got[2] != "typing:c-1" || got[3] != "stopTyping:c-1" {
		t.Fatalf("unexpected intents %v", got)
	}
}
