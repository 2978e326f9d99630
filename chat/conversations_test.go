package chat

import (
	"errors"
	"testing"

	"oldschool-messanger/api"
	"oldschool-messanger/models"
	"oldschool-messanger/socket"
)

func newTestManager(t *testing.T, fake *fakeAPI, push *fakePush) (*ConversationManager, *MessageStore, *TypingIndicator) {
	t.Helper()

	store := newTestStore()
	typing := NewTypingIndicator(0)
	manager, err := NewConversationManager(ConversationManagerOptions{
		Session: testSession(),
		API:     fake,
		Store:   store,
		Typing:  typing,
	})
	if err != nil {
		t.Fatalf("NewConversationManager failed: %v", err)
	}
	if push != nil {
		manager.AttachPush(push)
		typing.AttachEmitter(push)
	}
	return manager, store, typing
}

func TestListKeepsCurrentListOnError(t *testing.T) {
	fake := &fakeAPI{
		conversations: []models.Conversation{
			{ConversationID: "c-1", OtherUserID: "u-2", OtherUsername: "bob"},
		},
	}
	manager, _, _ := newTestManager(t, fake, nil)

	if got := manager.List(); len(got) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(got))
	}

	fake.mu.Lock()
	fake.listErr = errors.New("backend unreachable")
	fake.mu.Unlock()

	if got := manager.List(); len(got) != 1 {
		t.Fatalf("fetch failure must not clear the list, got %d entries", len(got))
	}
}

func TestListOrdersByActivity(t *testing.T) {
	fake := &fakeAPI{
		conversations: []models.Conversation{
			{ConversationID: "c-quiet", OtherUserID: "u-2", LastActivity: 100},
			{ConversationID: "c-busy", OtherUserID: "u-3", LastActivity: 900},
		},
	}
	manager, _, _ := newTestManager(t, fake, nil)

	got := manager.List()
	if got[0].ConversationID != "c-busy" {
		t.Fatal("conversations must order by last activity, most recent first")
	}
}

func TestSelectLoadsHistoryAndEmitsIntents(t *testing.T) {
	fake := &fakeAPI{
		histories: map[string][]models.Message{
			"c-1": {
				message("m-1", "c-1", "one"),
				message("m-2", "c-1", "two"),
			},
		},
	}
	push := &fakePush{}
	manager, store, _ := newTestManager(t, fake, push)

	if err := manager.Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if got := len(store.Messages()); got != 2 {
		t.Fatalf("expected history of 2, got %d", got)
	}

	intents := push.recorded()
	if len(intents) != 2 || intents[0] != "join:c-1" || intents[1] != "read:c-1" {
		t.Fatalf("expected join then read receipt, got %v", intents)
	}

	selection, ok := manager.Selected()
	if !ok || selection.OtherUsername != "bob" {
		t.Fatalf("unexpected selection %+v ok=%v", selection, ok)
	}
}

func TestSelectABAYieldsFreshSequence(t *testing.T) {
	fake := &fakeAPI{
		histories: map[string][]models.Message{
			"c-a": {message("m-a1", "c-a", "a one")},
			"c-b": {message("m-b1", "c-b", "b one"), message("m-b2", "c-b", "b two")},
		},
	}
	manager, store, _ := newTestManager(t, fake, &fakePush{})

	if err := manager.Select("c-a", "bob", "u-2"); err != nil {
		t.Fatalf("select A failed: %v", err)
	}
	if err := manager.Select("c-b", "carol", "u-3"); err != nil {
		t.Fatalf("select B failed: %v", err)
	}
	if err := manager.Select("c-a", "bob", "u-2"); err != nil {
		t.Fatalf("reselect A failed: %v", err)
	}

	messages := store.Messages()
	if len(messages) != 1 || messages[0].MessageID != "m-a1" {
		t.Fatalf("expected fresh A history, got %+v", messages)
	}
}

func TestSelectResetsRemoteTyping(t *testing.T) {
	fake := &fakeAPI{histories: map[string][]models.Message{}}
	manager, _, typing := newTestManager(t, fake, &fakePush{})

	if err := manager.Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	typing.HandleTyping(socket.TypingEvent{ConversationID: "c-1", UserID: "u-2"})
	if !typing.RemoteTyping() {
		t.Fatal("expected remote typing flag set")
	}

	if err := manager.Select("c-2", "carol", "u-3"); err != nil {
		t.Fatalf("select c-2 failed: %v", err)
	}
	if typing.RemoteTyping() {
		t.Fatal("remote typing flag must reset on selection change")
	}
}

func TestSelectHistoryFailureKeepsSelection(t *testing.T) {
	fake := &fakeAPI{historyErr: errors.New("timeout")}
	manager, store, _ := newTestManager(t, fake, &fakePush{})

	if err := manager.Select("c-1", "bob", "u-2"); err == nil {
		t.Fatal("expected history load error to surface")
	}

	if _, ok := manager.Selected(); !ok {
		t.Fatal("selection must survive a history load failure")
	}
	if got := len(store.Messages()); got != 0 {
		t.Fatalf("expected empty sequence after failed load, got %d", got)
	}
}

func TestStartByPhoneSelectsResult(t *testing.T) {
	fake := &fakeAPI{
		startResult: &api.StartConversationResult{
			ConversationID: "c-new",
			OtherUserID:    "u-9",
			OtherUsername:  "dave",
		},
		conversations: []models.Conversation{
			{ConversationID: "c-new", OtherUserID: "u-9", OtherUsername: "dave"},
		},
		histories: map[string][]models.Message{},
	}
	manager, _, _ := newTestManager(t, fake, &fakePush{})

	selection, err := manager.StartByPhone("+15550001111")
	if err != nil {
		t.Fatalf("StartByPhone failed: %v", err)
	}
	if selection.ConversationID != "c-new" {
		t.Fatalf("unexpected selection %+v", selection)
	}

	current, ok := manager.Selected()
	if !ok || current.ConversationID != "c-new" {
		t.Fatal("phone lookup result must be auto-selected")
	}
	if fake.listCalls == 0 {
		t.Fatal("conversation list must refresh after a successful lookup")
	}
}

func TestStartByPhoneFailureLeavesSelectionUntouched(t *testing.T) {
	fake := &fakeAPI{
		startErr:  errors.New("no user with that phone number"),
		histories: map[string][]models.Message{},
	}
	manager, _, _ := newTestManager(t, fake, &fakePush{})

	if err := manager.Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if _, err := manager.StartByPhone("+15550009999"); err == nil {
		t.Fatal("expected lookup failure to surface")
	}

	selection, ok := manager.Selected()
	if !ok || selection.ConversationID != "c-1" {
		t.Fatal("failed lookup must not mutate selection state")
	}
}

func TestDeselectClearsTransientState(t *testing.T) {
	fake := &fakeAPI{
		histories: map[string][]models.Message{
			"c-1": {message("m-1", "c-1", "one")},
		},
	}
	manager, store, typing := newTestManager(t, fake, &fakePush{})

	if err := manager.Select("c-1", "bob", "u-2"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	typing.HandleTyping(socket.TypingEvent{ConversationID: "c-1", UserID: "u-2"})

	manager.Deselect()

	if _, ok := manager.Selected(); ok {
		t.Fatal("selection must clear on deselect")
	}
	if got := len(store.Messages()); got != 0 {
		t.Fatalf("message sequence must clear on deselect, got %d", got)
	}
	if typing.RemoteTyping() {
		t.Fatal("typing flag must clear on deselect")
	}
}

func TestRecordActivityReorders(t *testing.T) {
	fake := &fakeAPI{
		conversations: []models.Conversation{
			{ConversationID: "c-busy", OtherUserID: "u-3", LastActivity: 900},
			{ConversationID: "c-quiet", OtherUserID: "u-2", LastActivity: 100},
		},
	}
	manager, _, _ := newTestManager(t, fake, nil)
	manager.List()

	manager.RecordActivity("c-quiet", 1000)

	got := manager.Conversations()
	if got[0].ConversationID != "c-quiet" {
		t.Fatal("activity bump must move the conversation to the front")
	}
	if got[0].LastActivity != 1000 {
		t.Fatalf("last activity not updated: %d", got[0].LastActivity)
	}
}
