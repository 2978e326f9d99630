package storage

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustUpsertConversation(t *testing.T, store *Store, conversationID, otherUserID string) {
	t.Helper()

	err := store.UpsertConversation(Conversation{
		ConversationID: conversationID,
		OtherUserID:    otherUserID,
		OtherUsername:  "user-" + otherUserID,
		LastActivity:   nowUnixMilli(),
	})
	if err != nil {
		t.Fatalf("upsert conversation %q: %v", conversationID, err)
	}
}
