package chat

import (
	"log"
	"sync"
	"time"

	"oldschool-messanger/socket"
)

// DefaultTypingExpiry clears a stale remote-typing flag when the peer's
// stopTyping event is lost by the network. Each typing refresh re-arms
// the timer.
const DefaultTypingExpiry = 10 * time.Second

// TypingEmitter carries local typing intent to the server.
type TypingEmitter interface {
	Typing(conversationID string) error
	StopTyping(conversationID string) error
}

// TypingIndicator tracks local typing intent and the remote party's
// typing state for the active conversation.
//
// Local side: one event per empty/non-empty transition of the composer,
// not per keystroke. Remote side: a single flag gated to the active
// conversation and, when known, the expected other participant;
// last-write-wins by arrival order.
type TypingIndicator struct {
	expiry time.Duration

	mu             sync.Mutex
	emitter        TypingEmitter
	conversationID string
	expectedUserID string
	localTyping    bool
	remoteTyping   bool
	expiryTimer    *time.Timer
	expiryGen      uint64
}

// NewTypingIndicator builds an indicator with the given remote expiry.
// A non-positive expiry falls back to DefaultTypingExpiry.
func NewTypingIndicator(expiry time.Duration) *TypingIndicator {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingIndicator{expiry: expiry}
}

// AttachEmitter wires the push channel used for outbound typing intent.
func (t *TypingIndicator) AttachEmitter(emitter TypingEmitter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitter = emitter
}

// SetScope gates remote events to a conversation and expected
// participant, clearing any transient state from the previous scope.
func (t *TypingIndicator) SetScope(conversationID, expectedUserID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversationID = conversationID
	t.expectedUserID = expectedUserID
	t.localTyping = false
	t.clearRemoteLocked()
}

// Reset clears all transient typing state.
func (t *TypingIndicator) Reset() {
	t.SetScope("", "")
}

// OnInputChange reacts to the local composer's content. Crossing the
// empty/non-empty boundary emits typing or stopTyping for the active
// conversation; staying on one side emits nothing.
func (t *TypingIndicator) OnInputChange(text string) {
	t.mu.Lock()
	conversationID := t.conversationID
	emitter := t.emitter
	nonEmpty := text != ""
	transition := nonEmpty != t.localTyping
	t.localTyping = nonEmpty
	t.mu.Unlock()

	if !transition || conversationID == "" || emitter == nil {
		return
	}

	var err error
	if nonEmpty {
		err = emitter.Typing(conversationID)
	} else {
		err = emitter.StopTyping(conversationID)
	}
	if err != nil {
		// Lost typing intent degrades silently; the channel will carry
		// the next transition after reconnect.
		log.Printf("chat: typing intent not delivered: %v", err)
	}
}

// HandleTyping applies a remote typing event, re-arming the expiry timer.
func (t *TypingIndicator) HandleTyping(event socket.TypingEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inScopeLocked(event) {
		return
	}

	t.remoteTyping = true
	if t.expiryTimer != nil {
		t.expiryTimer.Stop()
	}
	// A stopped timer may already have fired and be blocked on the mutex;
	// the generation check makes that stale callback a no-op.
	t.expiryGen++
	gen := t.expiryGen
	t.expiryTimer = time.AfterFunc(t.expiry, func() { t.expireRemote(gen) })
}

// HandleStopTyping applies a remote stopTyping event.
func (t *TypingIndicator) HandleStopTyping(event socket.TypingEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.inScopeLocked(event) {
		return
	}
	t.clearRemoteLocked()
}

// RemoteTyping reports whether the remote party is currently typing.
func (t *TypingIndicator) RemoteTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteTyping
}

func (t *TypingIndicator) inScopeLocked(event socket.TypingEvent) bool {
	if t.conversationID == "" || event.ConversationID != t.conversationID {
		return false
	}
	if t.expectedUserID != "" && event.UserID != t.expectedUserID {
		return false
	}
	return true
}

func (t *TypingIndicator) clearRemoteLocked() {
	t.remoteTyping = false
	t.expiryGen++
	if t.expiryTimer != nil {
		t.expiryTimer.Stop()
		t.expiryTimer = nil
	}
}

func (t *TypingIndicator) expireRemote(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.expiryGen {
		return
	}
	t.remoteTyping = false
	t.expiryTimer = nil
}
