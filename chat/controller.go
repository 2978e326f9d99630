package chat

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"oldschool-messanger/crypto"
	"oldschool-messanger/models"
	"oldschool-messanger/socket"
	"oldschool-messanger/storage"
)

// API is the full request/response surface the controller consumes.
// *api.Client satisfies it.
type API interface {
	Directory
	SendMessage(conversationID, ciphertext, iv string) (*models.Message, error)
}

// EncryptFunc produces a base64 ciphertext/IV pair for a plaintext body.
type EncryptFunc func(plaintext string) (ciphertext, iv string, err error)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Session models.SessionContext
	API     API

	// Encrypt and Decrypt default to the shared-key implementations in
	// package crypto.
	Encrypt EncryptFunc
	Decrypt DecryptFunc

	// Cache, when set, persists decrypted history and the conversation
	// list across restarts.
	Cache *storage.Store

	TypingExpiry time.Duration
}

// Controller is the top-level owner of all client messaging state. Every
// inbound event is queued and applied by a single goroutine, so each
// state transition sees the current state rather than a captured stale
// snapshot, and merge order equals arrival order.
type Controller struct {
	session models.SessionContext
	api     API
	encrypt EncryptFunc
	decrypt DecryptFunc
	cache   *storage.Store

	store         *MessageStore
	presence      *PresenceTracker
	typing        *TypingIndicator
	conversations *ConversationManager

	queue     chan func()
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewController builds the component graph for one authenticated
// session and starts the event queue.
func NewController(options ControllerOptions) (*Controller, error) {
	if options.Session.UserID == "" {
		return nil, errors.New("session user ID is required")
	}
	if options.API == nil {
		return nil, errors.New("API client is required")
	}
	if options.Encrypt == nil {
		options.Encrypt = crypto.Encrypt
	}
	if options.Decrypt == nil {
		options.Decrypt = crypto.DecryptOrPlaceholder
	}

	store := NewMessageStore(MessageStoreOptions{
		Decrypt: options.Decrypt,
		Cache:   options.Cache,
	})
	typing := NewTypingIndicator(options.TypingExpiry)

	conversations, err := NewConversationManager(ConversationManagerOptions{
		Session: options.Session,
		API:     options.API,
		Store:   store,
		Typing:  typing,
		Cache:   options.Cache,
	})
	if err != nil {
		return nil, err
	}

	c := &Controller{
		session:       options.Session,
		api:           options.API,
		encrypt:       options.Encrypt,
		decrypt:       options.Decrypt,
		cache:         options.Cache,
		store:         store,
		presence:      NewPresenceTracker(),
		typing:        typing,
		conversations: conversations,
		queue:         make(chan func(), 256),
		closed:        make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()

	return c, nil
}

// Close drains and stops the event queue.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
	c.wg.Wait()
}

// Store exposes the active conversation's message sequence.
func (c *Controller) Store() *MessageStore { return c.store }

// Presence exposes tracked presence records.
func (c *Controller) Presence() *PresenceTracker { return c.presence }

// Typing exposes local and remote typing state.
func (c *Controller) Typing() *TypingIndicator { return c.typing }

// Conversations exposes the conversation list and selection.
func (c *Controller) Conversations() *ConversationManager { return c.conversations }

// AttachPush wires the push channel into the components that emit
// intents. Must be called before the socket session starts delivering.
func (c *Controller) AttachPush(push PushChannel) {
	c.conversations.AttachPush(push)
	c.typing.AttachEmitter(push)
}

// SocketHandlers returns the push-channel event handlers. Each handler
// enqueues; the queue goroutine applies.
func (c *Controller) SocketHandlers() socket.Handlers {
	return socket.Handlers{
		OnNewMessage: func(message models.Message) {
			c.dispatch(func() { c.applyNewMessage(message) })
		},
		OnStatusUpdate: func(update socket.StatusUpdate) {
			c.dispatch(func() { c.store.ApplyStatusUpdate(update) })
		},
		OnPresenceUpdate: func(update socket.PresenceUpdate) {
			c.dispatch(func() { c.presence.Apply(update) })
		},
		OnTyping: func(event socket.TypingEvent) {
			c.dispatch(func() { c.typing.HandleTyping(event) })
		},
		OnStopTyping: func(event socket.TypingEvent) {
			c.dispatch(func() { c.typing.HandleStopTyping(event) })
		},
		OnDisconnect: func(err error) {
			// Non-fatal: no live updates until the session reconnects.
			log.Printf("chat: push channel down, awaiting reconnect: %v", err)
		},
	}
}

// SendMessage validates, encrypts, and posts a message to the selected
// conversation, then merges the persisted record by its server-assigned
// identity. A later push for the same identity is a no-op in the store.
func (c *Controller) SendMessage(text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("message is empty")
	}
	selection, ok := c.conversations.Selected()
	if !ok {
		return nil, errors.New("no conversation selected")
	}

	ciphertext, iv, err := c.encrypt(text)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	message, err := c.api.SendMessage(selection.ConversationID, ciphertext, iv)
	if err != nil {
		return nil, err
	}
	message.Plaintext = text

	c.dispatch(func() {
		c.store.Append(*message)
		c.conversations.RecordActivity(message.ConversationID, message.CreatedAt)
	})
	return message, nil
}

// OnInputChange forwards local composer transitions to the typing
// indicator.
func (c *Controller) OnInputChange(text string) {
	c.typing.OnInputChange(text)
}

// Flush blocks until every event queued before the call has been
// applied.
func (c *Controller) Flush() {
	done := make(chan struct{})
	c.dispatch(func() { close(done) })
	select {
	case <-done:
	case <-c.closed:
	}
}

func (c *Controller) dispatch(fn func()) {
	select {
	case c.queue <- fn:
	case <-c.closed:
	}
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case fn := <-c.queue:
			fn()
		case <-c.closed:
			// Drain what was queued before close.
			for {
				select {
				case fn := <-c.queue:
					fn()
				default:
					return
				}
			}
		}
	}
}

// applyNewMessage routes one inbound message. A message for the selected
// conversation merges into the store; anything else only bumps the
// conversation list ordering and the local cache, deduplicated by the
// seen-ID ledger so a redelivered push cannot bump twice.
func (c *Controller) applyNewMessage(message models.Message) {
	selection, selected := c.conversations.Selected()
	if selected && message.ConversationID == selection.ConversationID {
		c.store.Append(message)
		c.conversations.RecordActivity(message.ConversationID, message.CreatedAt)
		return
	}

	if c.cache == nil {
		c.conversations.RecordActivity(message.ConversationID, message.CreatedAt)
		return
	}

	seen, err := c.cache.HasSeenID(message.MessageID)
	if err != nil {
		log.Printf("chat: seen-ID lookup failed for %q: %v", message.MessageID, err)
	}
	if seen {
		return
	}
	if err := c.cache.InsertSeenID(message.MessageID, time.Now().UnixMilli()); err != nil {
		log.Printf("chat: seen-ID insert failed for %q: %v", message.MessageID, err)
	}

	if err := c.cache.UpsertMessage(storage.Message{
		MessageID:      message.MessageID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Body:           c.decrypt(message.Ciphertext, message.IV),
		Status:         message.Status,
		DeliveredAt:    message.DeliveredAt,
		ReadAt:         message.ReadAt,
		CreatedAt:      message.CreatedAt,
	}); err != nil {
		log.Printf("chat: cache write failed for message %q: %v", message.MessageID, err)
	}

	c.conversations.RecordActivity(message.ConversationID, message.CreatedAt)
}
