// Package socket owns the push-channel connection for one authenticated
// session: exactly one live websocket, inbound event routing, outbound
// intents, and transport-level reconnect with re-registration.
package socket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oldschool-messanger/models"
)

var defaultReconnectBackoff = []time.Duration{
	0,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

// Handlers receives inbound server events. The session routes every event
// it understands; relevance filtering (selected conversation, expected
// participant) is the consumer's concern. Self-originated typing events
// are dropped here and never reach the handlers. A nil handler means the
// event class is ignored.
type Handlers struct {
	OnNewMessage     func(models.Message)
	OnStatusUpdate   func(StatusUpdate)
	OnPresenceUpdate func(PresenceUpdate)
	OnTyping         func(TypingEvent)
	OnStopTyping     func(TypingEvent)

	// OnConnect fires after each successful (re)connect and registration.
	OnConnect func()
	// OnDisconnect fires when a live connection is lost. The session keeps
	// reconnecting; the error is informational.
	OnDisconnect func(error)
}

// Options configures a Session.
type Options struct {
	URL     string
	Session models.SessionContext

	Handlers Handlers

	ReconnectBackoff []time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Session is the single push-channel connection for one authenticated
// session. Connection loss is non-fatal: the session degrades to "no live
// updates" and keeps reconnecting until Close.
type Session struct {
	options Options

	connMu sync.RWMutex
	conn   *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewSession validates options and builds a Session. Start begins the
// connection lifecycle.
func NewSession(options Options) (*Session, error) {
	if options.URL == "" {
		return nil, errors.New("socket URL is required")
	}
	if options.Session.UserID == "" {
		return nil, errors.New("session user ID is required")
	}
	if len(options.ReconnectBackoff) == 0 {
		options.ReconnectBackoff = append([]time.Duration(nil), defaultReconnectBackoff...)
	}
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}

	return &Session{
		options: options,
		closed:  make(chan struct{}),
	}, nil
}

// Start launches the connect/read/reconnect loop.
func (s *Session) Start() {
	s.wg.Add(1)
	go s.run()
}

// Close tears down the connection and stops reconnecting.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.connMu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()
	})
	s.wg.Wait()
}

// Connected reports whether a live connection currently exists.
func (s *Session) Connected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn != nil
}

// JoinConversation subscribes this session to a conversation's events.
func (s *Session) JoinConversation(conversationID string) error {
	return s.emit(IntentJoinConversation, JoinConversation{ConversationID: conversationID})
}

// ConversationRead reports that the local user has read a conversation.
func (s *Session) ConversationRead(conversationID string) error {
	return s.emit(IntentConversationRead, ConversationRead{
		ConversationID: conversationID,
		UserID:         s.options.Session.UserID,
	})
}

// Typing reports that the local user started composing.
func (s *Session) Typing(conversationID string) error {
	return s.emit(EventTyping, TypingEvent{
		ConversationID: conversationID,
		UserID:         s.options.Session.UserID,
	})
}

// StopTyping reports that the local user's composer went empty.
func (s *Session) StopTyping(conversationID string) error {
	return s.emit(EventStopTyping, TypingEvent{
		ConversationID: conversationID,
		UserID:         s.options.Session.UserID,
	})
}

func (s *Session) emit(event string, data any) error {
	payload, err := EncodeEvent(event, data)
	if err != nil {
		return err
	}

	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	return nil
}

func (s *Session) run() {
	defer s.wg.Done()

	attempt := 0
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		delay := s.backoffForAttempt(attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-s.closed:
				timer.Stop()
				return
			}
		}

		conn, err := s.dial()
		if err != nil {
			log.Printf("socket: connect failed (attempt %d): %v", attempt+1, err)
			attempt++
			continue
		}

		// The server cannot route events to an unregistered connection, so
		// registration is re-announced on every reconnect.
		if err := s.register(conn); err != nil {
			log.Printf("socket: register failed: %v", err)
			_ = conn.Close()
			attempt++
			continue
		}

		s.connMu.Lock()
		s.conn = conn
		s.connMu.Unlock()
		attempt = 0

		if s.options.Handlers.OnConnect != nil {
			s.options.Handlers.OnConnect()
		}

		readErr := s.readLoop(conn)

		s.connMu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.connMu.Unlock()
		_ = conn.Close()

		select {
		case <-s.closed:
			return
		default:
		}

		log.Printf("socket: connection lost: %v", readErr)
		if s.options.Handlers.OnDisconnect != nil {
			s.options.Handlers.OnDisconnect(readErr)
		}
		attempt = 1
	}
}

func (s *Session) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.options.HandshakeTimeout}
	header := http.Header{}
	if token := s.options.Session.Token; token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.Dial(s.options.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Session) register(conn *websocket.Conn) error {
	payload, err := EncodeEvent(IntentRegisterUser, RegisterUser{UserID: s.options.Session.UserID})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		envelope, err := DecodeEnvelope(payload)
		if err != nil {
			log.Printf("socket: dropping undecodable frame: %v", err)
			continue
		}

		s.route(envelope)
	}
}

func (s *Session) route(envelope Envelope) {
	handlers := s.options.Handlers

	switch envelope.Event {
	case EventNewMessage:
		var message models.Message
		if err := json.Unmarshal(envelope.Data, &message); err != nil {
			log.Printf("socket: bad newMessage payload: %v", err)
			return
		}
		if handlers.OnNewMessage != nil {
			handlers.OnNewMessage(message)
		}

	case EventMessageStatusUpdate:
		var update StatusUpdate
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			log.Printf("socket: bad messageStatusUpdate payload: %v", err)
			return
		}
		if handlers.OnStatusUpdate != nil {
			handlers.OnStatusUpdate(update)
		}

	case EventPresenceUpdate:
		var update PresenceUpdate
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			log.Printf("socket: bad presenceUpdate payload: %v", err)
			return
		}
		if handlers.OnPresenceUpdate != nil {
			handlers.OnPresenceUpdate(update)
		}

	case EventTyping, EventStopTyping:
		var event TypingEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			log.Printf("socket: bad %s payload: %v", envelope.Event, err)
			return
		}
		if event.UserID == s.options.Session.UserID {
			return
		}
		if envelope.Event == EventTyping {
			if handlers.OnTyping != nil {
				handlers.OnTyping(event)
			}
		} else if handlers.OnStopTyping != nil {
			handlers.OnStopTyping(event)
		}

	default:
		log.Printf("socket: ignoring unknown event %q", envelope.Event)
	}
}

func (s *Session) backoffForAttempt(attempt int) time.Duration {
	backoff := s.options.ReconnectBackoff
	if len(backoff) == 0 {
		return 0
	}
	if attempt < len(backoff) {
		return backoff[attempt]
	}
	return backoff[len(backoff)-1]
}
