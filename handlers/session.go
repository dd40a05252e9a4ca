package handlers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rental-chat/config"
	"rental-chat/engine"
	"rental-chat/store"
)

// GatewayFactory builds an NLU gateway bound to one session id.
type GatewayFactory func(sessionID string) engine.Gateway

// Session couples one conversation with its turn controller. It lives
// from creation until the client tears it down.
type Session struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	Conv       *store.Conversation
	Controller *engine.Controller
}

// SessionManager is the registry of live sessions.
type SessionManager struct {
	assistant *config.Assistant
	gateway   GatewayFactory
	action    engine.ActionHandler

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewSessionManager creates a session registry. The assistant profile and
// the action handler are shared across sessions; each session gets its
// own gateway from the factory.
func NewSessionManager(assistant *config.Assistant, gateway GatewayFactory, action engine.ActionHandler) *SessionManager {
	return &SessionManager{
		assistant: assistant,
		gateway:   gateway,
		action:    action,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Create starts a session: fresh conversation, greeting pre-appended,
// controller wired to a session-scoped gateway.
func (m *SessionManager) Create() (*Session, error) {
	id := uuid.New()
	conv := store.NewConversation()
	interp := &engine.Interpreter{
		Bot:         m.assistant.Bot,
		Catalog:     m.assistant.Catalog,
		Fallback:    m.assistant.Fallback,
		ReadyMarker: m.assistant.ReadyMarker,
	}
	disp := &engine.Dispatcher{Action: m.action}
	ctrl, err := engine.NewController(conv, m.gateway(id.String()), interp, disp,
		m.assistant.User, m.assistant.Greeting, m.assistant.QuickReplies)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		Conv:       conv,
		Controller: ctrl,
	}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get looks up a live session.
func (m *SessionManager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove tears a session down. In-flight NLU replies arriving afterwards
// are discarded by the closed conversation.
func (m *SessionManager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Controller.Close()
	}
	return ok
}
