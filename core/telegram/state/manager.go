package state

import (
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/core/logger"
	tghelpers "github.com/m3rciful/coffeebot/core/telegram/helpers"
)

// Manager stores one session step per user and serializes work per user.
// Get/Set/Clear are safe on their own; callers that read-modify-write a
// session hold Lock for the whole transition.
type Manager[S Step] struct {
	locks *KeyedMutex

	mu       sync.RWMutex
	sessions map[int64]S
	handlers map[State]tele.HandlerFunc
}

// NewManager builds a Manager sharing the provided lock table; nil allocates a private one.
func NewManager[S Step](locks *KeyedMutex) *Manager[S] {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Manager[S]{
		locks:    locks,
		sessions: make(map[int64]S),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Lock acquires the user's lock.
func (m *Manager[S]) Lock(userID int64) func() {
	return m.locks.Lock(userID)
}

// Get returns the user's current step.
func (m *Manager[S]) Get(userID int64) (S, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Set replaces the user's step.
func (m *Manager[S]) Set(userID int64, step S) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = step
}

// Clear discards the user's session.
func (m *Manager[S]) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// GetState returns the FSM state name, or StateIdle when no session exists.
func (m *Manager[S]) GetState(userID int64) State {
	if s, ok := m.Get(userID); ok {
		return s.State()
	}
	return StateIdle
}

// InProgress reports whether the user's current state has a registered text handler.
func (m *Manager[S]) InProgress(userID int64) bool {
	st := m.GetState(userID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.handlers[st]
	return ok
}

// Handle registers the handler invoked by ManagerHandler while a user is in st.
func (m *Manager[S]) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// ManagerHandler executes the handler registered for the user's current state, if any.
func (m *Manager[S]) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)
	ctx := tghelpers.BuildContext(c)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()

	status := "ok"
	if !ok {
		status = "skip"
	}
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", status),
		slog.Int64("user_id", userID),
		slog.String("step", string(current)),
	)
	if !ok {
		return nil
	}
	return handler(c)
}
