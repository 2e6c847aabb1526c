// Package chatuitest provides an in-memory chatui.Messenger for tests.
package chatuitest

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/chatui"
)

// Sent is one message delivered through Messenger.
type Sent struct {
	Handle chatui.Handle
	Text   string
	Markup *tele.ReplyMarkup
}

// Messenger records every call. Message ids increase from 1 across all chats.
type Messenger struct {
	mu      sync.Mutex
	next    int
	sent    []Sent
	edits   map[chatui.Handle]string
	deleted []chatui.Handle

	// DeleteErr, when set, is returned by every Delete after recording it.
	DeleteErr error
	// SendErr, when set, fails every Send.
	SendErr error
}

// New returns an empty Messenger.
func New() *Messenger {
	return &Messenger{edits: make(map[chatui.Handle]string)}
}

// Send implements chatui.Messenger.
func (m *Messenger) Send(_ context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (chatui.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return chatui.Handle{}, m.SendErr
	}
	m.next++
	h := chatui.Handle{ChatID: chatID, MessageID: m.next}
	m.sent = append(m.sent, Sent{Handle: h, Text: text, Markup: markup})
	return h, nil
}

// Edit implements chatui.Messenger.
func (m *Messenger) Edit(_ context.Context, h chatui.Handle, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.IsZero() {
		return errors.New("edit: empty handle")
	}
	m.edits[h] = text
	return nil
}

// Delete implements chatui.Messenger.
func (m *Messenger) Delete(_ context.Context, h chatui.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, h)
	return m.DeleteErr
}

// Sent returns the messages sent to chatID, or to every chat when chatID is 0.
func (m *Messenger) Sent(chatID int64) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.sent {
		if chatID == 0 || s.Handle.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the latest message sent to chatID.
func (m *Messenger) Last(chatID int64) (Sent, bool) {
	sent := m.Sent(chatID)
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// Edited returns the text h was edited to.
func (m *Messenger) Edited(h chatui.Handle) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.edits[h]
	return text, ok
}

// Deleted returns every handle passed to Delete, in call order.
func (m *Messenger) Deleted() []chatui.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chatui.Handle(nil), m.deleted...)
}

// WasDeleted reports whether Delete was called for h.
func (m *Messenger) WasDeleted(h chatui.Handle) bool {
	for _, d := range m.Deleted() {
		if d == h {
			return true
		}
	}
	return false
}
