// Package chatui tracks which bot messages are live for each user and
// retires them as a conversation advances.
package chatui

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// Handle identifies a sent message. It satisfies tele.Editable.
type Handle struct {
	ChatID    int64
	MessageID int
}

// MessageSig implements tele.Editable.
func (h Handle) MessageSig() (string, int64) {
	return strconv.Itoa(h.MessageID), h.ChatID
}

// IsZero reports whether h refers to no message.
func (h Handle) IsZero() bool { return h.MessageID == 0 }

// Deleter removes a message from the chat.
type Deleter interface {
	Delete(ctx context.Context, h Handle) error
}

// Messenger is the outbound transport used by the conversation.
type Messenger interface {
	Deleter
	Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (Handle, error)
	Edit(ctx context.Context, h Handle, text string) error
}
