// Package transport implements chatui.Messenger on top of telebot.
package transport

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/core/logger"
	"github.com/m3rciful/coffeebot/core/telegram/netutil"
	"github.com/m3rciful/coffeebot/core/telegram/sender"
)

// API is the part of *tele.Bot the messenger calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Messenger sends and edits synchronously since callers need the resulting
// handle. Deletes go through the dispatcher when one is set.
type Messenger struct {
	api  API
	disp *sender.Dispatcher
}

var _ chatui.Messenger = (*Messenger)(nil)

// New returns a Messenger; disp may be nil.
func New(api API, disp *sender.Dispatcher) *Messenger {
	return &Messenger{api: api, disp: disp}
}

// Send delivers text to chatID with optional inline markup.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (chatui.Handle, error) {
	opts := []interface{}{}
	if markup != nil {
		opts = append(opts, markup)
	}
	msg, err := m.api.Send(tele.ChatID(chatID), text, opts...)
	if err != nil {
		m.logFail(ctx, "send", chatID, err)
		return chatui.Handle{}, err
	}
	h := chatui.Handle{ChatID: chatID, MessageID: msg.ID}
	if msg.Chat != nil {
		h.ChatID = msg.Chat.ID
	}
	return h, nil
}

// Edit replaces the text of h. Any inline keyboard on h is removed.
func (m *Messenger) Edit(ctx context.Context, h chatui.Handle, text string) error {
	if _, err := m.api.Edit(h, text); err != nil {
		m.logFail(ctx, "edit", h.ChatID, err)
		return err
	}
	return nil
}

// Delete removes h. With a dispatcher the call returns once the job is queued
// and failures are only logged.
func (m *Messenger) Delete(ctx context.Context, h chatui.Handle) error {
	if h.IsZero() {
		return nil
	}
	run := func(context.Context) error { return m.api.Delete(h) }
	if m.disp != nil {
		err := m.disp.Enqueue(ctx, sender.Job{Action: "delete", ChatID: h.ChatID, Run: run})
		if err == nil {
			return nil
		}
		if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
			return err
		}
	}
	if err := run(ctx); err != nil {
		m.logFail(ctx, "delete", h.ChatID, err)
		return err
	}
	return nil
}

func (m *Messenger) logFail(ctx context.Context, action string, chatID int64, err error) {
	logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "message."+action,
		slog.String("status", "fail"),
		slog.Int64("target_chat_id", chatID),
		slog.String("error", netutil.Redact(err)),
		slog.String("error_kind", netutil.Kind(err)),
	)
}
