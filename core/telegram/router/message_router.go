package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/coffeebot/core/telegram"
)

// FSM is the part of a session manager the text route needs.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoutes routes plain text to the sender's active conversation step,
// falling back to the registry's text fallback and then opts.UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if user := c.Sender(); fsm != nil && user != nil && fsm.InProgress(user.ID) {
			return handleWithSummary(c, "fsm", func() error { return fsm.ManagerHandler(c) })
		}
		fallback := opts.UnknownText
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				fallback = fb
			}
		}
		if fallback == nil {
			return nil
		}
		return handleWithSummary(c, "fallback", func() error { return fallback(c) })
	}
	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}
