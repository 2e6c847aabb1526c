// Package ui declares presentation hooks shared by route builders.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when an update matches no command,
// no registered callback and no active conversation step.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
