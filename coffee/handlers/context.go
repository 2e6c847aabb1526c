package handlers

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/coffee/ordering"
)

func actor(c tele.Context) (ordering.Actor, bool) {
	user, chat := c.Sender(), c.Chat()
	if user == nil {
		return ordering.Actor{}, false
	}
	a := ordering.Actor{UserID: user.ID, ChatID: user.ID}
	if chat != nil {
		a.ChatID = chat.ID
	}
	return a, true
}

// origin is the message carrying the tapped button.
func origin(c tele.Context) chatui.Handle {
	cb := c.Callback()
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return chatui.Handle{}
	}
	return chatui.Handle{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID}
}
