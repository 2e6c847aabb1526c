package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Начать заказ"}))
	require.NoError(t, reg.RegisterCommand("/history", commands.Command{Handler: noop, Description: "История заказов"}))
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "stats", AdminOnly: true}))

	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop}))
	assert.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop}))
	assert.Error(t, reg.RegisterCommand("/nil", commands.Command{}))

	menu := reg.MenuCommands()
	require.Len(t, menu, 2)
	assert.Equal(t, "history", menu[0].Text)
	assert.Equal(t, "start", menu[1].Text)
	assert.Len(t, reg.Commands(), 3)
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("sugar", noop))
	require.NoError(t, reg.RegisterCallback("drink", noop))
	assert.Error(t, reg.RegisterCallback("drink", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.Callback("sugar")
	assert.True(t, ok)
	_, ok = reg.Callback("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"drink", "sugar"}, reg.CallbackKeys())
}
