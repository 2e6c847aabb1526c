// Package handlers binds Telegram updates to the ordering conversation and
// the payment handshake.
package handlers

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/coffee/ordering"
	"github.com/m3rciful/coffeebot/coffee/storage"
	"github.com/m3rciful/coffeebot/core/logger"
	tg "github.com/m3rciful/coffeebot/core/telegram"
	"github.com/m3rciful/coffeebot/core/telegram/callbacks"
	"github.com/m3rciful/coffeebot/core/telegram/commands"
	tghelpers "github.com/m3rciful/coffeebot/core/telegram/helpers"
	"github.com/m3rciful/coffeebot/core/telegram/middleware"
	"github.com/m3rciful/coffeebot/core/telegram/ui"
)

const historyLimit = 5

// History lists a customer's past orders.
type History interface {
	ListOrders(ctx context.Context, userID int64, limit int) ([]storage.Order, error)
}

// Confirmer approves a customer's payment.
type Confirmer interface {
	Confirm(ctx context.Context, userID int64) error
}

// Deps wires Handlers.
type Deps struct {
	Orders    *ordering.Service
	Payments  Confirmer
	History   History
	Messenger chatui.Messenger
	// AdminID may press the payment approval button; 0 lets anyone.
	AdminID int64
}

// Handlers holds the bot's update handlers.
type Handlers struct {
	orders   *ordering.Service
	payments Confirmer
	history  History
	msg      chatui.Messenger
	admin    middleware.AdminOptions
}

var _ ui.FallbackProvider = (*Handlers)(nil)

// New builds Handlers.
func New(d Deps) *Handlers {
	h := &Handlers{
		orders:   d.Orders,
		payments: d.Payments,
		history:  d.History,
		msg:      d.Messenger,
	}
	h.admin = middleware.AdminOptions{AdminID: d.AdminID, OnReject: h.rejectAdmin}
	return h
}

// Register adds commands, callbacks, fallbacks and the name step handler.
func (h *Handlers) Register(reg *tg.Registry) error {
	sessions := h.orders.Sessions()
	cmds := map[string]commands.Command{
		"/start":   {Handler: h.start, Description: "Сделать заказ"},
		"/history": {Handler: h.showHistory, Description: "Мои последние заказы"},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		ordering.CallbackDrink:          middleware.State(sessions, ordering.StepAwaitingDrink)(h.selectDrink),
		ordering.CallbackSugar:          middleware.State(sessions, ordering.StepAwaitingSugar)(h.selectSugar),
		ordering.CallbackConfirmPayment: middleware.AdminOnlyMiddleware(h.admin)(h.confirmPayment),
	}
	for key, handler := range cbs {
		if err := reg.RegisterCallback(key, handler); err != nil {
			return err
		}
	}

	sessions.Handle(ordering.StepAwaitingName, h.submitName)
	reg.SetCallbackNotFound(h.UnknownCallback())
	reg.SetTextFallback(h.UnknownText())
	return nil
}

// UnknownText answers text outside any conversation.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		a, ok := actor(c)
		if !ok {
			return nil
		}
		_, err := h.msg.Send(tghelpers.BuildContext(c), a.ChatID, textUnknown, nil)
		return err
	}
}

// UnknownCallback answers taps on buttons nothing handles.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Notify(c, textStaleButton)
	}
}

func (h *Handlers) start(c tele.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	return h.orders.Start(tghelpers.BuildContext(c), a)
}

func (h *Handlers) selectDrink(c tele.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	return h.orders.SelectDrink(tghelpers.BuildContext(c), a, callbacks.CallbackPayload(c), origin(c))
}

func (h *Handlers) selectSugar(c tele.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	n, err := callbacks.PayloadInt(c)
	if err != nil {
		logger.LogEvent(ctx, logger.Order, slog.LevelWarn, "order.ignored",
			slog.String("reason", "bad_payload"), slog.String("error", err.Error()))
		return tghelpers.Notify(c, textBadChoice)
	}
	err = h.orders.SelectSugar(ctx, a, n, origin(c))
	if errors.Is(err, ordering.ErrInvalidSugar) {
		logger.LogEvent(ctx, logger.Order, slog.LevelWarn, "order.ignored",
			slog.String("reason", "invalid_sugar"), slog.Int("sugar", n))
		return tghelpers.Notify(c, textBadChoice)
	}
	return err
}

func (h *Handlers) submitName(c tele.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	return h.orders.SubmitName(tghelpers.BuildContext(c), a, c.Text())
}

func (h *Handlers) confirmPayment(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	customer, err := callbacks.PayloadInt64(c)
	if err != nil || customer == 0 {
		logger.LogEvent(ctx, logger.Pay, slog.LevelWarn, "payment.confirm",
			slog.String("status", "skip"), slog.String("reason", "bad_payload"))
		return tghelpers.Notify(c, textBadChoice)
	}
	if err := h.payments.Confirm(ctx, customer); err != nil {
		_ = tghelpers.Notify(c, textConfirmFailed)
		return err
	}
	_ = tghelpers.Notify(c, textConfirmed)

	// Dropping the keyboard keeps a second press from re-sending the confirmation.
	if src := origin(c); !src.IsZero() {
		if err := h.msg.Edit(ctx, src, approvedText(c.Callback().Message.Text)); err != nil {
			logger.LogEvent(ctx, logger.Pay, slog.LevelWarn, "admin.edit",
				slog.String("status", "fail"), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (h *Handlers) showHistory(c tele.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	orders, err := h.history.ListOrders(ctx, a.UserID, historyLimit)
	if err != nil {
		_, _ = h.msg.Send(ctx, a.ChatID, textHistoryFailed, nil)
		return err
	}
	_, err = h.msg.Send(ctx, a.ChatID, historyText(orders), nil)
	return err
}

func (h *Handlers) rejectAdmin(c tele.Context) error {
	return tghelpers.Notify(c, textNotAdmin)
}
