// Package payment confirms orders on the admin's approval.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/core/logger"
	"github.com/m3rciful/coffeebot/core/telegram/state"
)

const textConfirmed = "Оплата подтверждена, ваш напиток будет готов через пару минут. Подходите в %s"

// Handshake turns an admin approval into a confirmation for the customer.
// It keeps no state of its own; pending messages live in the chatui registry.
type Handshake struct {
	locks  *state.KeyedMutex
	ui     *chatui.Registry
	msg    chatui.Messenger
	pickup string
}

// NewHandshake builds a Handshake. locks must be the table the ordering
// sessions use so a confirmation never interleaves with a transition.
func NewHandshake(locks *state.KeyedMutex, ui *chatui.Registry, msg chatui.Messenger, pickup string) *Handshake {
	if locks == nil {
		locks = state.NewKeyedMutex()
	}
	return &Handshake{locks: locks, ui: ui, msg: msg, pickup: pickup}
}

// Confirm retires the user's payment instruction and sends the confirmation.
// It is not idempotent: every call sends a new confirmation.
func (h *Handshake) Confirm(ctx context.Context, userID int64) error {
	unlock := h.locks.Lock(userID)
	defer unlock()

	_, pending := h.ui.PaymentInstruction(userID)
	h.ui.RetirePaymentInstruction(ctx, userID)

	sent, err := h.msg.Send(ctx, userID, fmt.Sprintf(textConfirmed, h.pickup), nil)
	if err != nil {
		logger.LogEvent(ctx, logger.Pay, slog.LevelError, "payment.confirm",
			slog.String("status", "fail"),
			slog.Int64("customer_id", userID),
			slog.String("error", err.Error()),
		)
		return errors.Wrapf(err, "send payment confirmation to %d", userID)
	}
	h.ui.SetPaymentConfirmed(ctx, userID, sent)
	logger.LogEvent(ctx, logger.Pay, slog.LevelInfo, "payment.confirm",
		slog.String("status", "ok"),
		slog.Int64("customer_id", userID),
		slog.Bool("had_instruction", pending),
	)
	return nil
}

// OnNewOrderStarted retires a confirmation left from the previous order.
// The caller holds the user's lock.
func (h *Handshake) OnNewOrderStarted(ctx context.Context, userID int64) {
	if _, ok := h.ui.PaymentConfirmed(userID); !ok {
		return
	}
	h.ui.RetirePaymentConfirmed(ctx, userID)
	logger.LogEvent(ctx, logger.Pay, slog.LevelDebug, "payment.banner_retired", slog.Int64("customer_id", userID))
}
