package chatui

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/coffeebot/core/logger"
)

// Kind classifies the live message.
type Kind int

const (
	// KindGeneral messages are replaced by the next prompt.
	KindGeneral Kind = iota
	// KindOrder marks an order summary that survives the next keep-order replacement.
	KindOrder
)

func (k Kind) String() string {
	if k == KindOrder {
		return "order"
	}
	return "general"
}

type liveMessage struct {
	handle Handle
	kind   Kind
}

// Registry owns the per-user live, payment-instruction and payment-confirmed
// messages. Map updates are atomic; deletes run after the lock is released
// and their failures are logged, never returned.
type Registry struct {
	del Deleter

	mu          sync.Mutex
	live        map[int64]liveMessage
	instruction map[int64]Handle
	confirmed   map[int64]Handle
}

// NewRegistry creates an empty registry deleting messages through del.
func NewRegistry(del Deleter) *Registry {
	return &Registry{
		del:         del,
		live:        make(map[int64]liveMessage),
		instruction: make(map[int64]Handle),
		confirmed:   make(map[int64]Handle),
	}
}

// RecordAndRetire makes h the user's live message and deletes the previous
// one, unless keepOrder is set and the previous one is an order summary.
func (r *Registry) RecordAndRetire(ctx context.Context, userID int64, h Handle, keepOrder bool) {
	r.mu.Lock()
	prev, had := r.live[userID]
	r.live[userID] = liveMessage{handle: h, kind: KindGeneral}
	r.mu.Unlock()

	if !had || prev.handle == h {
		return
	}
	if keepOrder && prev.kind == KindOrder {
		logger.LogEvent(ctx, logger.UI, slog.LevelDebug, "live.keep",
			slog.Int("message_id", prev.handle.MessageID))
		return
	}
	r.delete(ctx, "live", prev.handle)
}

// MarkOrder records h as the user's live message of kind order.
func (r *Registry) MarkOrder(userID int64, h Handle) {
	r.mu.Lock()
	r.live[userID] = liveMessage{handle: h, kind: KindOrder}
	r.mu.Unlock()
}

// Live returns the user's live message.
func (r *Registry) Live(userID int64) (Handle, Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.live[userID]
	return m.handle, m.kind, ok
}

// SetPaymentInstruction records the payment instruction sent to the user.
// A still pending older instruction is deleted.
func (r *Registry) SetPaymentInstruction(ctx context.Context, userID int64, h Handle) {
	r.swap(ctx, r.instruction, "instruction", userID, h)
}

// RetirePaymentInstruction deletes the user's payment instruction if any.
func (r *Registry) RetirePaymentInstruction(ctx context.Context, userID int64) {
	r.retire(ctx, r.instruction, "instruction", userID)
}

// PaymentInstruction returns the pending payment instruction.
func (r *Registry) PaymentInstruction(userID int64) (Handle, bool) {
	return r.lookup(r.instruction, userID)
}

// SetPaymentConfirmed records the payment confirmation sent to the user.
func (r *Registry) SetPaymentConfirmed(ctx context.Context, userID int64, h Handle) {
	r.swap(ctx, r.confirmed, "confirmed", userID, h)
}

// RetirePaymentConfirmed deletes the user's payment confirmation if any.
func (r *Registry) RetirePaymentConfirmed(ctx context.Context, userID int64) {
	r.retire(ctx, r.confirmed, "confirmed", userID)
}

// PaymentConfirmed returns the recorded payment confirmation.
func (r *Registry) PaymentConfirmed(userID int64) (Handle, bool) {
	return r.lookup(r.confirmed, userID)
}

func (r *Registry) swap(ctx context.Context, m map[int64]Handle, kind string, userID int64, h Handle) {
	r.mu.Lock()
	prev, had := m[userID]
	m[userID] = h
	r.mu.Unlock()
	if had && prev != h {
		r.delete(ctx, kind, prev)
	}
}

func (r *Registry) retire(ctx context.Context, m map[int64]Handle, kind string, userID int64) {
	r.mu.Lock()
	h, ok := m[userID]
	delete(m, userID)
	r.mu.Unlock()
	if ok {
		r.delete(ctx, kind, h)
	}
}

func (r *Registry) lookup(m map[int64]Handle, userID int64) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := m[userID]
	return h, ok
}

func (r *Registry) delete(ctx context.Context, kind string, h Handle) {
	if r.del == nil || h.IsZero() {
		return
	}
	if err := r.del.Delete(ctx, h); err != nil {
		logger.LogEvent(ctx, logger.UI, slog.LevelWarn, "message.delete",
			slog.String("status", "fail"),
			slog.String("kind", kind),
			slog.Int("message_id", h.MessageID),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.UI, slog.LevelDebug, "message.delete",
		slog.String("status", "ok"),
		slog.String("kind", kind),
		slog.Int("message_id", h.MessageID),
	)
}
