package middleware

import (
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Metrics counts handled updates. A zero value is ready to use.
type Metrics struct {
	updates   atomic.Uint64
	callbacks atomic.Uint64
	messages  atomic.Uint64
	failures  atomic.Uint64
	panics    atomic.Uint64
	lastNanos atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Updates    uint64    `json:"updates"`
	Callbacks  uint64    `json:"callbacks"`
	Messages   uint64    `json:"messages"`
	Failures   uint64    `json:"failures"`
	Panics     uint64    `json:"panics"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

// Middleware counts each update and whether its handler returned an error.
func (m *Metrics) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		m.updates.Add(1)
		m.lastNanos.Store(time.Now().UnixNano())
		switch updateKind(c.Update()) {
		case "callback":
			m.callbacks.Add(1)
		case "message":
			m.messages.Add(1)
		}
		err := next(c)
		if err != nil {
			m.failures.Add(1)
		}
		return err
	}
}

func (m *Metrics) panicked() { m.panics.Add(1) }

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Updates:   m.updates.Load(),
		Callbacks: m.callbacks.Load(),
		Messages:  m.messages.Load(),
		Failures:  m.failures.Load(),
		Panics:    m.panics.Load(),
	}
	if n := m.lastNanos.Load(); n > 0 {
		s.LastUpdate = time.Unix(0, n).UTC()
	}
	return s
}
