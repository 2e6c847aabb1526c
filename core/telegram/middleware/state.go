package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/core/logger"
	tghelpers "github.com/m3rciful/coffeebot/core/telegram/helpers"
	"github.com/m3rciful/coffeebot/core/telegram/state"
)

// StateGetter is the minimal interface required from a session manager.
type StateGetter interface {
	GetState(userID int64) state.State
}

// State lets the update through only when the sender's session is in expected.
// Other updates are dropped silently.
func State(mgr StateGetter, expected state.State) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return nil
			}
			current := mgr.GetState(user.ID)
			event := "fsm.skip"
			if current == expected {
				event = "fsm.match"
			}
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelDebug, event,
				slog.String("step", string(current)),
				slog.String("expected", string(expected)),
			)
			if current != expected {
				return nil
			}
			return next(c)
		}
	}
}
