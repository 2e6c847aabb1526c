package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/core/logger"
	tghelpers "github.com/m3rciful/coffeebot/core/telegram/helpers"
)

// RecoverMiddleware turns handler panics into errors so the poller keeps running.
// metrics may be nil.
func RecoverMiddleware(metrics *Metrics) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if metrics != nil {
					metrics.panicked()
				}
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelError, "panic",
					slog.Any("error", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("handler panic: %v", r)
			}()
			return next(c)
		}
	}
}
