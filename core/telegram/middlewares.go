package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/coffeebot/core/config"
	"github.com/m3rciful/coffeebot/core/telegram/middleware"
)

// DefaultMiddlewares builds the global middleware chain: recover, rate limit
// (when configured), logging and metrics. metrics may be nil.
func DefaultMiddlewares(cfg *coreconfig.Config, metrics *middleware.Metrics, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware(metrics)},
	}
	if cfg != nil {
		if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: onLimited,
				}),
			})
		}
	}
	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	if metrics != nil {
		mws = append(mws, Middleware{Name: "metrics", Use: metrics.Middleware})
	}
	return mws
}
