package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/core/logger"
	tg "github.com/m3rciful/coffeebot/core/telegram"
	"github.com/m3rciful/coffeebot/core/telegram/middleware"
)

// CommandRouteOptions configures admin gating for commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares one route per registered command.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		name, h := name, def.Handler
		wrapped := func(c tele.Context) error {
			return handleWithSummary(c, normalizeHandlerName(name), func() error { return h(c) })
		}
		if def.AdminOnly {
			wrapped = admin(wrapped)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: wrapped})
	}

	logger.TWire.Info("",
		slog.String("event", "routes.commands"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}
