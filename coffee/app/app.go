// Package app assembles the coffee bot from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/coffee/handlers"
	"github.com/m3rciful/coffeebot/coffee/ordering"
	"github.com/m3rciful/coffeebot/coffee/payment"
	"github.com/m3rciful/coffeebot/coffee/storage"
	"github.com/m3rciful/coffeebot/coffee/transport"
	"github.com/m3rciful/coffeebot/core/bootstrap"
	corecmd "github.com/m3rciful/coffeebot/core/cmd"
	coredatabase "github.com/m3rciful/coffeebot/core/database"
	"github.com/m3rciful/coffeebot/core/health"
	"github.com/m3rciful/coffeebot/core/logger"
	coretelegram "github.com/m3rciful/coffeebot/core/telegram"
	tghelpers "github.com/m3rciful/coffeebot/core/telegram/helpers"
	"github.com/m3rciful/coffeebot/core/telegram/middleware"
	"github.com/m3rciful/coffeebot/core/telegram/router"
	"github.com/m3rciful/coffeebot/core/telegram/sender"
	"github.com/m3rciful/coffeebot/core/telegram/state"
)

const textSlowDown = "Слишком часто. Подождите секунду."

// App owns the bot's long-lived dependencies.
type App struct {
	cfg *Config
	db  *sqlx.DB

	bot        *tele.Bot
	dispatcher *sender.Dispatcher
	registry   *coretelegram.Registry
	metrics    *middleware.Metrics
	sessions   *state.Manager[ordering.Step]
	health     *health.Server
}

var _ corecmd.TelegramApp = (*App)(nil)

// Options overrides pieces of Bootstrap for tests and one-shot commands.
type Options struct {
	Bootstrap bootstrap.Options
	// OfflineBot skips the getMe call when the bot is built.
	OfflineBot bool
}

// Bootstrap initialises logging, the database and every service.
func Bootstrap(cfg *Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	bopts := opts.Bootstrap
	bopts.Config = cfg.CoreConfig()
	bopts.Database = cfg.Database
	if bopts.Migrations == nil {
		bopts.Migrations = storage.Migrations
	}
	res, err := bootstrap.Run(bopts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB, registry: coretelegram.NewRegistry(), metrics: &middleware.Metrics{}}
	if err := a.wire(opts.OfflineBot); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(offline bool) error {
	bot, err := coretelegram.NewBot(a.cfg.CoreConfig(), offline)
	if err != nil {
		return err
	}
	a.bot = bot
	// Deletes are best-effort UI cleanup and are not retried.
	a.dispatcher = sender.NewDispatcher(sender.Options{MaxRetries: 0})

	store := storage.New(a.db)
	msg := transport.New(bot, a.dispatcher)
	ui := chatui.NewRegistry(msg)
	locks := state.NewKeyedMutex()
	a.sessions = state.NewManager[ordering.Step](locks)
	pay := payment.NewHandshake(locks, ui, msg, a.cfg.Shop.PickupLocation)

	orders := ordering.NewService(ordering.Deps{
		Sessions:  a.sessions,
		Store:     ordering.SQLStore(store),
		UI:        ui,
		Messenger: msg,
		Catalog:   a.cfg.Menu(),
		Payments:  pay,
		Config: ordering.Config{
			AdminChatID:    a.cfg.Shop.AdminChatID,
			PaymentAccount: a.cfg.Shop.PaymentAccount,
		},
	})
	h := handlers.New(handlers.Deps{
		Orders:    orders,
		Payments:  pay,
		History:   store,
		Messenger: msg,
		AdminID:   a.cfg.Telegram.AdminID,
	})
	if err := h.Register(a.registry); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}

	if listen := a.cfg.Health.Listen; listen != "" {
		hs := health.NewServer(listen)
		hs.AddCheck("database", store.Ping)
		hs.AddStats("updates", func() any { return a.metrics.Snapshot() })
		hs.AddStats("sender", func() any {
			return map[string]uint64{"done": a.dispatcher.DoneCount(), "errors": a.dispatcher.ErrorCount()}
		})
		a.health = hs
	}
	return nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.sessions, a.registry, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      core,
		Bot:         a.bot,
		Registry:    a.registry,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.metrics, onLimited),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.Info(ctx, "app", "wired",
				slog.Int("callbacks", len(rt.Registry.CallbackKeys())),
				slog.Int("drinks", len(a.cfg.Menu().Drinks())),
				slog.Int64("admin_chat_id", a.cfg.Shop.AdminChatID),
			)
			return nil
		},
	}, nil
}

// HealthServer implements cmd.TelegramApp.
func (a *App) HealthServer() *health.Server { return a.health }

// Migrate initialises logging and applies the schema without starting the bot.
func Migrate(cfg *Config) error {
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return err
	}
	return coredatabase.RunMigrations(cfg.Database, storage.Migrations)
}

// Close stops the outbound dispatcher and releases the database pool.
func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Notify(c, textSlowDown)
	}
	return tghelpers.SendText(c, textSlowDown)
}
