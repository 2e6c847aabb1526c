// Package ordering implements the per-user order conversation:
// drink, sugar, name on the first order, then hand-off to payment.
package ordering

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/m3rciful/coffeebot/coffee/catalog"
	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/core/logger"
	"github.com/m3rciful/coffeebot/core/telegram/state"
)

var (
	// ErrInvalidSugar is returned for a spoon count outside catalog.SugarChoices().
	ErrInvalidSugar = errors.New("invalid sugar amount")
	// ErrUnexpectedStep reports a stored step of an unknown type.
	ErrUnexpectedStep = errors.New("unexpected session step")
)

const maxNameRunes = 64

// Store is the persistence the conversation needs.
type Store interface {
	InsertOrder(ctx context.Context, userID int64, name, drink string, sugar int) error
	IncrementOrderCount(ctx context.Context, userID int64) error
	GetUserInfo(ctx context.Context, userID int64) (*string, int, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	// WithinTx runs fn so that its writes commit together or not at all.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// PaymentHooks is notified when a user begins a new order. It runs with the
// user's lock already held.
type PaymentHooks interface {
	OnNewOrderStarted(ctx context.Context, userID int64)
}

// Actor identifies who sent an update and where replies go.
type Actor struct {
	UserID int64
	ChatID int64
}

// Config holds shop settings used by the conversation.
type Config struct {
	AdminChatID    int64
	PaymentAccount string
}

// Deps wires the Service.
type Deps struct {
	Sessions  *state.Manager[Step]
	Store     Store
	UI        *chatui.Registry
	Messenger chatui.Messenger
	Catalog   *catalog.Catalog
	Payments  PaymentHooks
	Config    Config
}

// Service runs order transitions. Every exported method holds the user's
// lock for the whole transition, I/O included.
type Service struct {
	sessions *state.Manager[Step]
	store    Store
	ui       *chatui.Registry
	msg      chatui.Messenger
	catalog  *catalog.Catalog
	payments PaymentHooks
	cfg      Config
}

type placedOrder struct {
	UserID int64
	Name   string
	Drink  string
	Sugar  int
	Price  int
}

// NewService builds a Service; a nil catalog falls back to catalog.Default.
func NewService(d Deps) *Service {
	if d.Sessions == nil {
		d.Sessions = state.NewManager[Step](nil)
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	return &Service{
		sessions: d.Sessions,
		store:    d.Store,
		ui:       d.UI,
		msg:      d.Messenger,
		catalog:  d.Catalog,
		payments: d.Payments,
		cfg:      d.Config,
	}
}

// Sessions exposes the session manager for routing.
func (s *Service) Sessions() *state.Manager[Step] { return s.sessions }

// Start begins a new order, discarding any abandoned one.
func (s *Service) Start(ctx context.Context, a Actor) error {
	unlock := s.sessions.Lock(a.UserID)
	defer unlock()

	if s.payments != nil {
		s.payments.OnNewOrderStarted(ctx, a.UserID)
	}
	h, err := s.msg.Send(ctx, a.ChatID, textMenu, menuMarkup(s.catalog))
	if err != nil {
		s.sessions.Clear(a.UserID)
		return errors.Wrap(err, "send menu")
	}
	s.ui.RecordAndRetire(ctx, a.UserID, h, false)
	s.sessions.Set(a.UserID, AwaitingDrink{})
	s.log(ctx, slog.LevelInfo, "order.start", slog.String("step", string(StepAwaitingDrink)))
	return nil
}

// SelectDrink handles a tap on the drink menu message origin.
func (s *Service) SelectDrink(ctx context.Context, a Actor, drink string, origin chatui.Handle) error {
	unlock := s.sessions.Lock(a.UserID)
	defer unlock()

	if _, ok := s.current(ctx, a.UserID, StepAwaitingDrink); !ok {
		return nil
	}
	drink = strings.TrimSpace(drink)
	if drink == "" {
		s.log(ctx, slog.LevelWarn, "order.ignored", slog.String("reason", "empty_drink"))
		return nil
	}

	if !origin.IsZero() {
		if err := s.msg.Edit(ctx, origin, textChosen(drink)); err != nil {
			s.log(ctx, slog.LevelWarn, "message.edit", slog.String("status", "fail"), slog.String("error", err.Error()))
		}
	}
	h, err := s.msg.Send(ctx, a.ChatID, textSugarPrompt, sugarMarkup())
	if err != nil {
		return s.fail(ctx, a, "send sugar prompt", err)
	}
	s.ui.RecordAndRetire(ctx, a.UserID, h, false)
	s.sessions.Set(a.UserID, AwaitingSugar{Drink: drink})
	s.log(ctx, slog.LevelInfo, "order.drink",
		slog.String("drink", drink),
		slog.Bool("on_menu", s.catalog.Has(drink)),
	)
	return nil
}

// SelectSugar handles a tap on the sugar prompt origin. Returning customers
// skip the name step and their order is placed immediately.
func (s *Service) SelectSugar(ctx context.Context, a Actor, sugar int, origin chatui.Handle) error {
	unlock := s.sessions.Lock(a.UserID)
	defer unlock()

	step, ok := s.current(ctx, a.UserID, StepAwaitingSugar)
	if !ok {
		return nil
	}
	if sugar < 0 || sugar > catalog.MaxSugar {
		return errors.Mark(errors.Newf("sugar %d out of range", sugar), ErrInvalidSugar)
	}
	sel, ok := step.(AwaitingSugar)
	if !ok {
		return s.fail(ctx, a, "select sugar", errors.Mark(errors.Newf("step %T", step), ErrUnexpectedStep))
	}
	s.log(ctx, slog.LevelInfo, "order.sugar", slog.String("drink", sel.Drink), slog.Int("sugar", sugar))

	// The live prompt is retired by the next RecordAndRetire; only a stale one is deleted here.
	if live, _, _ := s.ui.Live(a.UserID); !origin.IsZero() && origin != live {
		if err := s.msg.Delete(ctx, origin); err != nil {
			s.log(ctx, slog.LevelWarn, "message.delete", slog.String("status", "fail"), slog.String("error", err.Error()))
		}
	}

	exists, err := s.store.UserExists(ctx, a.UserID)
	if err != nil {
		return s.fail(ctx, a, "check user", err)
	}
	if !exists {
		h, err := s.msg.Send(ctx, a.ChatID, textAskName, nil)
		if err != nil {
			return s.fail(ctx, a, "send name prompt", err)
		}
		s.ui.RecordAndRetire(ctx, a.UserID, h, false)
		s.sessions.Set(a.UserID, AwaitingName{Drink: sel.Drink, Sugar: sugar})
		return nil
	}

	name, count, err := s.store.GetUserInfo(ctx, a.UserID)
	if err != nil {
		return s.fail(ctx, a, "get user info", err)
	}
	if name == nil {
		return s.fail(ctx, a, "get user info", errors.Newf("user %d exists without a name", a.UserID))
	}
	err = s.store.WithinTx(ctx, func(tx Store) error {
		if err := tx.IncrementOrderCount(ctx, a.UserID); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, a.UserID, *name, sel.Drink, sugar)
	})
	if err != nil {
		return s.fail(ctx, a, "place order", err)
	}
	s.log(ctx, slog.LevelDebug, "order.returning", slog.Int("order_count", count+1))
	return s.finish(ctx, a, placedOrder{UserID: a.UserID, Name: *name, Drink: sel.Drink, Sugar: sugar})
}

// SubmitName handles the free-text name of a first-time customer.
func (s *Service) SubmitName(ctx context.Context, a Actor, text string) error {
	unlock := s.sessions.Lock(a.UserID)
	defer unlock()

	step, ok := s.current(ctx, a.UserID, StepAwaitingName)
	if !ok {
		return nil
	}
	sel, ok := step.(AwaitingName)
	if !ok {
		return s.fail(ctx, a, "submit name", errors.Mark(errors.Newf("step %T", step), ErrUnexpectedStep))
	}

	name := normalizeName(text)
	if name == "" {
		h, err := s.msg.Send(ctx, a.ChatID, textAskName, nil)
		if err != nil {
			return s.fail(ctx, a, "send name prompt", err)
		}
		s.ui.RecordAndRetire(ctx, a.UserID, h, false)
		s.log(ctx, slog.LevelInfo, "order.ignored", slog.String("reason", "empty_name"))
		return nil
	}
	if err := s.store.InsertOrder(ctx, a.UserID, name, sel.Drink, sel.Sugar); err != nil {
		return s.fail(ctx, a, "insert order", err)
	}
	return s.finish(ctx, a, placedOrder{UserID: a.UserID, Name: name, Drink: sel.Drink, Sugar: sel.Sugar})
}

// finish runs the terminal effects for a persisted order. The session is
// discarded first; send failures are reported but do not undo the order.
func (s *Service) finish(ctx context.Context, a Actor, o placedOrder) error {
	s.sessions.Clear(a.UserID)
	o.Price = s.catalog.Price(o.Drink)

	var errs error
	summary, err := s.msg.Send(ctx, a.ChatID, textSummary(o.Drink, o.Sugar), nil)
	if err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "send summary"))
	} else {
		s.ui.RecordAndRetire(ctx, a.UserID, summary, false)
		s.ui.MarkOrder(a.UserID, summary)
	}

	if s.cfg.AdminChatID != 0 {
		if _, err := s.msg.Send(ctx, s.cfg.AdminChatID, textAdminOrder(o), confirmMarkup(o.UserID)); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "notify admin"))
		}
	} else {
		s.log(ctx, slog.LevelWarn, "admin.notify", slog.String("status", "skip"), slog.String("reason", "no_admin_chat"))
	}

	instruction, err := s.msg.Send(ctx, a.ChatID, textPayment(o.Price, s.cfg.PaymentAccount), nil)
	if err != nil {
		errs = errors.CombineErrors(errs, errors.Wrap(err, "send payment instruction"))
	} else {
		s.ui.SetPaymentInstruction(ctx, a.UserID, instruction)
		s.ui.RecordAndRetire(ctx, a.UserID, instruction, true)
	}

	level := slog.LevelInfo
	if errs != nil {
		level = slog.LevelWarn
	}
	s.log(ctx, level, "order.placed",
		slog.String("status", logger.Status(errs)),
		slog.String("drink", o.Drink),
		slog.Int("sugar", o.Sugar),
		slog.Int("price", o.Price),
	)
	return errs
}

// current returns the user's step when it is want; other events are ignored.
func (s *Service) current(ctx context.Context, userID int64, want state.State) (Step, bool) {
	step, ok := s.sessions.Get(userID)
	if ok && step.State() == want {
		return step, true
	}
	got := state.StateIdle
	if ok {
		got = step.State()
	}
	s.log(ctx, slog.LevelDebug, "order.ignored",
		slog.String("step", string(got)),
		slog.String("expected", string(want)),
	)
	return nil, false
}

// fail aborts the transition: the session is discarded and the user is told
// to start over. The returned error carries the cause.
func (s *Service) fail(ctx context.Context, a Actor, op string, cause error) error {
	s.sessions.Clear(a.UserID)
	err := errors.Wrap(cause, op)
	s.log(ctx, slog.LevelError, "order.abort", slog.String("status", "fail"), slog.String("error", err.Error()))
	if _, sendErr := s.msg.Send(ctx, a.ChatID, textFailure, nil); sendErr != nil {
		s.log(ctx, slog.LevelWarn, "message.send", slog.String("status", "fail"), slog.String("error", sendErr.Error()))
	}
	return err
}

func (s *Service) log(ctx context.Context, level slog.Level, event string, attrs ...slog.Attr) {
	logger.LogEvent(ctx, logger.Order, level, event, attrs...)
}

func normalizeName(text string) string {
	name := strings.Join(strings.Fields(logger.Sanitize(text)), " ")
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}
