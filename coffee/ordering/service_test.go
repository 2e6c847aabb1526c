package ordering_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/coffee/chatui/chatuitest"
	"github.com/m3rciful/coffeebot/coffee/ordering"
	"github.com/m3rciful/coffeebot/coffee/storage"
	coredatabase "github.com/m3rciful/coffeebot/core/database"
	"github.com/m3rciful/coffeebot/core/telegram/state"
)

const adminChat = int64(999)

var customer = ordering.Actor{UserID: 1, ChatID: 1}

type fakePayments struct {
	mu      sync.Mutex
	started []int64
}

func (f *fakePayments) OnNewOrderStarted(_ context.Context, userID int64) {
	f.mu.Lock()
	f.started = append(f.started, userID)
	f.mu.Unlock()
}

type fixture struct {
	svc *ordering.Service
	msg *chatuitest.Messenger
	ui  *chatui.Registry
	pay *fakePayments
}

func newFixture(t *testing.T, store ordering.Store) *fixture {
	t.Helper()
	msg := chatuitest.New()
	ui := chatui.NewRegistry(msg)
	pay := &fakePayments{}
	svc := ordering.NewService(ordering.Deps{
		Sessions:  state.NewManager[ordering.Step](nil),
		Store:     store,
		UI:        ui,
		Messenger: msg,
		Payments:  pay,
		Config:    ordering.Config{AdminChatID: adminChat, PaymentAccount: "т-банк: +70000000000"},
	})
	return &fixture{svc: svc, msg: msg, ui: ui, pay: pay}
}

func sqliteStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "coffee.db")}
	require.NoError(t, coredatabase.RunMigrations(cfg, storage.Migrations))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.New(db)
}

func (f *fixture) last(t *testing.T, chatID int64) chatuitest.Sent {
	t.Helper()
	s, ok := f.msg.Last(chatID)
	require.True(t, ok)
	return s
}

func (f *fixture) step(userID int64) state.State {
	return f.svc.Sessions().GetState(userID)
}

// orderUpToSugar runs /start and picks drink, returning the sugar prompt handle.
func (f *fixture) orderUpToSugar(t *testing.T, a ordering.Actor, drink string) chatui.Handle {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx, a))
	menu := f.last(t, a.ChatID).Handle
	require.NoError(t, f.svc.SelectDrink(ctx, a, drink, menu))
	return f.last(t, a.ChatID).Handle
}

func TestFirstTimeCustomer(t *testing.T) {
	store := sqliteStore(t)
	f := newFixture(t, ordering.SQLStore(store))
	ctx := context.Background()

	require.NoError(t, f.svc.Start(ctx, customer))
	menu := f.last(t, customer.ChatID)
	assert.Equal(t, "Выберете напиток:", menu.Text)
	require.Len(t, menu.Markup.InlineKeyboard, 8)
	assert.Equal(t, "Эспрессо - 30₽", menu.Markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, ordering.StepAwaitingDrink, f.step(customer.UserID))
	assert.Equal(t, []int64{customer.UserID}, f.pay.started)

	require.NoError(t, f.svc.SelectDrink(ctx, customer, "Эспрессо", menu.Handle))
	edited, ok := f.msg.Edited(menu.Handle)
	require.True(t, ok)
	assert.Equal(t, "Вы выбрали Эспрессо.", edited)
	sugar := f.last(t, customer.ChatID)
	require.Len(t, sugar.Markup.InlineKeyboard, 1)
	assert.Len(t, sugar.Markup.InlineKeyboard[0], 4)
	assert.Equal(t, ordering.StepAwaitingSugar, f.step(customer.UserID))

	require.NoError(t, f.svc.SelectSugar(ctx, customer, 0, sugar.Handle))
	assert.True(t, f.msg.WasDeleted(sugar.Handle))
	assert.Contains(t, f.last(t, customer.ChatID).Text, "введите своё имя")
	assert.Equal(t, ordering.StepAwaitingName, f.step(customer.UserID))

	namePrompt := f.last(t, customer.ChatID).Handle
	require.NoError(t, f.svc.SubmitName(ctx, customer, "  Аня   К "))
	assert.True(t, f.msg.WasDeleted(namePrompt))
	assert.Equal(t, state.StateIdle, f.step(customer.UserID))

	orders, err := store.ListOrders(ctx, customer.UserID, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Эспрессо", orders[0].Drink)
	assert.Equal(t, 0, orders[0].Sugar)
	assert.Equal(t, "Аня К", orders[0].Name)
	assert.Equal(t, 1, orders[0].OrderCount)

	admin := f.last(t, adminChat)
	assert.Contains(t, admin.Text, "Новый заказ от Аня К:")
	assert.Contains(t, admin.Text, "Цена: 30₽")
	assert.Contains(t, admin.Text, "Пользователь ID: 1")
	require.NotNil(t, admin.Markup)
	assert.Equal(t, ordering.CallbackConfirmPayment, admin.Markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "1", admin.Markup.InlineKeyboard[0][0].Data)

	userMsgs := f.msg.Sent(customer.ChatID)
	require.GreaterOrEqual(t, len(userMsgs), 2)
	summary, instruction := userMsgs[len(userMsgs)-2], userMsgs[len(userMsgs)-1]
	assert.Equal(t, "Ваш заказ: Эспрессо, ложек сахара: 0.", summary.Text)
	assert.Equal(t, "Пожалуйста, переведите 30₽ по СБП на т-банк: +70000000000.", instruction.Text)

	assert.False(t, f.msg.WasDeleted(summary.Handle), "order summary survives")
	live, kind, _ := f.ui.Live(customer.UserID)
	assert.Equal(t, instruction.Handle, live)
	assert.Equal(t, chatui.KindGeneral, kind)
	pending, ok := f.ui.PaymentInstruction(customer.UserID)
	require.True(t, ok)
	assert.Equal(t, instruction.Handle, pending)
}

func TestReturningCustomerSkipsName(t *testing.T) {
	store := sqliteStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOrder(ctx, customer.UserID, "Аня К", "Латте", 1))
	f := newFixture(t, ordering.SQLStore(store))

	sugar := f.orderUpToSugar(t, customer, "Капучино")
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 2, sugar))
	assert.Equal(t, state.StateIdle, f.step(customer.UserID))

	for _, s := range f.msg.Sent(customer.ChatID) {
		assert.NotContains(t, s.Text, "введите своё имя")
	}
	orders, err := store.ListOrders(ctx, customer.UserID, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "Капучино", orders[0].Drink)
	assert.Equal(t, "Аня К", orders[0].Name)
	assert.Equal(t, 2, orders[0].OrderCount)
	assert.Contains(t, f.last(t, adminChat).Text, "Цена: 60₽")
}

type mockStore struct{ mock.Mock }

func (m *mockStore) InsertOrder(_ context.Context, userID int64, name, drink string, sugar int) error {
	return m.Called(userID, name, drink, sugar).Error(0)
}

func (m *mockStore) IncrementOrderCount(_ context.Context, userID int64) error {
	return m.Called(userID).Error(0)
}

func (m *mockStore) GetUserInfo(_ context.Context, userID int64) (*string, int, error) {
	args := m.Called(userID)
	name, _ := args.Get(0).(*string)
	return name, args.Int(1), args.Error(2)
}

func (m *mockStore) UserExists(_ context.Context, userID int64) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) WithinTx(_ context.Context, fn func(tx ordering.Store) error) error {
	return fn(m)
}

// failingInsert fails every InsertOrder made through it, in or out of a transaction.
type failingInsert struct {
	ordering.Store
	fail bool
}

func (s *failingInsert) InsertOrder(ctx context.Context, userID int64, name, drink string, sugar int) error {
	if s.fail {
		return errors.Mark(errors.New("disk I/O error"), storage.ErrStorage)
	}
	return s.Store.InsertOrder(ctx, userID, name, drink, sugar)
}

func (s *failingInsert) WithinTx(ctx context.Context, fn func(tx ordering.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx ordering.Store) error {
		return fn(&failingInsert{Store: tx, fail: s.fail})
	})
}

func TestReturningCustomerIncrementsBeforeInsert(t *testing.T) {
	store := &mockStore{}
	name := "Иван П"
	mock.InOrder(
		store.On("UserExists", customer.UserID).Return(true, nil).Once(),
		store.On("GetUserInfo", customer.UserID).Return(&name, 4, nil).Once(),
		store.On("IncrementOrderCount", customer.UserID).Return(nil).Once(),
		store.On("InsertOrder", customer.UserID, name, "Латте", 3).Return(nil).Once(),
	)
	f := newFixture(t, store)

	sugar := f.orderUpToSugar(t, customer, "Латте")
	require.NoError(t, f.svc.SelectSugar(context.Background(), customer, 3, sugar))
	store.AssertExpectations(t)
	assert.Contains(t, f.last(t, adminChat).Text, "Цена: 50₽")
}

func TestFailedReturningInsertKeepsOrderCount(t *testing.T) {
	store := sqliteStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOrder(ctx, customer.UserID, "Аня К", "Латте", 1))
	wrapped := &failingInsert{Store: ordering.SQLStore(store), fail: true}
	f := newFixture(t, wrapped)

	err := f.svc.SelectSugar(ctx, customer, 1, f.orderUpToSugar(t, customer, "Капучино"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrStorage))
	_, count, err := store.GetUserInfo(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "increment rolled back with the insert")

	wrapped.fail = false
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 2, f.orderUpToSugar(t, customer, "Эспрессо")))

	_, count, err = store.GetUserInfo(ctx, customer.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	orders, err := store.ListOrders(ctx, customer.UserID, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "Эспрессо", orders[0].Drink)
	assert.Equal(t, 2, orders[0].OrderCount)
}

func TestStorageFailureAbortsStep(t *testing.T) {
	store := &mockStore{}
	boom := errors.Mark(errors.New("connection refused"), storage.ErrStorage)
	store.On("UserExists", customer.UserID).Return(false, boom).Once()
	f := newFixture(t, store)

	sugar := f.orderUpToSugar(t, customer, "Латте")
	err := f.svc.SelectSugar(context.Background(), customer, 1, sugar)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrStorage))
	assert.Equal(t, state.StateIdle, f.step(customer.UserID))
	assert.Contains(t, f.last(t, customer.ChatID).Text, "/start")
	assert.Empty(t, f.msg.Sent(adminChat))
	store.AssertNotCalled(t, "InsertOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInsertFailureDoesNotTouchOtherUsers(t *testing.T) {
	store := &mockStore{}
	other := ordering.Actor{UserID: 2, ChatID: 2}
	store.On("UserExists", mock.Anything).Return(false, nil)
	store.On("InsertOrder", customer.UserID, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("disk I/O error")).Once()
	f := newFixture(t, store)
	ctx := context.Background()

	require.NoError(t, f.svc.SelectSugar(ctx, customer, 1, f.orderUpToSugar(t, customer, "Латте")))
	require.NoError(t, f.svc.SelectSugar(ctx, other, 1, f.orderUpToSugar(t, other, "Американо")))

	assert.Error(t, f.svc.SubmitName(ctx, customer, "Аня"))
	assert.Equal(t, state.StateIdle, f.step(customer.UserID))
	assert.Equal(t, ordering.StepAwaitingName, f.step(other.UserID))
}

func TestUnknownDrinkCostsNothing(t *testing.T) {
	f := newFixture(t, ordering.SQLStore(sqliteStore(t)))
	ctx := context.Background()

	sugar := f.orderUpToSugar(t, customer, "Раф")
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 1, sugar))
	require.NoError(t, f.svc.SubmitName(ctx, customer, "Аня"))
	assert.Contains(t, f.last(t, adminChat).Text, "Цена: 0₽")
	assert.Equal(t, "Пожалуйста, переведите 0₽ по СБП на т-банк: +70000000000.", f.last(t, customer.ChatID).Text)
}

func TestDoubleTapPlacesOneOrder(t *testing.T) {
	store := sqliteStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOrder(ctx, customer.UserID, "Аня", "Латте", 1))
	f := newFixture(t, ordering.SQLStore(store))
	sugar := f.orderUpToSugar(t, customer, "Американо")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.SelectSugar(ctx, customer, 1, sugar))
		}()
	}
	wg.Wait()

	orders, err := store.ListOrders(ctx, customer.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 2, "one prior order plus exactly one new")
	assert.Len(t, f.msg.Sent(adminChat), 1)
}

func TestDoubleNameSubmitPlacesOneOrder(t *testing.T) {
	store := sqliteStore(t)
	f := newFixture(t, ordering.SQLStore(store))
	ctx := context.Background()
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 2, f.orderUpToSugar(t, customer, "Латте")))

	var wg sync.WaitGroup
	for _, name := range []string{"Аня", "Аня К"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, f.svc.SubmitName(ctx, customer, name))
		}(name)
	}
	wg.Wait()

	orders, err := store.ListOrders(ctx, customer.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOutOfStepEventsAreIgnored(t *testing.T) {
	store := &mockStore{}
	f := newFixture(t, store)
	ctx := context.Background()

	require.NoError(t, f.svc.SelectDrink(ctx, customer, "Латте", chatui.Handle{}))
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 1, chatui.Handle{}))
	require.NoError(t, f.svc.SubmitName(ctx, customer, "Аня"))
	assert.Empty(t, f.msg.Sent(customer.ChatID))
	assert.Empty(t, f.msg.Sent(adminChat))

	require.NoError(t, f.svc.Start(ctx, customer))
	require.NoError(t, f.svc.SubmitName(ctx, customer, "Аня"))
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 1, chatui.Handle{}))
	assert.Equal(t, ordering.StepAwaitingDrink, f.step(customer.UserID))
	store.AssertExpectations(t)
}

func TestInvalidSugarKeepsStep(t *testing.T) {
	f := newFixture(t, &mockStore{})
	sugar := f.orderUpToSugar(t, customer, "Латте")

	err := f.svc.SelectSugar(context.Background(), customer, 4, sugar)
	assert.True(t, errors.Is(err, ordering.ErrInvalidSugar))
	assert.Equal(t, ordering.StepAwaitingSugar, f.step(customer.UserID))
	assert.False(t, f.msg.WasDeleted(sugar))
}

func TestEmptyNameReprompts(t *testing.T) {
	store := &mockStore{}
	store.On("UserExists", customer.UserID).Return(false, nil)
	f := newFixture(t, store)
	ctx := context.Background()
	require.NoError(t, f.svc.SelectSugar(ctx, customer, 0, f.orderUpToSugar(t, customer, "Латте")))
	prompt := f.last(t, customer.ChatID).Handle

	require.NoError(t, f.svc.SubmitName(ctx, customer, " \t "))
	assert.Equal(t, ordering.StepAwaitingName, f.step(customer.UserID))
	assert.True(t, f.msg.WasDeleted(prompt))
	assert.Contains(t, f.last(t, customer.ChatID).Text, "введите своё имя")
	store.AssertNotCalled(t, "InsertOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStartOverridesAbandonedOrder(t *testing.T) {
	f := newFixture(t, &mockStore{})
	ctx := context.Background()
	f.orderUpToSugar(t, customer, "Латте")
	require.NoError(t, f.svc.Start(ctx, customer))
	assert.Equal(t, ordering.StepAwaitingDrink, f.step(customer.UserID))
	assert.Len(t, f.pay.started, 2)
}

func TestSendFailureOnStart(t *testing.T) {
	f := newFixture(t, &mockStore{})
	f.msg.SendErr = errors.New("bot was blocked by the user")
	assert.Error(t, f.svc.Start(context.Background(), customer))
	assert.Equal(t, state.StateIdle, f.step(customer.UserID))
}
