package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/coffeebot/coffee/chatui"
	"github.com/m3rciful/coffeebot/core/telegram/sender"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []string
	opts    [][]interface{}
	edited  map[string]string
	deleted []string
	err     error
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, what.(string))
	f.opts = append(f.opts, opts)
	return &tele.Message{ID: len(f.sent) + 100, Chat: &tele.Chat{ID: 7}}, nil
}

func (f *fakeAPI) Edit(msg tele.Editable, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id, _ := msg.MessageSig()
	if f.edited == nil {
		f.edited = make(map[string]string)
	}
	f.edited[id] = what.(string)
	return &tele.Message{}, nil
}

func (f *fakeAPI) Delete(msg tele.Editable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := msg.MessageSig()
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeAPI) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func TestSendReturnsHandle(t *testing.T) {
	api := &fakeAPI{}
	m := New(api, nil)
	markup := &tele.ReplyMarkup{}

	h, err := m.Send(context.Background(), 7, "hello", markup)
	require.NoError(t, err)
	assert.Equal(t, chatui.Handle{ChatID: 7, MessageID: 101}, h)
	require.Len(t, api.opts, 1)
	assert.Equal(t, []interface{}{markup}, api.opts[0])

	_, err = m.Send(context.Background(), 7, "plain", nil)
	require.NoError(t, err)
	assert.Empty(t, api.opts[1])
}

func TestSendError(t *testing.T) {
	api := &fakeAPI{err: errors.New("forbidden: bot was blocked by the user")}
	h, err := New(api, nil).Send(context.Background(), 7, "hello", nil)
	assert.Error(t, err)
	assert.True(t, h.IsZero())
}

func TestEdit(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, New(api, nil).Edit(context.Background(), chatui.Handle{ChatID: 7, MessageID: 5}, "done"))
	assert.Equal(t, "done", api.edited["5"])
}

func TestDeleteSync(t *testing.T) {
	api := &fakeAPI{}
	m := New(api, nil)
	require.NoError(t, m.Delete(context.Background(), chatui.Handle{ChatID: 7, MessageID: 9}))
	require.NoError(t, m.Delete(context.Background(), chatui.Handle{}))
	assert.Equal(t, []string{"9"}, api.deletedIDs())

	api.err = errors.New("message to delete not found")
	assert.Error(t, m.Delete(context.Background(), chatui.Handle{ChatID: 7, MessageID: 10}))
}

func TestDeleteThroughDispatcher(t *testing.T) {
	api := &fakeAPI{err: errors.New("message to delete not found")}
	disp := sender.NewDispatcher(sender.Options{Workers: 1})
	m := New(api, disp)

	require.NoError(t, m.Delete(context.Background(), chatui.Handle{ChatID: 7, MessageID: 3}))
	require.Eventually(t, func() bool { return disp.ErrorCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"3"}, api.deletedIDs())

	disp.Close()
	api.err = nil
	require.NoError(t, m.Delete(context.Background(), chatui.Handle{ChatID: 7, MessageID: 4}))
	assert.Equal(t, []string{"3", "4"}, api.deletedIDs())
}
