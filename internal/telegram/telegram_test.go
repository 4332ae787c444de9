package telegram

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func newTestTransport() (*Transport, *fakeAPI) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
	return &Transport{api: api, log: logger.Nop()}, api
}

func TestReplyMarkupInline(t *testing.T) {
	kb := &messaging.Keyboard{Inline: true, Rows: [][]messaging.Action{{
		{Label: "Следующий", Payload: `{"command":"next_match","index":2}`},
		{Label: "Меню"},
	}}}
	markup, ok := replyMarkup(kb).(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "Следующий", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, `{"command":"next_match","index":2}`, *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "Меню", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestReplyMarkupPayloadsForceInline(t *testing.T) {
	kb := &messaging.Keyboard{Rows: [][]messaging.Action{{{Label: "Начать поиск", Payload: `{"command":"start_searching"}`}}}}
	_, ok := replyMarkup(kb).(tgbotapi.InlineKeyboardMarkup)
	assert.True(t, ok)
}

func TestReplyMarkupReplyKeyboard(t *testing.T) {
	kb := &messaging.Keyboard{OneTime: true, Rows: [][]messaging.Action{
		{{Label: "0"}, {Label: "1"}},
		{{Label: "2"}},
	}}
	markup, ok := replyMarkup(kb).(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, markup.OneTimeKeyboard)
	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.Keyboard, 2)
	assert.Equal(t, "1", markup.Keyboard[0][1].Text)

	assert.Nil(t, replyMarkup(nil))
	assert.Nil(t, replyMarkup(&messaging.Keyboard{}))
}

func TestToEventMessage(t *testing.T) {
	ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "/start",
		From: &tgbotapi.User{ID: 5, FirstName: "Анна", LastName: "К", UserName: "anna"},
		Chat: &tgbotapi.Chat{ID: 5, Type: "private"},
	}})
	require.True(t, ok)
	assert.Equal(t, messaging.EventMessageNew, ev.Type)
	assert.Equal(t, "/start", ev.Text)
	assert.Equal(t, int64(5), ev.SenderID)
	assert.False(t, ev.FromSelf)
	require.NotNil(t, ev.Profile)
	assert.Equal(t, "Анна", ev.Profile.FirstName)
	assert.Equal(t, "https://t.me/anna", ev.Profile.ProfileURL)

	_, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hi",
		From: &tgbotapi.User{ID: 5},
		Chat: &tgbotapi.Chat{ID: -100, Type: "group"},
	}})
	assert.False(t, ok, "group chats are ignored")

	_, ok = toEvent(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestToEventCallback(t *testing.T) {
	ev, ok := toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 9},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9, Type: "private"}},
		Data:    `{"command":"next_match","index":3}`,
	}})
	require.True(t, ok)
	assert.Equal(t, `{"command":"next_match","index":3}`, ev.Payload)
	assert.Empty(t, ev.Text)

	ev, ok = toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: 9},
		Data: "Меню",
	}})
	require.True(t, ok)
	assert.Equal(t, "Меню", ev.Text)
	assert.Empty(t, ev.Payload)
	assert.Equal(t, int64(9), ev.SenderID)
}

func TestSendTextAndPhoto(t *testing.T) {
	tr, api := newTestTransport()
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, messaging.Message{RecipientID: 1, Text: "hello"}))
	require.NoError(t, tr.Send(ctx, messaging.Message{
		RecipientID: 1,
		Text:        "card",
		PhotoURL:    "https://img/1.jpg",
		Keyboard:    &messaging.Keyboard{Inline: true, Rows: [][]messaging.Action{{{Label: "Меню", Payload: `{"command":"main_menu"}`}}}},
	}))

	require.Len(t, api.sent, 2)
	text, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)
	assert.Nil(t, text.ReplyMarkup)

	photo, ok := api.sent[1].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "card", photo.Caption)
	assert.Equal(t, tgbotapi.FileURL("https://img/1.jpg"), photo.File)
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, photo.ReplyMarkup)
}

func TestSendClassifiesErrors(t *testing.T) {
	tr, api := newTestTransport()
	api.sendErr = &tgbotapi.Error{Code: http.StatusTooManyRequests, Message: "Too Many Requests"}
	assert.ErrorIs(t, tr.Send(context.Background(), messaging.Message{RecipientID: 1}), apperr.ErrRateLimit)

	api.sendErr = &tgbotapi.Error{Code: http.StatusForbidden, Message: "bot was blocked by the user"}
	assert.ErrorIs(t, tr.Send(context.Background(), messaging.Message{RecipientID: 1}), apperr.ErrValidation)

	api.sendErr = errors.New("connection reset")
	assert.ErrorIs(t, tr.Send(context.Background(), messaging.Message{RecipientID: 1}), apperr.ErrTransport)
}

func TestListen(t *testing.T) {
	tr, api := newTestTransport()
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "начать", From: &tgbotapi.User{ID: 3}, Chat: &tgbotapi.Chat{ID: 3, Type: "private"},
	}}
	api.updates <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "q1", From: &tgbotapi.User{ID: 3}, Data: `{"command":"show_matches"}`,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu  sync.Mutex
		got []messaging.Event
	)
	done := make(chan error, 1)
	go func() {
		done <- tr.Listen(ctx, func(_ context.Context, ev messaging.Event) {
			mu.Lock()
			got = append(got, ev)
			if len(got) == 2 {
				cancel()
			}
			mu.Unlock()
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "начать", got[0].Text)
	assert.Equal(t, `{"command":"show_matches"}`, got[1].Payload)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	require.Len(t, api.requests, 1)
	assert.Equal(t, "q1", api.requests[0].(tgbotapi.CallbackConfig).CallbackQueryID)
}

func TestListenClosedChannel(t *testing.T) {
	tr, api := newTestTransport()
	close(api.updates)
	err := tr.Listen(context.Background(), func(context.Context, messaging.Event) {})
	assert.ErrorIs(t, err, apperr.ErrTransport)
}
