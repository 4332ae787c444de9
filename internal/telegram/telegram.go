// Package telegram is a messaging.Transport over the Telegram Bot API
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/example/matchbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateTimeout is the long polling timeout in seconds
const UpdateTimeout = 60

// botAPI is the subset of *tgbotapi.BotAPI the transport uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Transport sends and receives messages through a Telegram bot
type Transport struct {
	api botAPI
	log *logger.Logger
}

// New authorises the bot with token
func New(token string, log *logger.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrAuth, "telegram authorize", err)
	}
	log = log.With("component", "telegram_transport")
	log.Info("authorized on account", "username", api.Self.UserName)
	return &Transport{api: api, log: log}, nil
}

// Send implements messaging.Sender. Messages with a photo are sent as a photo
// with the text as caption
func (t *Transport) Send(_ context.Context, msg messaging.Message) error {
	var c tgbotapi.Chattable
	if msg.PhotoURL != "" {
		photo := tgbotapi.NewPhoto(msg.RecipientID, tgbotapi.FileURL(msg.PhotoURL))
		photo.Caption = msg.Text
		if markup := replyMarkup(msg.Keyboard); markup != nil {
			photo.ReplyMarkup = markup
		}
		c = photo
	} else {
		text := tgbotapi.NewMessage(msg.RecipientID, msg.Text)
		if markup := replyMarkup(msg.Keyboard); markup != nil {
			text.ReplyMarkup = markup
		}
		c = text
	}
	if _, err := t.api.Send(c); err != nil {
		return classify("sendMessage", err)
	}
	return nil
}

// Listen implements messaging.Transport
func (t *Transport) Listen(ctx context.Context, h messaging.Handler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = UpdateTimeout
	updates := t.api.GetUpdatesChan(updateConfig)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return apperr.New(apperr.ErrTransport, "telegram updates channel closed")
			}
			if cq := update.CallbackQuery; cq != nil {
				// always answer so the client stops showing the loading state
				if _, err := t.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
					t.log.Warn("failed to answer callback", "error", err)
				}
			}
			if ev, ok := toEvent(update); ok {
				h(ctx, ev)
			}
		}
	}
}

// replyMarkup converts a keyboard. Keyboards that are inline or carry
// payloads become inline keyboards, the payload travelling as callback data
func replyMarkup(kb *messaging.Keyboard) interface{} {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	if kb.Inline || kb.HasPayloads() {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, row := range kb.Rows {
			var buttons []tgbotapi.InlineKeyboardButton
			for _, a := range row {
				data := a.Payload
				if data == "" {
					data = a.Label
				}
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, data))
			}
			rows = append(rows, buttons)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	var rows [][]tgbotapi.KeyboardButton
	for _, row := range kb.Rows {
		var buttons []tgbotapi.KeyboardButton
		for _, a := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(a.Label))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.OneTimeKeyboard = kb.OneTime
	return markup
}

// toEvent converts private chat messages and button presses. Callback data
// that is not a payload is treated as the button text
func toEvent(update tgbotapi.Update) (messaging.Event, bool) {
	switch {
	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
			return messaging.Event{}, false
		}
		return messaging.Event{
			Type:     messaging.EventMessageNew,
			FromSelf: m.From.IsBot,
			Text:     m.Text,
			SenderID: m.Chat.ID,
			Profile:  profile(m.From),
		}, true

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil {
			return messaging.Event{}, false
		}
		ev := messaging.Event{
			Type:     messaging.EventMessageNew,
			SenderID: cq.From.ID,
			Profile:  profile(cq.From),
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.SenderID = cq.Message.Chat.ID
		}
		if _, ok := messaging.ParsePayload(cq.Data); ok {
			ev.Payload = cq.Data
		} else {
			ev.Text = cq.Data
		}
		return ev, true
	}
	return messaging.Event{}, false
}

func profile(u *tgbotapi.User) *models.User {
	p := &models.User{
		UserID:    u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if u.UserName != "" {
		p.ProfileURL = fmt.Sprintf("https://t.me/%s", u.UserName)
	}
	return p
}

func classify(op string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch tgErr.Code {
		case http.StatusTooManyRequests:
			return apperr.Wrap(apperr.ErrRateLimit, op, err)
		case http.StatusUnauthorized:
			return apperr.Wrap(apperr.ErrAuth, op, err)
		case http.StatusBadRequest, http.StatusForbidden:
			return apperr.Wrap(apperr.ErrValidation, op, err)
		}
	}
	return apperr.Wrap(apperr.ErrTransport, op, err)
}
