package vk

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/SevereCloud/vksdk/v2/events"
	longpoll "github.com/SevereCloud/vksdk/v2/longpoll-bot"
	"github.com/SevereCloud/vksdk/v2/object"
	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
)

// LongPollWait is how long the server holds a long poll request, in seconds
const LongPollWait = 25

// Transport talks to users through a community: messages.send for replies
// and the Bots Long Poll API for inbound messages
type Transport struct {
	vk         *api.VK
	groupID    int64
	log        *logger.Logger
	wait       int
	retryDelay time.Duration
}

// NewTransport creates a transport from a client authorised with the
// community token
func NewTransport(vk *api.VK, groupID int64, log *logger.Logger) *Transport {
	return &Transport{
		vk:         vk,
		groupID:    groupID,
		log:        log.With("component", "vk_transport"),
		wait:       LongPollWait,
		retryDelay: 3 * time.Second,
	}
}

// Send implements messaging.Sender
func (t *Transport) Send(ctx context.Context, msg messaging.Message) error {
	params := api.Params{
		"user_id":   msg.RecipientID,
		"message":   msg.Text,
		"random_id": 0,
	}
	if msg.Keyboard != nil {
		params["keyboard"] = buildKeyboard(msg.Keyboard).ToJSON()
	}
	if msg.Attachment != "" {
		params["attachment"] = msg.Attachment
	}
	if _, err := t.vk.MessagesSend(params.WithContext(ctx)); err != nil {
		return classify("messages.send", err)
	}
	return nil
}

// Listen implements messaging.Transport. A lost connection is logged and the
// long poll session is opened again; an auth failure ends it
func (t *Transport) Listen(ctx context.Context, h messaging.Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lp, err := longpoll.NewLongPoll(t.vk, int(t.groupID))
		if err != nil {
			err = classify("groups.getLongPollServer", err)
			if errors.Is(err, apperr.ErrAuth) {
				return err
			}
			t.log.Error("failed to get long poll server", "error", err)
			if !t.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		lp.Wait = t.wait
		lp.Client = &http.Client{Timeout: time.Duration(t.wait+10) * time.Second}
		// handlers get the listener's context; the session's own ends with it
		lp.MessageNew(func(_ context.Context, obj events.MessageNewObject) {
			if ev, ok := toEvent(obj.Message); ok {
				h(ctx, ev)
			}
		})
		t.log.Info("long poll connected", "group_id", t.groupID)

		err = lp.RunWithContext(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Warn("long poll stopped", "error", err)
		if !t.sleep(ctx) {
			return ctx.Err()
		}
	}
}

func toEvent(m object.MessagesMessage) (messaging.Event, bool) {
	// only private dialogs with the community
	if m.PeerID != m.FromID {
		return messaging.Event{}, false
	}
	return messaging.Event{
		Type:     messaging.EventMessageNew,
		FromSelf: bool(m.Out),
		Text:     m.Text,
		SenderID: int64(m.FromID),
		Payload:  m.Payload,
	}, true
}

func (t *Transport) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(t.retryDelay):
		return true
	}
}
