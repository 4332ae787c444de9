// Package browser pages through a user's stored matches one card at a time.
// The position travels in the button payload, so nothing is kept server-side
package browser

import (
	"context"
	"strconv"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/botconfig"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/example/matchbot/pkg/models"
)

// MatchLister reads matches in insertion order
type MatchLister interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Match, error)
}

// Browser renders match cards
type Browser struct {
	cfg     *botconfig.Config
	matches MatchLister
	sender  messaging.Sender
	log     *logger.Logger
}

// New creates a browser
func New(cfg *botconfig.Config, matches MatchLister, sender messaging.Sender, log *logger.Logger) *Browser {
	return &Browser{cfg: cfg, matches: matches, sender: sender, log: log.With("component", "browser")}
}

// Show sends the card at index. Out of range indexes start over from the
// first card
func (b *Browser) Show(ctx context.Context, userID int64, index int) error {
	matches, err := b.matches.ListByUser(ctx, userID)
	if err != nil {
		b.log.Error("failed to list matches", "user_id", userID, "error", err)
		return b.sender.Send(ctx, messaging.Message{
			RecipientID: userID,
			Text:        b.cfg.Message(apperr.UserMessageKey(err)),
			Keyboard:    b.cfg.Keyboard(botconfig.KbMainMenu),
		})
	}

	if len(matches) == 0 {
		return b.sender.Send(ctx, messaging.Message{
			RecipientID: userID,
			Text:        b.cfg.Message(botconfig.MsgNoMatches),
			Keyboard:    b.cfg.Keyboard(botconfig.KbMainMenu),
		})
	}

	if index < 0 || index >= len(matches) {
		index = 0
	}
	if index == 0 {
		preamble := b.cfg.Render(botconfig.MsgMatchesFound, map[string]string{"count": strconv.Itoa(len(matches))})
		if err := b.sender.Send(ctx, messaging.Message{RecipientID: userID, Text: preamble}); err != nil {
			return err
		}
	}

	return b.sender.Send(ctx, b.card(userID, matches[index], index, len(matches)))
}

func (b *Browser) card(userID int64, m models.Match, index, total int) messaging.Message {
	msg := messaging.Message{
		RecipientID: userID,
		Text: b.cfg.Render(botconfig.MsgMatchCard, map[string]string{
			"first_name":  m.FirstName,
			"last_name":   m.LastName,
			"profile_url": m.ProfileURL,
		}),
		Attachment: m.Photo,
		PhotoURL:   m.PhotoURL,
	}
	if index == total-1 {
		msg.Keyboard = b.cfg.Keyboard(botconfig.KbReturnToMenu)
	} else {
		msg.Keyboard = b.cfg.Keyboard(botconfig.KbNextMatch).WithIndex(botconfig.CmdNextMatch, index+1)
	}
	return msg
}
