package bot

import (
	"context"
	"errors"
	"strconv"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/botconfig"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/example/matchbot/internal/search"
	"github.com/example/matchbot/pkg/models"
)

// route pairs a predicate with a handler. Routes are tried in order and the
// last one is the fallback
type route struct {
	name   string
	match  func(ctx context.Context, ev messaging.Event, text string) (bool, error)
	handle func(ctx context.Context, ev messaging.Event) error
}

const routeWizard = "wizard"
const routeUnknown = "unknown"

func (b *Bot) buildRoutes() []route {
	return []route{
		{name: botconfig.CmdStart, match: b.command(botconfig.CmdStart), handle: b.handleStart},
		{name: botconfig.CmdConfigure, match: b.command(botconfig.CmdConfigure), handle: b.handleConfigure},
		{name: routeWizard, match: b.inWizard, handle: b.handleWizard},
		{name: botconfig.CmdStartSearching, match: b.command(botconfig.CmdStartSearching), handle: b.handleStartSearching},
		{name: botconfig.CmdShowMatches, match: b.command(botconfig.CmdShowMatches), handle: b.handleShowMatches},
		{name: botconfig.CmdNextMatch, match: b.command(botconfig.CmdNextMatch), handle: b.handleNextMatch},
		{name: botconfig.CmdMainMenu, match: b.command(botconfig.CmdMainMenu), handle: b.handleMainMenu},
		{name: routeUnknown, handle: b.handleUnknownCommand},
	}
}

func (b *Bot) command(cmd string) func(context.Context, messaging.Event, string) (bool, error) {
	return func(_ context.Context, _ messaging.Event, text string) (bool, error) {
		return b.Texts.Commands.Matches(cmd, text), nil
	}
}

func (b *Bot) inWizard(ctx context.Context, ev messaging.Event, _ string) (bool, error) {
	return b.Wizard.InProgress(ctx, ev.SenderID)
}

// handleStart registers the user and greets them
func (b *Bot) handleStart(ctx context.Context, ev messaging.Event) error {
	if err := b.ensureUser(ctx, ev); err != nil {
		return err
	}
	return b.send(ctx, ev.SenderID, botconfig.MsgStart, botconfig.KbStart)
}

func (b *Bot) handleConfigure(ctx context.Context, ev messaging.Event) error {
	if err := b.ensureUser(ctx, ev); err != nil {
		return err
	}
	return b.Wizard.Start(ctx, ev.SenderID)
}

func (b *Bot) handleWizard(ctx context.Context, ev messaging.Event) error {
	return b.Wizard.Handle(ctx, ev.SenderID, ev.Text)
}

// handleStartSearching launches a background search unless one is running
func (b *Bot) handleStartSearching(ctx context.Context, ev messaging.Event) error {
	if err := b.ensureUser(ctx, ev); err != nil {
		return err
	}
	userID := ev.SenderID

	b.mu.Lock()
	if _, running := b.searches[userID]; running {
		b.mu.Unlock()
		return b.send(ctx, userID, botconfig.MsgSearchAlreadyRunning, "")
	}
	searchCtx, cancel := context.WithCancel(b.searchCtx)
	b.searches[userID] = cancel
	b.searchWG.Add(1)
	b.mu.Unlock()

	if err := b.send(ctx, userID, botconfig.MsgStartSearching, ""); err != nil {
		b.log.Warn("failed to announce search", "user_id", userID, "error", err)
	}
	go b.runSearch(searchCtx, userID)
	return nil
}

func (b *Bot) runSearch(ctx context.Context, userID int64) {
	defer b.searchWG.Done()
	defer func() {
		b.mu.Lock()
		cancel := b.searches[userID]
		delete(b.searches, userID)
		b.mu.Unlock()
		cancel()
	}()

	log := b.log.With("user_id", userID)
	res, err := b.Search.Run(ctx, userID)
	switch {
	case err == nil:
		// a scan cut short by the directory must not read as a clean finish
		msgKey := botconfig.MsgEndSearching
		if res.Truncated {
			msgKey = botconfig.MsgEndSearchingPartial
		}
		b.notify(log, userID, messaging.Message{
			Text:     b.Texts.Render(msgKey, map[string]string{"count": strconv.Itoa(res.Saved)}),
			Keyboard: b.Texts.Keyboard(botconfig.KbMainMenu),
		})
	case ctx.Err() != nil:
		log.Info("search cancelled")
	case errors.Is(err, search.ErrNoPreferences):
		b.notify(log, userID, b.message(botconfig.MsgSearchSettingsMissing, botconfig.KbMainMenu))
	case errors.Is(err, apperr.ErrNotFound):
		b.notify(log, userID, b.message(botconfig.MsgSearchCommunityMissing, botconfig.KbMainMenu))
	default:
		log.Error("search failed", "error", err)
		b.notify(log, userID, b.message(apperr.UserMessageKey(err), botconfig.KbMainMenu))
	}
}

// notify sends the outcome of a background job. It does not use the job's
// context so the reply still goes out when the job ran into its deadline
func (b *Bot) notify(log *logger.Logger, userID int64, msg messaging.Message) {
	msg.RecipientID = userID
	if err := b.Transport.Send(context.Background(), msg); err != nil {
		log.Error("failed to send search result", "error", err)
	}
}

// SearchRunning reports whether a search for the user is in flight
func (b *Bot) SearchRunning(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.searches[userID]
	return ok
}

func (b *Bot) handleShowMatches(ctx context.Context, ev messaging.Event) error {
	return b.Browser.Show(ctx, ev.SenderID, 0)
}

// handleNextMatch shows the card whose index the pressed button carried
func (b *Bot) handleNextMatch(ctx context.Context, ev messaging.Event) error {
	index := 0
	if p, ok := messaging.ParsePayload(ev.Payload); ok && p.Index != nil {
		index = *p.Index
	}
	return b.Browser.Show(ctx, ev.SenderID, index)
}

// handleMainMenu abandons any questionnaire and shows the menu
func (b *Bot) handleMainMenu(ctx context.Context, ev messaging.Event) error {
	if err := b.Wizard.Cancel(ctx, ev.SenderID); err != nil {
		b.log.Warn("failed to cancel wizard", "user_id", ev.SenderID, "error", err)
	}
	return b.send(ctx, ev.SenderID, botconfig.MsgMainMenu, botconfig.KbMainMenu)
}

func (b *Bot) handleUnknownCommand(ctx context.Context, ev messaging.Event) error {
	return b.send(ctx, ev.SenderID, botconfig.MsgUnknownCommand, botconfig.KbMainMenu)
}

// ensureUser stores the sender on first contact. The profile comes from the
// event when the transport knows it and from the directory otherwise
func (b *Bot) ensureUser(ctx context.Context, ev messaging.Event) error {
	exists, err := b.Users.Exists(ctx, ev.SenderID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	user := ev.Profile
	if user == nil && b.Profiles != nil {
		profile, err := b.Profiles.GetUser(ctx, ev.SenderID)
		if err != nil {
			return err
		}
		user = profile.ToUser()
	}
	if user == nil {
		user = &models.User{ProfileURL: models.VKProfileURL(ev.SenderID)}
	}
	user.UserID = ev.SenderID

	created, err := b.Users.Create(ctx, user)
	if err != nil {
		return err
	}
	if created {
		b.log.Info("new user registered", "user_id", ev.SenderID)
	}
	return nil
}

func (b *Bot) message(msgKey, keyboard string) messaging.Message {
	msg := messaging.Message{Text: b.Texts.Message(msgKey)}
	if keyboard != "" {
		msg.Keyboard = b.Texts.Keyboard(keyboard)
	}
	return msg
}

func (b *Bot) send(ctx context.Context, userID int64, msgKey, keyboard string) error {
	msg := b.message(msgKey, keyboard)
	msg.RecipientID = userID
	return b.Transport.Send(ctx, msg)
}

// replyError tells the user a handler failed and offers the main menu
func (b *Bot) replyError(ctx context.Context, log *logger.Logger, userID int64, err error) {
	if sendErr := b.send(ctx, userID, apperr.UserMessageKey(err), botconfig.KbMainMenu); sendErr != nil {
		log.Warn("failed to report error to user", "error", sendErr)
	}
}
