// Package wizard walks a user through the four search preference questions:
// age range, gender, city and relationship status
package wizard

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/botconfig"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/example/matchbot/internal/session"
	"github.com/example/matchbot/internal/vk"
	"github.com/example/matchbot/pkg/models"
)

var (
	agePattern      = regexp.MustCompile(`^(\d+)-(\d+)$`)
	relationPattern = regexp.MustCompile(`^[0-8]$`)
)

// PreferencesUpdater persists partial preference updates
type PreferencesUpdater interface {
	Update(ctx context.Context, userID int64, upd models.PreferencesUpdate) error
}

// CityFinder resolves a city name
type CityFinder interface {
	FindCity(ctx context.Context, query string) (*vk.City, error)
}

// Wizard is the questionnaire state machine
type Wizard struct {
	cfg      *botconfig.Config
	sessions session.Store
	prefs    PreferencesUpdater
	cities   CityFinder
	sender   messaging.Sender
	log      *logger.Logger
}

// New creates a wizard
func New(cfg *botconfig.Config, sessions session.Store, prefs PreferencesUpdater, cities CityFinder, sender messaging.Sender, log *logger.Logger) *Wizard {
	return &Wizard{
		cfg:      cfg,
		sessions: sessions,
		prefs:    prefs,
		cities:   cities,
		sender:   sender,
		log:      log.With("component", "wizard"),
	}
}

// prompt is the question of a step and the keyboard offered with it
type prompt struct {
	message  string
	keyboard string
}

var prompts = map[session.Step]prompt{
	session.StepAge:      {botconfig.MsgConfigureAge, botconfig.KbConfigureAge},
	session.StepSex:      {botconfig.MsgConfigureSex, botconfig.KbConfigureSex},
	session.StepCity:     {botconfig.MsgConfigureCity, ""},
	session.StepRelation: {botconfig.MsgConfigureRelation, botconfig.KbConfigureRelation},
}

// Start (re)starts the questionnaire at the age step
func (w *Wizard) Start(ctx context.Context, userID int64) error {
	if err := w.sessions.Set(ctx, &session.Session{UserID: userID, Step: session.StepAge}); err != nil {
		w.log.Error("failed to start wizard", "user_id", userID, "error", err)
		return w.reply(ctx, userID, apperr.UserMessageKey(err), botconfig.KbMainMenu)
	}
	return w.ask(ctx, userID, session.StepAge)
}

// InProgress reports whether the user is answering the questionnaire
func (w *Wizard) InProgress(ctx context.Context, userID int64) (bool, error) {
	s, err := w.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return s != nil, nil
}

// Cancel drops the user's questionnaire
func (w *Wizard) Cancel(ctx context.Context, userID int64) error {
	return w.sessions.Delete(ctx, userID)
}

// Handle feeds one answer into the state machine. Users without a session are
// ignored
func (w *Wizard) Handle(ctx context.Context, userID int64, text string) error {
	s, err := w.sessions.Get(ctx, userID)
	if err != nil {
		w.log.Error("failed to load wizard session", "user_id", userID, "error", err)
		return w.reply(ctx, userID, apperr.UserMessageKey(err), botconfig.KbMainMenu)
	}
	if s == nil {
		return nil
	}

	answer := strings.TrimSpace(text)
	switch s.Step {
	case session.StepAge:
		return w.handleAge(ctx, s, answer)
	case session.StepSex:
		return w.handleSex(ctx, s, answer)
	case session.StepCity:
		return w.handleCity(ctx, s, answer)
	case session.StepRelation:
		return w.handleRelation(ctx, s, answer)
	default:
		w.log.Warn("unknown wizard step, restarting", "user_id", userID, "step", s.Step)
		return w.Start(ctx, userID)
	}
}

func (w *Wizard) handleAge(ctx context.Context, s *session.Session, answer string) error {
	ageMin, ageMax := models.DefaultAgeMin, models.DefaultAgeMax
	if !w.cfg.Commands.Matches(botconfig.CmdSkipAge, strings.ToLower(answer)) {
		m := agePattern.FindStringSubmatch(answer)
		if m == nil {
			return w.reply(ctx, s.UserID, botconfig.MsgAgeFormatError, botconfig.KbConfigureAge)
		}
		var err1, err2 error
		ageMin, err1 = strconv.Atoi(m[1])
		ageMax, err2 = strconv.Atoi(m[2])
		// digits only, so Atoi fails on overflow alone
		if err1 != nil || err2 != nil || !validAgeRange(ageMin, ageMax) {
			return w.reply(ctx, s.UserID, botconfig.MsgAgeRangeError, botconfig.KbConfigureAge)
		}
	}
	return w.save(ctx, s, models.PreferencesUpdate{AgeMin: &ageMin, AgeMax: &ageMax}, session.StepSex)
}

func validAgeRange(min, max int) bool {
	return models.DefaultAgeMin <= min && min <= max && max <= models.DefaultAgeMax
}

func (w *Wizard) handleSex(ctx context.Context, s *session.Session, answer string) error {
	sex, ok := w.parseSex(strings.ToLower(answer))
	if !ok {
		return w.reply(ctx, s.UserID, botconfig.MsgSexError, botconfig.KbConfigureSex)
	}
	return w.save(ctx, s, models.PreferencesUpdate{Sex: &sex}, session.StepCity)
}

func (w *Wizard) parseSex(answer string) (int, bool) {
	switch {
	case w.cfg.Commands.Matches(botconfig.CmdSexAny, answer):
		return models.SexAny, true
	case w.cfg.Commands.Matches(botconfig.CmdSexFemale, answer):
		return models.SexFemale, true
	case w.cfg.Commands.Matches(botconfig.CmdSexMale, answer):
		return models.SexMale, true
	}
	return 0, false
}

func (w *Wizard) handleCity(ctx context.Context, s *session.Session, answer string) error {
	if answer == "" {
		return w.reply(ctx, s.UserID, botconfig.MsgCityNotFound, "")
	}
	city, err := w.cities.FindCity(ctx, answer)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return w.reply(ctx, s.UserID, botconfig.MsgCityNotFound, "")
		}
		w.log.Error("city lookup failed", "user_id", s.UserID, "query", answer, "error", err)
		return w.reply(ctx, s.UserID, apperr.UserMessageKey(err), "")
	}
	return w.save(ctx, s, models.PreferencesUpdate{CityID: &city.ID, CityTitle: &city.Title}, session.StepRelation)
}

func (w *Wizard) handleRelation(ctx context.Context, s *session.Session, answer string) error {
	if !relationPattern.MatchString(answer) {
		return w.reply(ctx, s.UserID, botconfig.MsgRelationError, botconfig.KbConfigureRelation)
	}
	relation := int(answer[0] - '0')
	if err := w.prefs.Update(ctx, s.UserID, models.PreferencesUpdate{Relation: &relation}); err != nil {
		return w.persistFailed(ctx, s, err)
	}
	if err := w.sessions.Delete(ctx, s.UserID); err != nil {
		w.log.Warn("failed to clear wizard session", "user_id", s.UserID, "error", err)
	}
	w.log.Info("search preferences configured", "user_id", s.UserID)
	return w.reply(ctx, s.UserID, botconfig.MsgConfigureSuccess, botconfig.KbMainMenu)
}

// save persists upd and moves the session to next
func (w *Wizard) save(ctx context.Context, s *session.Session, upd models.PreferencesUpdate, next session.Step) error {
	if err := w.prefs.Update(ctx, s.UserID, upd); err != nil {
		return w.persistFailed(ctx, s, err)
	}
	if err := w.sessions.Set(ctx, &session.Session{UserID: s.UserID, Step: next}); err != nil {
		w.log.Error("failed to advance wizard", "user_id", s.UserID, "step", s.Step, "error", err)
		return w.reply(ctx, s.UserID, apperr.UserMessageKey(err), prompts[s.Step].keyboard)
	}
	return w.ask(ctx, s.UserID, next)
}

// persistFailed reports a failed write and keeps the user on the same step
func (w *Wizard) persistFailed(ctx context.Context, s *session.Session, err error) error {
	w.log.Error("failed to save search preferences", "user_id", s.UserID, "step", s.Step, "error", err)
	return w.reply(ctx, s.UserID, botconfig.MsgPersistenceError, prompts[s.Step].keyboard)
}

func (w *Wizard) ask(ctx context.Context, userID int64, step session.Step) error {
	p := prompts[step]
	return w.reply(ctx, userID, p.message, p.keyboard)
}

func (w *Wizard) reply(ctx context.Context, userID int64, msgKey, keyboard string) error {
	msg := messaging.Message{RecipientID: userID, Text: w.cfg.Message(msgKey)}
	if keyboard != "" {
		msg.Keyboard = w.cfg.Keyboard(keyboard)
	}
	return w.sender.Send(ctx, msg)
}
