// Package bot routes inbound chat events to the questionnaire, the search
// engine and the match browser
package bot

import (
	"context"
	"sync"

	"github.com/example/matchbot/internal/botconfig"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/example/matchbot/internal/search"
	"github.com/example/matchbot/internal/vk"
	"github.com/example/matchbot/pkg/models"
	"github.com/google/uuid"
)

// UserStore creates users on their first contact
type UserStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, user *models.User) (bool, error)
}

// ProfileLookup fetches a user's public profile
type ProfileLookup interface {
	GetUser(ctx context.Context, userID int64) (*vk.Profile, error)
}

// Questionnaire is the preference wizard
type Questionnaire interface {
	Start(ctx context.Context, userID int64) error
	Handle(ctx context.Context, userID int64, text string) error
	InProgress(ctx context.Context, userID int64) (bool, error)
	Cancel(ctx context.Context, userID int64) error
}

// Searcher runs a candidate search
type Searcher interface {
	Run(ctx context.Context, userID int64) (*search.Result, error)
}

// MatchBrowser shows stored matches
type MatchBrowser interface {
	Show(ctx context.Context, userID int64, index int) error
}

// Deps are the collaborators of the bot
type Deps struct {
	Transport messaging.Transport
	Texts     *botconfig.Config
	Users     UserStore
	// Profiles may be nil when the transport supplies sender profiles
	Profiles ProfileLookup
	Wizard   Questionnaire
	Search   Searcher
	Browser  MatchBrowser
}

// Bot represents the chat bot application
type Bot struct {
	Deps
	config *BotConfig
	log    *logger.Logger
	routes []route

	queues *userQueues

	mu       sync.Mutex
	searches map[int64]context.CancelFunc
	searchWG sync.WaitGroup
	// searchCtx parents background searches; it ends with Start's context
	searchCtx context.Context
}

// New creates a new bot instance
func New(deps Deps, config *BotConfig, log *logger.Logger) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	b := &Bot{
		Deps:      deps,
		config:    config,
		log:       log.With("component", "bot"),
		searches:  make(map[int64]context.CancelFunc),
		searchCtx: context.Background(),
	}
	b.queues = newUserQueues(config.MaxWorkers, b.Dispatch)
	b.routes = b.buildRoutes()
	return b
}

// Start listens for events until ctx is cancelled, then waits for running
// handlers and searches to finish
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	b.searchCtx = ctx
	b.mu.Unlock()

	b.log.Info("bot started", "max_workers", b.config.MaxWorkers)
	err := b.Transport.Listen(ctx, b.queues.push)

	b.queues.wait()
	b.searchWG.Wait()
	b.log.Info("bot stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Dispatch handles one event. Events of one user must not be dispatched
// concurrently; Start takes care of that
func (b *Bot) Dispatch(ctx context.Context, ev messaging.Event) {
	if ev.Type != messaging.EventMessageNew || ev.FromSelf {
		return
	}

	log := b.log.With("event_id", uuid.NewString(), "user_id", ev.SenderID)
	r := b.match(ctx, log, ev)
	log.Debug("event dispatched", "route", r.name, "text", ev.NormalizedText(), "payload", ev.Payload)

	if err := r.handle(ctx, ev); err != nil {
		log.Error("handler failed", "route", r.name, "error", err)
		b.replyError(ctx, log, ev.SenderID, err)
	}
}

// match picks the route for ev. A payload naming a route wins over text
func (b *Bot) match(ctx context.Context, log *logger.Logger, ev messaging.Event) route {
	if p, ok := messaging.ParsePayload(ev.Payload); ok {
		for _, r := range b.routes {
			if r.name == p.Command {
				return r
			}
		}
	}
	text := ev.NormalizedText()
	for _, r := range b.routes {
		if r.match == nil {
			continue
		}
		ok, err := r.match(ctx, ev, text)
		if err != nil {
			log.Warn("route check failed", "route", r.name, "error", err)
			continue
		}
		if ok {
			return r
		}
	}
	return b.routes[len(b.routes)-1]
}

// userQueues runs events strictly in order per user and concurrently across
// users, with at most limit handlers in flight
type userQueues struct {
	mu      sync.Mutex
	pending map[int64][]messaging.Event
	sem     chan struct{}
	wg      sync.WaitGroup
	handle  messaging.Handler
}

func newUserQueues(limit int, handle messaging.Handler) *userQueues {
	if limit <= 0 {
		limit = 1
	}
	return &userQueues{
		pending: make(map[int64][]messaging.Event),
		sem:     make(chan struct{}, limit),
		handle:  handle,
	}
}

// push enqueues ev and starts a drainer for its user if none is running
func (q *userQueues) push(ctx context.Context, ev messaging.Event) {
	q.mu.Lock()
	queue, running := q.pending[ev.SenderID]
	q.pending[ev.SenderID] = append(queue, ev)
	q.mu.Unlock()
	if running {
		return
	}
	q.wg.Add(1)
	go q.drain(ctx, ev.SenderID)
}

func (q *userQueues) drain(ctx context.Context, userID int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		queue := q.pending[userID]
		if len(queue) == 0 {
			delete(q.pending, userID)
			q.mu.Unlock()
			return
		}
		ev := queue[0]
		q.pending[userID] = queue[1:]
		q.mu.Unlock()

		select {
		case q.sem <- struct{}{}:
		case <-ctx.Done():
			q.mu.Lock()
			delete(q.pending, userID)
			q.mu.Unlock()
			return
		}
		q.handle(ctx, ev)
		<-q.sem
	}
}

func (q *userQueues) wait() {
	q.wg.Wait()
}
