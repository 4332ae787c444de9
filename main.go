package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/matchbot/internal/bot"
	"github.com/example/matchbot/internal/botconfig"
	"github.com/example/matchbot/internal/browser"
	"github.com/example/matchbot/internal/config"
	"github.com/example/matchbot/internal/database"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/messaging"
	"github.com/example/matchbot/internal/scheduler"
	"github.com/example/matchbot/internal/search"
	"github.com/example/matchbot/internal/session"
	"github.com/example/matchbot/internal/telegram"
	"github.com/example/matchbot/internal/vk"
	"github.com/example/matchbot/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the logger is not configured yet
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("bot stopped with error", "error", err)
	}
	log.Info("bot stopped successfully")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := database.Connect(cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	texts, err := botconfig.Load(cfg.ConfigDir)
	if err != nil {
		return err
	}

	directoryClient, err := vk.NewClient(cfg.VK.Token, cfg.VK.APIVersion, cfg.VK.RequestTimeout)
	if err != nil {
		return err
	}
	directory := vk.NewDirectory(directoryClient)

	var (
		transport messaging.Transport
		profiles  bot.ProfileLookup
	)
	switch cfg.Transport {
	case config.TransportTelegram:
		if transport, err = telegram.New(cfg.Telegram.Token, log); err != nil {
			return err
		}
	default:
		groupClient, err := vk.NewClient(cfg.VK.GroupToken, cfg.VK.APIVersion, cfg.VK.RequestTimeout, vk.WithRateLimit(vk.GroupRateLimit))
		if err != nil {
			return err
		}
		transport = vk.NewTransport(groupClient, cfg.VK.GroupID, log)
		profiles = directory
	}

	botCfg := bot.DefaultConfig()
	botCfg.SessionTTL = cfg.Session.TTL
	botCfg.MaxWorkers = cfg.MaxWorkers

	var sessions session.Store
	switch cfg.Session.Backend {
	case config.SessionRedis:
		store := session.NewRedisStore(session.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, botCfg.SessionTTL)
		if err := store.Ping(ctx); err != nil {
			return err
		}
		defer store.Close()
		sessions = store
	default:
		store := session.NewMemoryStore(botCfg.SessionTTL)
		if cfg.SchedulerEnabled {
			sweeper := scheduler.New(store, scheduler.DefaultSweepInterval, log)
			if err := sweeper.Start(); err != nil {
				return err
			}
			defer sweeper.Stop()
		}
		sessions = store
	}

	prefs := database.NewPreferencesRepository(db)
	matches := database.NewMatchRepository(db)

	b := bot.New(bot.Deps{
		Transport: transport,
		Texts:     texts,
		Users:     database.NewUserRepository(db),
		Profiles:  profiles,
		Wizard:    wizard.New(texts, sessions, prefs, directory, transport, log),
		Search:    search.NewEngine(directory, prefs, matches, botCfg.SearchConfig(), log),
		Browser:   browser.New(texts, matches, transport, log),
	}, botCfg, log)

	log.Info("bot starting", "transport", cfg.Transport, "session_backend", cfg.Session.Backend)
	return b.Start(ctx)
}
