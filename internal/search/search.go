// Package search finds candidates for a user among the members of the top VK
// community of the user's preferred city
package search

import (
	"context"
	"errors"
	"time"

	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/internal/logger"
	"github.com/example/matchbot/internal/vk"
	"github.com/example/matchbot/pkg/models"
)

// ErrNoPreferences is returned when the user has not configured the search yet
var ErrNoPreferences = errors.New("search preferences are not configured")

// Directory is the part of the VK directory the engine needs
type Directory interface {
	SearchCommunity(ctx context.Context, cityID int64, query string) (*vk.Community, error)
	GetMembers(ctx context.Context, communityID int64, offset, count int) ([]vk.Profile, error)
	GetLatestPhoto(ctx context.Context, userID int64) (*vk.Photo, error)
}

// PreferencesReader loads stored preferences
type PreferencesReader interface {
	Get(ctx context.Context, userID int64) (*models.SearchPreferences, error)
}

// MatchSaver stores found candidates
type MatchSaver interface {
	SaveMatches(ctx context.Context, userID int64, matches []models.Match) (int, error)
}

// Config tunes the member scan
type Config struct {
	// MinMatches stops paging once this many candidates are gathered
	MinMatches int
	PageSize   int
	// PhotoDelay is waited before every photo request
	PhotoDelay time.Duration
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		MinMatches: 25,
		PageSize:   vk.MembersPageSize,
		PhotoDelay: time.Second,
	}
}

// Result summarises one run
type Result struct {
	Community  vk.Community
	Scanned    int
	Candidates int
	Saved      int
	// Truncated is set when a directory error cut the member scan short
	Truncated bool
}

// Engine runs candidate searches
type Engine struct {
	dir     Directory
	prefs   PreferencesReader
	matches MatchSaver
	cfg     Config
	log     *logger.Logger
}

// NewEngine creates a search engine
func NewEngine(dir Directory, prefs PreferencesReader, matches MatchSaver, cfg Config, log *logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.MinMatches <= 0 {
		cfg.MinMatches = def.MinMatches
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.PhotoDelay < 0 {
		cfg.PhotoDelay = 0
	}
	return &Engine{
		dir:     dir,
		prefs:   prefs,
		matches: matches,
		cfg:     cfg,
		log:     log.With("component", "search"),
	}
}

// Eligible reports whether a member satisfies the preferences. A preferred
// sex of 0 accepts anyone
func Eligible(prefs *models.SearchPreferences, p vk.Profile) bool {
	if prefs.Sex != models.SexAny && p.Sex != prefs.Sex {
		return false
	}
	return p.CityID() == prefs.CityID && p.CanMessage()
}

// Run searches candidates for userID and stores them
func (e *Engine) Run(ctx context.Context, userID int64) (*Result, error) {
	prefs, err := e.prefs.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrNoPreferences
	}
	if err != nil {
		return nil, err
	}

	community, err := e.dir.SearchCommunity(ctx, prefs.CityID, prefs.CityTitle)
	if err != nil {
		return nil, err
	}
	log := e.log.With("user_id", userID, "community_id", community.ID)
	log.Info("search started", "city_id", prefs.CityID, "sex", prefs.Sex)

	res := &Result{Community: *community}
	candidates := e.collect(ctx, log, prefs, community.ID, res)
	res.Candidates = len(candidates)

	found, err := e.attachPhotos(ctx, log, candidates)
	if err != nil {
		return nil, err
	}

	saved, err := e.matches.SaveMatches(ctx, userID, found)
	if err != nil {
		return nil, err
	}
	res.Saved = saved
	log.Info("search finished", "scanned", res.Scanned, "candidates", res.Candidates, "saved", saved, "truncated", res.Truncated)
	return res, nil
}

// collect pages through the community until enough candidates are found or
// the member list ends
func (e *Engine) collect(ctx context.Context, log *logger.Logger, prefs *models.SearchPreferences, communityID int64, res *Result) []vk.Profile {
	var (
		candidates []vk.Profile
		seen       = make(map[int64]struct{})
		offset     = 0
	)
	for len(candidates) < e.cfg.MinMatches {
		page, err := e.dir.GetMembers(ctx, communityID, offset, e.cfg.PageSize)
		if err != nil {
			log.Warn("member scan truncated", "offset", offset, "error", err)
			res.Truncated = true
			break
		}
		res.Scanned += len(page)
		for _, p := range page {
			if _, dup := seen[p.ID]; dup || !Eligible(prefs, p) {
				continue
			}
			seen[p.ID] = struct{}{}
			candidates = append(candidates, p)
		}
		log.Debug("members page scanned", "offset", offset, "size", len(page), "candidates", len(candidates))

		offset += len(page)
		if len(page) < e.cfg.PageSize {
			break
		}
	}
	return candidates
}

// attachPhotos builds matches, fetching the latest profile photo of every
// candidate whose photos are readable
func (e *Engine) attachPhotos(ctx context.Context, log *logger.Logger, candidates []vk.Profile) ([]models.Match, error) {
	out := make([]models.Match, 0, len(candidates))
	for _, p := range candidates {
		m := models.Match{
			MatchID:    p.ID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			ProfileURL: models.VKProfileURL(p.ID),
		}
		if !p.PhotosHidden() {
			if err := e.wait(ctx); err != nil {
				return nil, err
			}
			photo, err := e.dir.GetLatestPhoto(ctx, p.ID)
			switch {
			case err != nil:
				log.Warn("failed to get photo", "match_id", p.ID, "error", err)
			case photo != nil:
				m.Photo = photo.Attachment()
				m.PhotoURL = photo.LargestURL()
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *Engine) wait(ctx context.Context) error {
	if e.cfg.PhotoDelay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.cfg.PhotoDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
