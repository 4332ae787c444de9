package bot

import (
	"time"

	"github.com/example/matchbot/internal/search"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Candidates to gather before the member scan stops
	MinMatches int
	// Members requested per groups.getMembers call
	PageSize int
	// Pause before every photo request
	PhotoDelay time.Duration
	// Idle time after which an unfinished questionnaire is dropped
	SessionTTL time.Duration
	// Upper bound of events handled at the same time
	MaxWorkers int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		MinMatches: 25,
		PageSize:   1000,
		PhotoDelay: time.Second,
		SessionTTL: 30 * time.Minute,
		MaxWorkers: 8,
	}
}

// SearchConfig returns the search engine settings
func (c *BotConfig) SearchConfig() search.Config {
	return search.Config{
		MinMatches: c.MinMatches,
		PageSize:   c.PageSize,
		PhotoDelay: c.PhotoDelay,
	}
}
