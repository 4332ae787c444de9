// Package botconfig loads the command, keyboard and message tables the bot
// talks with. The tables are read once at start-up and validated there, so a
// broken document stops the process instead of failing on first use
package botconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/matchbot/internal/messaging"
)

// Command names. The same names are used as "command" in button payloads
const (
	CmdStart          = "start"
	CmdConfigure      = "configure_search_settings"
	CmdStartSearching = "start_searching"
	CmdShowMatches    = "show_matches"
	CmdNextMatch      = "next_match"
	CmdMainMenu       = "main_menu"
	CmdSkipAge        = "skip_age"
	CmdSexAny         = "sex_any"
	CmdSexFemale      = "sex_female"
	CmdSexMale        = "sex_male"
)

// Keyboard names
const (
	KbStart             = "start"
	KbMainMenu          = "main_menu"
	KbConfigureAge      = "configure_age"
	KbConfigureSex      = "configure_sex"
	KbConfigureRelation = "configure_relation"
	KbNextMatch         = "next_match"
	KbReturnToMenu      = "return_to_menu"
)

// Message template keys
const (
	MsgError                  = "error"
	MsgStart                  = "start"
	MsgMainMenu               = "main_menu"
	MsgUnknownCommand         = "unknown_command"
	MsgConfigureAge           = "configure_age"
	MsgAgeFormatError         = "configure_age_format_error"
	MsgAgeRangeError          = "configure_age_out_of_range_error"
	MsgConfigureSex           = "configure_sex"
	MsgSexError               = "configure_sex_error"
	MsgConfigureCity          = "configure_city"
	MsgCityNotFound           = "configure_city_not_found_error"
	MsgConfigureRelation      = "configure_relation"
	MsgRelationError          = "configure_relation_error"
	MsgConfigureSuccess       = "configure_search_settings_success"
	MsgStartSearching         = "start_searching_matches"
	MsgEndSearching           = "end_searching_matches"
	MsgEndSearchingPartial    = "end_searching_matches_partial"
	MsgSearchAlreadyRunning   = "search_already_running"
	MsgSearchSettingsMissing  = "search_settings_missing"
	MsgSearchCommunityMissing = "search_community_not_found"
	MsgNoMatches              = "no_matches"
	MsgMatchesFound           = "matches_found"
	MsgMatchCard              = "match_card"
	MsgPersistenceError       = "persistence_error"
	MsgServiceUnavailable     = "service_unavailable"
	MsgRateLimited            = "rate_limited"
)

var (
	requiredCommands = []string{
		CmdStart, CmdConfigure, CmdStartSearching, CmdShowMatches, CmdNextMatch,
		CmdSkipAge, CmdSexAny, CmdSexFemale, CmdSexMale,
	}
	requiredKeyboards = []string{
		KbStart, KbMainMenu, KbConfigureAge, KbConfigureSex, KbConfigureRelation,
		KbNextMatch, KbReturnToMenu,
	}
	requiredMessages = []string{
		MsgError, MsgStart, MsgUnknownCommand,
		MsgConfigureAge, MsgAgeFormatError, MsgAgeRangeError,
		MsgConfigureSex, MsgSexError, MsgConfigureCity, MsgCityNotFound,
		MsgConfigureRelation, MsgRelationError, MsgConfigureSuccess,
		MsgStartSearching, MsgEndSearching, MsgEndSearchingPartial, MsgSearchAlreadyRunning,
		MsgSearchSettingsMissing, MsgSearchCommunityMissing,
		MsgNoMatches, MsgMatchesFound, MsgMatchCard,
		MsgPersistenceError, MsgServiceUnavailable, MsgRateLimited,
	}
)

// Config holds the three tables
type Config struct {
	Commands  Commands
	Keyboards map[string]*messaging.Keyboard
	Messages  Messages
}

// Commands maps a canonical command to its accepted phrases
type Commands map[string][]string

// Matches reports whether text (already normalised) is one of the phrases of command
func (c Commands) Matches(command, text string) bool {
	for _, phrase := range c[command] {
		if phrase == text {
			return true
		}
	}
	return false
}

// Messages maps a template key to its text
type Messages map[string]string

// Load reads commands.json, keyboards.json and messages.json from dir
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	if err := readJSON(filepath.Join(dir, "commands.json"), &cfg.Commands); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "keyboards.json"), &cfg.Keyboards); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, "messages.json"), &cfg.Messages); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// normalize lower-cases and trims command phrases so they compare against
// normalised input
func (c *Config) normalize() {
	for name, phrases := range c.Commands {
		out := make([]string, 0, len(phrases))
		for _, p := range phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				out = append(out, p)
			}
		}
		c.Commands[name] = out
	}
}

// Validate checks that every required entry exists and that keyboards respect
// platform limits
func (c *Config) Validate() error {
	var problems []string
	for _, name := range requiredCommands {
		if len(c.Commands[name]) == 0 {
			problems = append(problems, fmt.Sprintf("command %q has no phrases", name))
		}
	}
	for _, name := range requiredKeyboards {
		if c.Keyboards[name] == nil {
			problems = append(problems, fmt.Sprintf("keyboard %q is missing", name))
		}
	}
	names := make([]string, 0, len(c.Keyboards))
	for name := range c.Keyboards {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if kb := c.Keyboards[name]; kb != nil {
			if err := kb.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("keyboard %q: %v", name, err))
			}
		}
	}
	for _, key := range requiredMessages {
		if strings.TrimSpace(c.Messages[key]) == "" {
			problems = append(problems, fmt.Sprintf("message %q is missing", key))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid bot config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Message returns the template for key or the generic error text
func (c *Config) Message(key string) string {
	if msg, ok := c.Messages[key]; ok && msg != "" {
		return msg
	}
	return c.Messages[MsgError]
}

// Render fills {name} placeholders of the template key from vars
func (c *Config) Render(key string, vars map[string]string) string {
	msg := c.Message(key)
	if len(vars) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Keyboard returns a copy of the named keyboard, or nil if there is none
func (c *Config) Keyboard(name string) *messaging.Keyboard {
	return c.Keyboards[name].Clone()
}
