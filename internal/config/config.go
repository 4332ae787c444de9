package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport names accepted in BOT_TRANSPORT
const (
	TransportVK       = "vk"
	TransportTelegram = "telegram"
)

// Session backends accepted in SESSION_BACKEND
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

type Config struct {
	Transport string

	VK struct {
		GroupToken     string // bot token used for messages and long poll
		GroupID        int64
		Token          string // read token used for directory queries
		APIVersion     string
		RequestTimeout time.Duration
	}

	Telegram struct {
		Token string
	}

	DSN       string
	ConfigDir string

	Log struct {
		Mode  string
		Level string
		Dir   string
	}

	Session struct {
		Backend string
		TTL     time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	MaxWorkers int
	// SchedulerEnabled turns the periodic session sweep on
	SchedulerEnabled bool
}

// Load reads the .env file when present and the process environment.
// Missing secrets fail here instead of on first use
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return fromEnv()
}

// LoadDatabase is Load for the maintenance commands. Only DSN is required
func LoadDatabase() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := &Config{}
	cfg.DSN = strings.TrimSpace(os.Getenv("DSN"))
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}
	readLog(cfg)
	return cfg, nil
}

func readLog(cfg *Config) {
	cfg.Log.Mode = getEnv("LOG_MODE", "dev")
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Dir = getEnv("LOG_DIR", "")
}

func fromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.Transport = strings.ToLower(getEnv("BOT_TRANSPORT", TransportVK))
	switch cfg.Transport {
	case TransportVK:
		cfg.VK.GroupToken = strings.TrimSpace(os.Getenv("VK_GROUP_TOKEN"))
		if cfg.VK.GroupToken == "" {
			return nil, fmt.Errorf("VK_GROUP_TOKEN is required")
		}
		groupID, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("VK_GROUP_ID")), 10, 64)
		if err != nil || groupID <= 0 {
			return nil, fmt.Errorf("VK_GROUP_ID must be a positive number")
		}
		cfg.VK.GroupID = groupID
	case TransportTelegram:
		cfg.Telegram.Token = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
		if cfg.Telegram.Token == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
		}
	default:
		return nil, fmt.Errorf("unknown BOT_TRANSPORT %q", cfg.Transport)
	}

	cfg.VK.Token = strings.TrimSpace(os.Getenv("VK_TOKEN"))
	if cfg.VK.Token == "" {
		return nil, fmt.Errorf("VK_TOKEN is required")
	}
	cfg.VK.APIVersion = getEnv("VK_API_VERSION", "5.199")

	timeout, err := getEnvDuration("VK_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.VK.RequestTimeout = timeout

	cfg.DSN = strings.TrimSpace(os.Getenv("DSN"))
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}
	cfg.ConfigDir = getEnv("CONFIG_DIR", "configs")

	readLog(cfg)

	cfg.Session.Backend = strings.ToLower(getEnv("SESSION_BACKEND", SessionMemory))
	if cfg.Session.Backend != SessionMemory && cfg.Session.Backend != SessionRedis {
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.Session.Backend)
	}
	ttl, err := getEnvDuration("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Session.TTL = ttl

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.MaxWorkers, err = getEnvInt("MAX_WORKERS", 8); err != nil {
		return nil, err
	}
	if cfg.MaxWorkers < 1 {
		return nil, fmt.Errorf("MAX_WORKERS must be at least 1")
	}
	cfg.SchedulerEnabled = isTruthy(getEnv("ENABLE_SCHEDULER", "true"))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
