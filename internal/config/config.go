package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/martout2002/JBbot/internal/model"
)

// ErrNoCheckpoints is returned when no checkpoint has an image URL.
var ErrNoCheckpoints = errors.New("no checkpoints configured")

type Config struct {
	ServerPort        string
	DatabaseURL       string
	TelegramToken     string
	WebhookURL        string
	WebhookSecret     string
	PollInterval      time.Duration
	FetchTimeout      time.Duration
	NotifyConcurrency int
	AutostartMonitor  bool
	LogLevel          slog.Level

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	Checkpoints []model.Checkpoint
}

// checkpointFile is the layout of CHECKPOINTS_FILE.
type checkpointFile struct {
	Checkpoints []model.Checkpoint `yaml:"checkpoints"`
}

// defaultCheckpoints are the two land crossings with the crop boxes that
// frame the travel time overlay on their camera snapshots. URLs come from
// the environment.
func defaultCheckpoints() []model.Checkpoint {
	return []model.Checkpoint{
		{Name: "Tuas", Region: model.Region{Left: 50, Top: 330, Right: 500, Bottom: 450}},
		{Name: "Woodlands", Region: model.Region{Left: 1200, Top: 200, Right: 1700, Bottom: 300}},
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		TelegramToken:     getEnv("TELEGRAM_BOT_TOKEN", os.Getenv("TELEBOT_TOKEN")),
		WebhookURL:        os.Getenv("TELEGRAM_WEBHOOK_URL"),
		WebhookSecret:     os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		PollInterval:      getDuration("POLL_INTERVAL", 5*time.Minute),
		FetchTimeout:      getDuration("FETCH_TIMEOUT", 30*time.Second),
		NotifyConcurrency: getInt("NOTIFY_CONCURRENCY", 8),
		AutostartMonitor:  getBool("AUTOSTART_MONITOR", true),
		LogLevel:          getLevel("LOG_LEVEL", slog.LevelInfo),
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTTopic:         getEnv("MQTT_TOPIC", "jbbot/traffic"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "jbbot"),
	}

	checkpoints := defaultCheckpoints()
	if path := os.Getenv("CHECKPOINTS_FILE"); path != "" {
		fromFile, err := loadCheckpoints(path)
		if err != nil {
			return nil, err
		}
		checkpoints = fromFile
	}
	cfg.Checkpoints = resolveURLs(checkpoints)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("required environment variable DATABASE_URL is not set"))
	}
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("required environment variable TELEGRAM_BOT_TOKEN is not set"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if len(c.Checkpoints) == 0 {
		errs = append(errs, ErrNoCheckpoints)
	}
	return errors.Join(errs...)
}

func loadCheckpoints(path string) ([]model.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoints file: %w", err)
	}
	var f checkpointFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse checkpoints file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Checkpoints))
	for _, cp := range f.Checkpoints {
		if cp.Name == "" {
			return nil, fmt.Errorf("checkpoints file %s: checkpoint without name", path)
		}
		if seen[cp.Name] {
			return nil, fmt.Errorf("checkpoints file %s: duplicate checkpoint %q", path, cp.Name)
		}
		seen[cp.Name] = true
	}
	return f.Checkpoints, nil
}

// resolveURLs fills missing image URLs from <NAME>_CHECKPOINT_URL and drops
// checkpoints that still have none.
func resolveURLs(checkpoints []model.Checkpoint) []model.Checkpoint {
	out := make([]model.Checkpoint, 0, len(checkpoints))
	for _, cp := range checkpoints {
		if cp.ImageURL == "" {
			cp.ImageURL = os.Getenv(urlKey(cp.Name))
		}
		if cp.ImageURL == "" {
			slog.Warn("checkpoint has no image URL, skipping", "checkpoint", cp.Name, "env", urlKey(cp.Name))
			continue
		}
		out = append(out, cp)
	}
	return out
}

func urlKey(name string) string {
	key := strings.ToUpper(strings.Join(strings.Fields(name), "_"))
	return key + "_CHECKPOINT_URL"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}

func getLevel(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		slog.Warn("invalid log level for env var, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return lvl
}
