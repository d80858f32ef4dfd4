package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	AppName     = "listlift"
	EnvFileName = "config.env"
)

// Config holds all client configuration loaded from environment variables.
type Config struct {
	API     APIConfig
	Store   StoreConfig
	Log     LogConfig
	Ebay    EbayConfig
	Billing BillingConfig
	Gemini  GeminiConfig
	Alerts  AlertsConfig
}

// APIConfig points at the listing backend.
type APIConfig struct {
	BaseURL string        `envconfig:"LISTLIFT_API_URL" default:"https://api.listlift.app"`
	Timeout time.Duration `envconfig:"LISTLIFT_API_TIMEOUT" default:"30s"`
}

// StoreConfig selects the local state medium.
type StoreConfig struct {
	Backend string `envconfig:"LISTLIFT_STORE_BACKEND" default:"sqlite"` // sqlite, redis or memory
	DBPath  string `envconfig:"LISTLIFT_DB_PATH"`
	// Key is the passphrase used to seal the account record. Empty disables sealing.
	Key      string `envconfig:"LISTLIFT_STORE_KEY"`
	PhotoDir string `envconfig:"LISTLIFT_PHOTO_DIR"`

	RedisHost      string `envconfig:"LISTLIFT_REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"LISTLIFT_REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"LISTLIFT_REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"LISTLIFT_REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"LISTLIFT_REDIS_PREFIX" default:"listlift:"`
}

type LogConfig struct {
	Level string `envconfig:"LISTLIFT_LOG_LEVEL" default:"info"`
	File  string `envconfig:"LISTLIFT_LOG_FILE"`
}

type EbayConfig struct {
	ClientID    string `envconfig:"EBAY_CLIENT_ID" default:"LISTLIFT"`
	RedirectURI string `envconfig:"EBAY_REDIRECT_URI" default:"listlift://auth"`
}

type BillingConfig struct {
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

type GeminiConfig struct {
	APIKey string `envconfig:"GEMINI_API_KEY"`
}

// AlertsConfig controls where sale alerts go.
type AlertsConfig struct {
	Desktop       bool   `envconfig:"LISTLIFT_DESKTOP_ALERTS" default:"true"`
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChat  int64  `envconfig:"TELEGRAM_CHAT_ID"`
	SalesChannel  string `envconfig:"LISTLIFT_SALES_CHANNEL" default:"listlift:sales"`
}

// RedisAddress returns the Redis address in host:port format.
func (s *StoreConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// TelegramEnabled reports whether a bot token and chat are both set.
func (a *AlertsConfig) TelegramEnabled() bool {
	return a.TelegramToken != "" && a.TelegramChat != 0
}

// Dir returns the per-user directory for config and data.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory, then from .env in the working directory. Errors are
// ignored since the files may not exist.
func LoadEnvFile() {
	if dir, err := Dir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, EnvFileName))
	}
	_ = godotenv.Load()
}

// Load reads configuration from environment variables. Paths left unset
// default to the user config directory.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Store.DBPath == "" || cfg.Store.PhotoDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		if cfg.Store.DBPath == "" {
			cfg.Store.DBPath = filepath.Join(dir, "listlift.db")
		}
		if cfg.Store.PhotoDir == "" {
			cfg.Store.PhotoDir = filepath.Join(dir, "photos")
		}
	}

	return &cfg, nil
}
