package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const secretTokenPath = "/run/secrets/telegram_bot_token"

type Config struct {
	DBPath    string `envconfig:"DB_PATH"    default:"/root/data/bot.db"          validate:"required"`
	TablePath string `envconfig:"TABLE_PATH" default:"assets/prayer_times.json" validate:"required"`

	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	OwnerChatID   int64  `envconfig:"OWNER_CHAT_ID"`

	Timezone    string        `envconfig:"TIMEZONE"              default:"Asia/Beirut" validate:"required"`
	RollingDays int           `envconfig:"ROLLING_DAYS"          default:"2"           validate:"min=1,max=14"`
	WakeSlack   time.Duration `envconfig:"WAKE_SLACK"            default:"500ms"       validate:"min=0"`
	ReloadEvery time.Duration `envconfig:"TABLE_RELOAD_INTERVAL" default:"6h"`

	LogLevel  string `envconfig:"LOG_LEVEL"  default:"info" validate:"oneof=trace debug info warn error"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	Location *time.Location `ignored:"true" validate:"-"`
}

// Load reads .env (if any), the environment and the bot token secret.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(secretTokenPath)
}

func load(secretPath string) (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if tok := readSecret(secretPath); tok != "" {
		cfg.TelegramToken = tok
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("config: TIMEZONE: %w", err)
	}
	cfg.Location = loc
	return cfg, nil
}

// RequireBot checks the settings only the bot needs.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("config: bot token missing: neither %s nor TELEGRAM_BOT_TOKEN is set", secretTokenPath)
	}
	if c.OwnerChatID == 0 {
		return fmt.Errorf("config: OWNER_CHAT_ID is required")
	}
	return nil
}

// the Docker secret wins over the environment
func readSecret(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
