package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"rezervacia/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Events     EventsConfig     `yaml:"events"`
	Exports    ExportConfig     `yaml:"exports"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// APIAuthConfig protects the back-office endpoints. The public wizard
// endpoints are only rate limited.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
	// NotifyChatIDs receive a message for every booking created.
	NotifyChatIDs []int64 `yaml:"notify_chat_ids"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Interval      string `yaml:"interval"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

// IntervalDuration parses Interval, falling back to 24h.
func (b BackupConfig) IntervalDuration() time.Duration {
	if d, err := time.ParseDuration(b.Interval); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// BookingConfig drives the wizard and the slot rule.
type BookingConfig struct {
	Timezone                string   `yaml:"timezone"`
	WindowDays              int      `yaml:"window_days"`
	SlotStepMinutes         int      `yaml:"slot_step_minutes"`
	WeekdayOpen             string   `yaml:"weekday_open"`
	WeekdayClose            string   `yaml:"weekday_close"`
	WeekendOpen             string   `yaml:"weekend_open"`
	WeekendClose            string   `yaml:"weekend_close"`
	BlockedTimes            []string `yaml:"blocked_times"`
	SlotDelayMs             int      `yaml:"slot_delay_ms"`
	SubmitTimeoutSeconds    int      `yaml:"submit_timeout_seconds"`
	SessionTTLMinutes       int      `yaml:"session_ttl_minutes"`
	CheckReservations       bool     `yaml:"check_reservations"`
	SubmitRateLimit         int      `yaml:"submit_rate_limit"`
	SubmitRateWindowSeconds int      `yaml:"submit_rate_window_seconds"`
}

func (b BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

func (b BookingConfig) SlotStep() time.Duration {
	return time.Duration(b.SlotStepMinutes) * time.Minute
}

func (b BookingConfig) SlotDelay() time.Duration {
	return time.Duration(b.SlotDelayMs) * time.Millisecond
}

func (b BookingConfig) SubmitTimeout() time.Duration {
	return time.Duration(b.SubmitTimeoutSeconds) * time.Second
}

func (b BookingConfig) SessionTTL() time.Duration {
	return time.Duration(b.SessionTTLMinutes) * time.Minute
}

func (b BookingConfig) SubmitRateWindow() time.Duration {
	return time.Duration(b.SubmitRateWindowSeconds) * time.Second
}

// EventsConfig configures forwarding of booking events to a broker.
// An empty AMQPURL keeps events in-process.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse expands environment variables in raw YAML and decodes it.
func Parse(data []byte) (*Config, error) {
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}

	for name, value := range map[string]string{
		"weekday_open":  c.Booking.WeekdayOpen,
		"weekday_close": c.Booking.WeekdayClose,
		"weekend_open":  c.Booking.WeekendOpen,
		"weekend_close": c.Booking.WeekendClose,
	} {
		if _, err := time.Parse(models.TimeLayout, value); err != nil {
			return fmt.Errorf("booking.%s must be HH:MM, got %q", name, value)
		}
	}
	for _, b := range c.Booking.BlockedTimes {
		if _, err := time.Parse(models.TimeLayout, b); err != nil {
			return fmt.Errorf("booking.blocked_times: invalid time %q", b)
		}
	}

	if c.API.Auth.Enabled {
		for _, k := range c.API.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("api key %q has empty key", k.Name)
			}
		}
	}

	return nil
}

// ValidateTelegram is checked only by the bot binary.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "rezervacia.events"
	}

	b := &c.Booking
	if b.Timezone == "" {
		b.Timezone = models.DefaultTimezone
	}
	if b.WindowDays <= 0 {
		b.WindowDays = models.DefaultWindowDays
	}
	if b.SlotStepMinutes <= 0 {
		b.SlotStepMinutes = models.DefaultSlotStepMinutes
	}
	if b.WeekdayOpen == "" {
		b.WeekdayOpen = models.DefaultWeekdayOpen
	}
	if b.WeekdayClose == "" {
		b.WeekdayClose = models.DefaultWeekdayClose
	}
	if b.WeekendOpen == "" {
		b.WeekendOpen = models.DefaultWeekendOpen
	}
	if b.WeekendClose == "" {
		b.WeekendClose = models.DefaultWeekendClose
	}
	if b.BlockedTimes == nil {
		b.BlockedTimes = append([]string(nil), models.DefaultBlockedTimes...)
	}
	if b.SubmitTimeoutSeconds <= 0 {
		b.SubmitTimeoutSeconds = models.DefaultSubmitTimeout
	}
	if b.SessionTTLMinutes <= 0 {
		b.SessionTTLMinutes = models.DefaultSessionTTL
	}
	if b.SubmitRateLimit <= 0 {
		b.SubmitRateLimit = models.DefaultSubmitRateLimit
	}
	if b.SubmitRateWindowSeconds <= 0 {
		b.SubmitRateWindowSeconds = models.DefaultSubmitRateWindow
	}
}
