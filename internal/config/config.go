package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Env           string        `mapstructure:"ENV"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	LogFile       string        `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int           `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int           `mapstructure:"LOG_MAX_BACKUPS"`
	DataDir       string        `mapstructure:"DATA_DIR"`
	OutputDir     string        `mapstructure:"OUTPUT_DIR"`
	NoticeFormat  string        `mapstructure:"NOTICE_FORMAT"`
	NoticeFrom    string        `mapstructure:"NOTICE_FROM"`
	IOTimeout     time.Duration `mapstructure:"IO_TIMEOUT"`
	PhoneRegion   string        `mapstructure:"PHONE_REGION"`
	MetricsFile   string        `mapstructure:"METRICS_FILE"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS",
	"DATA_DIR", "OUTPUT_DIR", "NOTICE_FORMAT", "NOTICE_FROM", "IO_TIMEOUT",
	"PHONE_REGION", "METRICS_FILE",
}

// Load reads configuration from a .env file in the working directory, if one
// exists, and from the environment. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 10)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("OUTPUT_DIR", "output")
	v.SetDefault("NOTICE_FORMAT", "text")
	v.SetDefault("NOTICE_FROM", "noreply@clinic.local")
	v.SetDefault("IO_TIMEOUT", "5s")
	v.SetDefault("PHONE_REGION", "GB")
	v.SetDefault("METRICS_FILE", "")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.NoticeFormat = strings.ToLower(strings.TrimSpace(cfg.NoticeFormat))
	cfg.PhoneRegion = strings.ToUpper(strings.TrimSpace(cfg.PhoneRegion))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the parsed log level. Validate guarantees it parses.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level: %w", c.LogLevel, err)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	switch c.NoticeFormat {
	case "text", "eml", "both":
	default:
		return fmt.Errorf("NOTICE_FORMAT must be \"text\", \"eml\", or \"both\", got %q", c.NoticeFormat)
	}
	if c.NoticeFormat != "text" && !strings.Contains(c.NoticeFrom, "@") {
		return fmt.Errorf("NOTICE_FROM must be an email address when NOTICE_FORMAT is %q", c.NoticeFormat)
	}
	if c.IOTimeout <= 0 {
		return fmt.Errorf("IO_TIMEOUT must be positive, got %s", c.IOTimeout)
	}
	if phonenumbers.GetCountryCodeForRegion(c.PhoneRegion) == 0 {
		return fmt.Errorf("PHONE_REGION %q is not a known region code", c.PhoneRegion)
	}
	if c.LogFile != "" && (c.LogMaxSizeMB <= 0 || c.LogMaxBackups < 0) {
		return fmt.Errorf("LOG_MAX_SIZE_MB must be positive and LOG_MAX_BACKUPS non-negative when LOG_FILE is set")
	}
	return nil
}
