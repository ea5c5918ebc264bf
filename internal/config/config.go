package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Token        string     `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64    `env:"ALLOWED_USERS"`
	DBPath       string     `env:"DB_PATH"                 envDefault:"db.sqlite"`
	LogLevel     slog.Level `env:"LOG_LEVEL"               envDefault:"INFO"`
	MetricsAddr  string     `env:"METRICS_ADDR"`

	MinRequestInterval time.Duration `env:"MIN_REQUEST_INTERVAL" envDefault:"1s"`
	MaxRetries         int           `env:"MAX_RETRIES"          envDefault:"3"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT"         envDefault:"2m"`

	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-4.1"`

	AnthropicBaseURL   string `env:"ANTHROPIC_BASE_URL"   envDefault:"https://api.anthropic.com/v1"`
	AnthropicModel     string `env:"ANTHROPIC_MODEL"      envDefault:"claude-3-haiku-20240307"`
	AnthropicVersion   string `env:"ANTHROPIC_VERSION"    envDefault:"2023-06-01"`
	AnthropicMaxTokens int    `env:"ANTHROPIC_MAX_TOKENS" envDefault:"4000"`

	RegionalLanguage string `env:"REGIONAL_LANGUAGE" envDefault:"Romanian"`
	FallbackLanguage string `env:"FALLBACK_LANGUAGE" envDefault:"English"`

	ExtractContent   bool          `env:"EXTRACT_CONTENT"    envDefault:"true"`
	ExtractMaxChars  int           `env:"EXTRACT_MAX_CHARS"  envDefault:"4000"`
	ExtractTimeout   time.Duration `env:"EXTRACT_TIMEOUT"    envDefault:"20s"`
	ExtractCacheSize int           `env:"EXTRACT_CACHE_SIZE" envDefault:"256"`
	ExtractCacheTTL  time.Duration `env:"EXTRACT_CACHE_TTL"  envDefault:"30m"`

	VerifySpec            string `env:"VERIFY_SPEC"              envDefault:"0 4 * * *"`
	UserRequestsPerMinute int    `env:"USER_REQUESTS_PER_MINUTE" envDefault:"6"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.MinRequestInterval <= 0 {
		errs = append(errs, errors.New("MIN_REQUEST_INTERVAL must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.ExtractMaxChars <= 0 {
		errs = append(errs, errors.New("EXTRACT_MAX_CHARS must be positive"))
	}
	if c.ExtractTimeout <= 0 {
		errs = append(errs, errors.New("EXTRACT_TIMEOUT must be positive"))
	}
	if c.ExtractCacheSize < 0 {
		errs = append(errs, errors.New("EXTRACT_CACHE_SIZE must not be negative"))
	}
	if c.UserRequestsPerMinute <= 0 {
		errs = append(errs, errors.New("USER_REQUESTS_PER_MINUTE must be positive"))
	}
	if _, err := cron.ParseStandard(c.VerifySpec); err != nil {
		errs = append(errs, fmt.Errorf("VERIFY_SPEC is invalid: %w", err))
	}

	return errors.Join(errs...)
}
