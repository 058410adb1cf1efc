package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	SiteAudit SiteAuditConfig `yaml:"site_audit" mapstructure:"site_audit"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp" mapstructure:"whatsapp"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	DefaultOwnerID string   `yaml:"default_owner_id" mapstructure:"default_owner_id"`
}

// PlacesConfig holds the business discovery provider settings.
type PlacesConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SiteAuditConfig holds the marketing-stack audit provider settings.
type SiteAuditConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WhatsAppConfig holds the outbound WhatsApp gateway settings.
type WhatsAppConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Key         string `yaml:"key" mapstructure:"key"`
	Instance    string `yaml:"instance" mapstructure:"instance"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for icebreaker generation.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResearchConfig configures discovery run behavior.
type ResearchConfig struct {
	DefaultQuantity int    `yaml:"default_quantity" mapstructure:"default_quantity"`
	MaxQuantity     int    `yaml:"max_quantity" mapstructure:"max_quantity"`
	DefaultTone     string `yaml:"default_tone" mapstructure:"default_tone"`
	MaxConcurrent   int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// BatchConfig configures sequential batch verification pacing.
type BatchConfig struct {
	DelayMS int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARCOLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.default_owner_id", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.timeout_secs", 30)
	v.SetDefault("site_audit.timeout_secs", 60)
	v.SetDefault("whatsapp.timeout_secs", 30)
	v.SetDefault("whatsapp.instance", "principal")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("research.default_quantity", 20)
	v.SetDefault("research.max_quantity", 100)
	v.SetDefault("research.default_tone", "consultivo")
	v.SetDefault("research.max_concurrent", 5)
	v.SetDefault("batch.delay_ms", 1500)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required by the given mode is
// present. Modes map to commands: serve, research, verify, outreach.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	case "research":
		requireStore()
		if c.Places.Key == "" {
			problems = append(problems, "places.key is required")
		}
		if c.Research.MaxQuantity < c.Research.DefaultQuantity {
			problems = append(problems, "research.max_quantity must be >= research.default_quantity")
		}
	case "verify":
		requireStore()
		if c.SiteAudit.BaseURL == "" {
			problems = append(problems, "site_audit.base_url is required")
		}
		if c.Batch.DelayMS < 0 {
			problems = append(problems, "batch.delay_ms must be >= 0")
		}
	case "outreach":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
