// Package config handles loading and validating the sky-tts configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the sky-tts daemon.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Accounts  AccountsConfig  `mapstructure:"accounts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds the API and health server settings.
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	HealthPort int `mapstructure:"health_port"`
}

// StorageConfig holds the on-disk audio layout.
type StorageConfig struct {
	AudioDir   string `mapstructure:"audio_dir"`
	PreviewDir string `mapstructure:"preview_dir"`
}

// ProvidersConfig configures each synthesis backend. The streaming neural
// provider and the phonetic fallback need no credentials and are always on.
type ProvidersConfig struct {
	Edge      EdgeConfig      `mapstructure:"edge"`
	Polly     PollyConfig     `mapstructure:"polly"`
	Bark      BarkConfig      `mapstructure:"bark"`
	SpeechKit SpeechKitConfig `mapstructure:"speechkit"`
}

// EdgeConfig configures the streaming neural provider.
type EdgeConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// PollyConfig configures the managed cloud provider. Credentials come from
// the standard AWS environment or shared config files.
type PollyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Engine  string `mapstructure:"engine"`
}

// BarkConfig configures the local generative provider.
type BarkConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	ModelDir string `mapstructure:"model_dir"`
}

// SpeechKitConfig configures the regional cloud provider.
type SpeechKitConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	FolderID string `mapstructure:"folder_id"`
}

// AccountsConfig enables user accounts and payments. With Enabled false the
// API serves anonymously at the free character ceiling.
type AccountsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DatabaseURL   string `mapstructure:"database_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./skytts.yaml, ./configs/skytts.yaml, /etc/skytts/skytts.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("storage.audio_dir", "static/audio")
	v.SetDefault("storage.preview_dir", "static/previews")
	v.SetDefault("providers.edge.timeout_seconds", 30)
	v.SetDefault("providers.polly.enabled", false)
	v.SetDefault("providers.polly.region", "us-east-1")
	v.SetDefault("providers.polly.engine", "standard")
	v.SetDefault("providers.bark.enabled", false)
	v.SetDefault("providers.bark.endpoint", "http://127.0.0.1:8351")
	v.SetDefault("providers.speechkit.enabled", false)
	v.SetDefault("accounts.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("skytts")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/skytts")
	}

	// Environment variables: SKYTTS_SERVER_PORT, SKYTTS_PROVIDERS_POLLY_ENABLED, etc.
	v.SetEnvPrefix("SKYTTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional — env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${SPEECHKIT_API_KEY}")
	cfg.Providers.SpeechKit.APIKey = resolveEnvRef(cfg.Providers.SpeechKit.APIKey)
	cfg.Accounts.DatabaseURL = resolveEnvRef(cfg.Accounts.DatabaseURL)
	cfg.Accounts.WebhookSecret = resolveEnvRef(cfg.Accounts.WebhookSecret)

	if cfg.Accounts.Enabled && cfg.Accounts.DatabaseURL == "" {
		return nil, fmt.Errorf("accounts.enabled requires accounts.database_url")
	}
	if cfg.Providers.SpeechKit.Enabled && (cfg.Providers.SpeechKit.APIKey == "" || cfg.Providers.SpeechKit.FolderID == "") {
		return nil, fmt.Errorf("providers.speechkit.enabled requires api_key and folder_id")
	}

	return &cfg, nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
