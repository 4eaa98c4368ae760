package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// ConfigError reports a missing or invalid setting
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Duration is a time.Duration that decodes from strings such as "1h"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type ServerConfig struct {
	Port            string   `toml:"port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	IdleTimeout     Duration `toml:"idle_timeout"`
	RequestTimeout  Duration `toml:"request_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Store string `toml:"store"` // "postgres" or "memory"
	URL   string `toml:"url"`
}

type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	Email     string   `toml:"email"`
	Password  string   `toml:"password"` // plaintext, or a bcrypt hash starting with "$2"
	TokenTTL  Duration `toml:"token_ttl"`
	Issuer    string   `toml:"issuer"`
}

type CacheConfig struct {
	// TTL > 0 enables the enabled-rules cache
	TTL Duration `toml:"ttl"`
}

type LogConfig struct {
	Level           string `toml:"level"`
	ErrorSampleRate int    `toml:"error_sample_rate"`
	OTELEnabled     bool   `toml:"otel_enabled"`
	OTELServiceName string `toml:"otel_service_name"`
}

// Config is the full service configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "4000",
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			IdleTimeout:     Duration{60 * time.Second},
			RequestTimeout:  Duration{60 * time.Second},
			ShutdownTimeout: Duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Store: StorePostgres,
		},
		Auth: AuthConfig{
			TokenTTL: Duration{time.Hour},
			Issuer:   "inbox-rules",
		},
		Log: LogConfig{
			Level:           "INFO",
			ErrorSampleRate: 1,
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path, and then environment variables read through getenv
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile decodes the TOML file at path over cfg. Unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}

	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *Duration) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return &ConfigError{Key: key, Reason: err.Error()}
		}
		return nil
	}

	setString("PORT", &cfg.Server.Port)
	setString("STORE", &cfg.Database.Store)
	setString("DATABASE_URL", &cfg.Database.URL)
	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("AUTH_EMAIL", &cfg.Auth.Email)
	setString("AUTH_PASSWORD", &cfg.Auth.Password)
	setString("TOKEN_ISSUER", &cfg.Auth.Issuer)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("OTEL_SERVICE_NAME", &cfg.Log.OTELServiceName)

	if err := setDuration("TOKEN_TTL", &cfg.Auth.TokenTTL); err != nil {
		return err
	}
	if err := setDuration("RULES_CACHE_TTL", &cfg.Cache.TTL); err != nil {
		return err
	}

	if v := getenv("ERROR_SAMPLE_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			return &ConfigError{Key: "ERROR_SAMPLE_RATE", Reason: "must be a positive integer"}
		}
		cfg.Log.ErrorSampleRate = rate
	}

	if v := getenv("OTEL_ENABLED"); v != "" {
		cfg.Log.OTELEnabled = strings.EqualFold(v, "true")
	}

	return nil
}

// Validate fails fast on settings the service cannot start without
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return &ConfigError{Key: "JWT_SECRET", Reason: "required"}
	}

	switch c.Database.Store {
	case StorePostgres:
		if c.Database.URL == "" {
			return &ConfigError{Key: "DATABASE_URL", Reason: "required when store is postgres"}
		}
	case StoreMemory:
	default:
		return &ConfigError{Key: "STORE", Reason: fmt.Sprintf("unknown store %q (use: postgres, memory)", c.Database.Store)}
	}

	if c.Auth.TokenTTL.Duration <= 0 {
		return &ConfigError{Key: "TOKEN_TTL", Reason: "must be positive"}
	}

	return nil
}
