package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the client configuration values.
type Config struct {
	APIURL     string `mapstructure:"API_URL"`
	SocketPath string `mapstructure:"SOCKET_PATH"`
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// Local state persistence.
	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	StorePath     string `mapstructure:"STORE_PATH"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	HTTPTimeoutSeconds int `mapstructure:"HTTP_TIMEOUT"`

	// Set when the backend echoes clientKey on chat messages.
	ChatEchoClientKeys bool `mapstructure:"CHAT_ECHO_CLIENT_KEYS"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// HTTPTimeout returns the per-request timeout of the API client.
func (c Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// IsProduction reports whether the client runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads config.yaml (from the working directory, ./config, or the
// explicit file path when given) and overlays environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	v.SetDefault("API_URL", "https://mechanic.internalops.pro")
	v.SetDefault("SOCKET_PATH", "/ws")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", "file")
	v.SetDefault("STORE_PATH", ".mechanic/state.json")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HTTP_TIMEOUT", 15)
	v.SetDefault("CHAT_ECHO_CLIENT_KEYS", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	switch cfg.StoreBackend {
	case "file", "redis", "memory":
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}
