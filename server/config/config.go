// Package config loads the relay's settings from relay.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Addr              string  `mapstructure:"RELAY_ADDR"`
	SocketPath        string  `mapstructure:"SOCKET_PATH"`
	JWTSecret         string  `mapstructure:"JWT_SECRET"`
	Env               string  `mapstructure:"ENV"`
	LogLevel          string  `mapstructure:"LOG_LEVEL"`
	MessagesPerSecond float64 `mapstructure:"MESSAGES_PER_SECOND"`
	OTLPEndpoint      string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	v.SetDefault("RELAY_ADDR", ":4000")
	v.SetDefault("SOCKET_PATH", "/ws")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MESSAGES_PER_SECOND", 5)
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
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}
