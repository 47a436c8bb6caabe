package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nurpe/tract-board/internal/model"
)

type HTTPConfig struct {
	Host string
	Port int
}

type SnapshotConfig struct {
	PollInterval time.Duration
	WSSendBuffer int
}

type UIConfig struct {
	DefaultUnit model.Unit
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Snapshot    SnapshotConfig
	UI          UIConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Snapshot: SnapshotConfig{
			PollInterval: time.Duration(v.GetInt("POLL_INTERVAL_MS")) * time.Millisecond,
			WSSendBuffer: v.GetInt("WS_SEND_BUFFER"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Snapshot.PollInterval == 0 {
		cfg.Snapshot.PollInterval = 500 * time.Millisecond
	}
	if cfg.Snapshot.WSSendBuffer == 0 {
		cfg.Snapshot.WSSendBuffer = 16
	}

	rawUnit := v.GetString("DEFAULT_UNIT")
	if rawUnit == "" {
		cfg.UI.DefaultUnit = model.UnitThousand
	} else {
		unit, err := model.ParseUnit(rawUnit)
		if err != nil {
			return nil, fmt.Errorf("DEFAULT_UNIT: %w", err)
		}
		cfg.UI.DefaultUnit = unit
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Snapshot.PollInterval < 50*time.Millisecond {
		return fmt.Errorf("POLL_INTERVAL_MS must be at least 50")
	}
	if cfg.Snapshot.WSSendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	return nil
}
