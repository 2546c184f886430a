package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type TrackingConfig struct {
	SyncInterval    time.Duration
	StartFixTimeout time.Duration
}

type LocalConfig struct {
	DBPath string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Tracking    TrackingConfig
	Local       LocalConfig
	AMQP        AMQPConfig
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
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Tracking: TrackingConfig{
			SyncInterval:    v.GetDuration("TRACKING_SYNC_INTERVAL"),
			StartFixTimeout: v.GetDuration("START_FIX_TIMEOUT"),
		},
		Local: LocalConfig{
			DBPath: v.GetString("LOCAL_DB_PATH"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
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
	if cfg.Tracking.SyncInterval == 0 {
		cfg.Tracking.SyncInterval = 10 * time.Second
	}
	if cfg.Tracking.StartFixTimeout == 0 {
		cfg.Tracking.StartFixTimeout = 30 * time.Second
	}
	if cfg.Local.DBPath == "" {
		cfg.Local.DBPath = "dispatch-local.db"
	}
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "dispatch_topic"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}
