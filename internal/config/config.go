package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL        string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret          string `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiryH         int    `env:"JWT_EXPIRY_H" envDefault:"24"`
	DocumentSealSecret string `env:"DOCUMENT_SEAL_SECRET,required,notEmpty"`
	Port               int    `env:"PORT" envDefault:"8080"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv             string `env:"APP_ENV" envDefault:"production"`

	MinWithdrawal string `env:"MIN_WITHDRAWAL" envDefault:"100.00"`
	ArtifactDir   string `env:"ARTIFACT_DIR" envDefault:"./data/artifacts"`

	NotifierURL      string `env:"NOTIFIER_URL"`
	NotifierTimeoutS int    `env:"NOTIFIER_TIMEOUT_S" envDefault:"5"`

	DeliveryPollIntervalS int `env:"DELIVERY_POLL_INTERVAL_S" envDefault:"30"`
	DeliveryMaxAttempts   int `env:"DELIVERY_MAX_ATTEMPTS" envDefault:"5"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectAttempts  int `env:"DB_CONNECT_ATTEMPTS" envDefault:"30"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.MinWithdrawalAmount(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) MinWithdrawalAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.MinWithdrawal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("MIN_WITHDRAWAL %q: %w", c.MinWithdrawal, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("MIN_WITHDRAWAL %q: must not be negative", c.MinWithdrawal)
	}
	return d, nil
}

func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryH) * time.Hour
}

func (c *Config) DeliveryPollInterval() time.Duration {
	return time.Duration(c.DeliveryPollIntervalS) * time.Second
}

func (c *Config) NotifierTimeout() time.Duration {
	return time.Duration(c.NotifierTimeoutS) * time.Second
}
