package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	GatewayBaseURL     string        `env:"GATEWAY_BASE_URL" envDefault:"http://mock-gateway:8081"`
	GatewayCallbackURL string        `env:"GATEWAY_CALLBACK_URL" envDefault:"http://app:8080/api/v1/payments/callback"`
	GatewayTimeout     time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	GatewayMaxRetries  int           `env:"GATEWAY_MAX_RETRIES" envDefault:"3"`

	DefaultCommissionPct float64       `env:"DEFAULT_COMMISSION_PCT" envDefault:"15"`
	AutoReverseAfter     time.Duration `env:"AUTO_REVERSE_AFTER" envDefault:"30m"`
	ReconcileInterval    time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
