// Package config loads galactus's runtime configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-derived setting the service needs to boot.
type Config struct {
	HTTPAddr        string        `env:"FASTTQ_HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"FASTTQ_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"FASTTQ_LOG_LEVEL" envDefault:"info"`

	BrokerAddr string `env:"FASTTQ_BROKER_ADDR,required"`

	DatabaseReaderURL string `env:"FASTTQ_DATABASE_READER_URL,required"`
	DatabaseWriterURL string `env:"FASTTQ_DATABASE_WRITER_URL,required"`

	DatabaseMaxOpenConns  int32         `env:"FASTTQ_DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	DatabaseMinConns      int32         `env:"FASTTQ_DATABASE_MIN_CONNS" envDefault:"5"`
	DatabaseHealthPeriod  time.Duration `env:"FASTTQ_DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	DatabaseMaxConnIdle   time.Duration `env:"FASTTQ_DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	DatabaseMaxConnLife   time.Duration `env:"FASTTQ_DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`
	DatabaseRetryAttempts int           `env:"FASTTQ_DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	DatabaseRetryInterval time.Duration `env:"FASTTQ_DATABASE_RETRY_INTERVAL" envDefault:"5s"`
}

// Load parses environment variables into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}
	return cfg, nil
}
