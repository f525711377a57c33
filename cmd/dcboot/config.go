package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/moffa90/go-dcboot/logging"
)

const envPrefix = "DCBOOT"

// Config is read from DCBOOT_* environment variables.
type Config struct {
	Store       string `envconfig:"STORE" default:".dcboot"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsFile string `envconfig:"METRICS_FILE"`
}

// BootConfig holds the deployment-tuned boot parameters. They have no
// defaults.
type BootConfig struct {
	AttemptBudget   uint8         `envconfig:"ATTEMPT_BUDGET" required:"true"`
	WatchdogTimeout time.Duration `envconfig:"WATCHDOG_TIMEOUT" required:"true"`
}

func getConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func getBootConfig() (*BootConfig, error) {
	var cfg BootConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(cfg *Config) (*zap.SugaredLogger, logging.Logger, error) {
	s, err := logging.New("dcboot", cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return s, logging.Zap(s), nil
}
