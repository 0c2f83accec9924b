// Package config содержит логику чтения конфигурации хост-процесса заказа.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации хост-процесса заказа.
type Config struct {
	RunAddress  string        `env:"RUN_ADDRESS"`
	StepTimeout time.Duration `env:"STEP_TIMEOUT"`
	Language    string        `env:"MENU_LANGUAGE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envStepTimeout := cfg.StepTimeout
	envLanguage := cfg.Language

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.DurationVar(&cfg.StepTimeout, "t", 30*time.Second, "timeout for one remote API call")
	flag.StringVar(&cfg.Language, "l", "en", "menu language code")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envStepTimeout != 0 {
		cfg.StepTimeout = envStepTimeout
	}
	if envLanguage != "" {
		cfg.Language = envLanguage
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}

	return cfg, nil
}
