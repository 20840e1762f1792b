package config

import (
	"fmt"
	"github.com/caarlos0/env/v11"
)

type Env string

const (
	EnvProd Env = "prod"
	EnvDev  Env = "dev"
)

func (e Env) IsValid() bool {
	switch e {
	case EnvProd, EnvDev:
		return true
	}
	return false
}

type Config struct {
	APIServerHost        string `env:"API_SERVER_HOST"`
	APIServerPort        string `env:"API_SERVER_PORT"`
	RedisHost            string `env:"REDIS_HOST"`
	RedisPort            string `env:"REDIS_PORT"`
	RedisPresenceChannel string `env:"REDIS_PRESENCE_CHANNEL" envDefault:"chat:presence"`
	RedisAnnounceChannel string `env:"REDIS_ANNOUNCE_CHANNEL" envDefault:"chat:announce"`
	Env                  Env    `env:"ENV" envDefault:"prod"`
}

func New() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Env.IsValid() {
		return nil, fmt.Errorf("invalid env variable (must be 'prod' or 'dev')")
	}
	return &cfg, nil
}
