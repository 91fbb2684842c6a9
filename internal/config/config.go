package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	DBPath     string        `mapstructure:"db_path"`
	LspTimeout time.Duration `mapstructure:"lsp_timeout"`

	// Execute-code collaborator (JDoodle-compatible API).
	RunURL          string `mapstructure:"run_url"`
	RunClientID     string `mapstructure:"run_client_id"`
	RunClientSecret string `mapstructure:"run_client_secret"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("db_path", "data/helio.db")
	v.SetDefault("lsp_timeout", "5s")
	v.SetDefault("run_url", "https://api.jdoodle.com/v1/execute")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Secret == "" {
		// Session cookies must never be keyed on an empty secret. A
		// per-process key means sessions do not survive restarts.
		cfg.Secret = uuid.NewString()
		log.Warn().Str("file", fileName).Msg("no session secret configured, generated a per-process one")
	}
	return &cfg, nil
}
