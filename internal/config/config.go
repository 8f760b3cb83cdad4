// Package config loads the tool configuration: built-in defaults, then an
// optional YAML file, then BGRULES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/bgrules/internal/logging"
	"github.com/yourusername/bgrules/pkg/engine"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BGRULES_"

// Config is the full tool configuration.
type Config struct {
	Log       logging.Config `yaml:"log" envPrefix:"LOG_"`
	StateFile string         `yaml:"state_file" env:"STATE_FILE"`
	Seed      uint64         `yaml:"seed" env:"SEED"` // 0 = random
	Rules     engine.Rules   `yaml:"rules" envPrefix:"RULES_"`
	SelfPlay  SelfPlay       `yaml:"selfplay" envPrefix:"SELFPLAY_"`
}

// SelfPlay configures the selfplay command.
type SelfPlay struct {
	Games    int `yaml:"games" env:"GAMES"`
	Workers  int `yaml:"workers" env:"WORKERS"` // 0 = GOMAXPROCS
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	Probes   int `yaml:"probes" env:"PROBES"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:       logging.Config{Mode: logging.ModeDev, Level: "info"},
		StateFile: "bgrules.json",
		SelfPlay: SelfPlay{
			Games:    100,
			MaxTurns: 5000,
			Probes:   2,
		},
	}
}

// Load builds the configuration. path may be empty; a named file that
// does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field ranges.
func (c Config) Validate() error {
	var errs []error
	if c.StateFile == "" {
		errs = append(errs, errors.New("state_file is empty"))
	}
	if c.SelfPlay.Games < 0 {
		errs = append(errs, fmt.Errorf("selfplay.games %d is negative", c.SelfPlay.Games))
	}
	if c.SelfPlay.Workers < 0 {
		errs = append(errs, fmt.Errorf("selfplay.workers %d is negative", c.SelfPlay.Workers))
	}
	if c.SelfPlay.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("selfplay.max_turns %d is negative", c.SelfPlay.MaxTurns))
	}
	if c.SelfPlay.Probes < 0 {
		errs = append(errs, fmt.Errorf("selfplay.probes %d is negative", c.SelfPlay.Probes))
	}
	switch c.Log.Mode {
	case "", logging.ModeDev, logging.ModeProd:
	default:
		errs = append(errs, fmt.Errorf("log.mode %q is not dev or prod", c.Log.Mode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
