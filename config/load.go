package config

import (
	"errors"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "config.yaml"

// Load reads the config file (if present) and applies environment
// overrides. A missing file is not an error; env values plus defaults
// are enough to run.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		path = os.Getenv("KESTREL_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg := &AppConfig{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}
	return cfg, nil
}
