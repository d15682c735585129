package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	// RequestTimeoutSeconds bounds each call to the agent endpoint. The
	// agent can take a while to answer, so the default is generous.
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	StateDir              string `yaml:"state_dir"`
	Theme                 string `yaml:"theme"`
}

func DefaultConfig() Config {
	return Config{
		RequestTimeoutSeconds: 60,
		StateDir:              DefaultStateRoot(),
		Theme:                 "porcelain",
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return applyEnv(cfg), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 60
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateRoot()
	}
	if cfg.Theme == "" {
		cfg.Theme = "porcelain"
	}
	return applyEnv(cfg), nil
}

// applyEnv fills gaps from the environment so the config file never has to
// hold the credential.
func applyEnv(cfg Config) Config {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("AGENTCHAT_API_KEY")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("AGENTCHAT_ENDPOINT")
	}
	return cfg
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func RequestTimeout(cfg Config) time.Duration {
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "agentchat", "config.yml")
}
