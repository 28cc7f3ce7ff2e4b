package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/prag/config.yml.
type GlobalConfig struct {
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	DefaultRoot string `yaml:"default_root,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "prag"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment variables consulted before the global config file.
const (
	EnvAPIKey          = "PRAG_API_KEY"
	EnvDashscopeAPIKey = "DASHSCOPE_API_KEY"
	EnvRoot            = "PRAG_ROOT"
)

// ErrAPIKeyNotConfigured is returned when no model service key is available.
var ErrAPIKeyNotConfigured = errors.New("api key not configured")

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/prag/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.DefaultRoot != "" {
		cfg.DefaultRoot = ExpandPath(cfg.DefaultRoot)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ResolveAPIKey returns the model service key, preferring the environment.
func ResolveAPIKey() (string, error) {
	for _, name := range []string{EnvAPIKey, EnvDashscopeAPIKey} {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return "", err
	}
	if cfg.APIKey == "" {
		return "", fmt.Errorf("%w: set %s or api_key in %s", ErrAPIKeyNotConfigured, EnvAPIKey, GlobalConfigPath())
	}
	return cfg.APIKey, nil
}

// ResolveBaseURL returns the global base_url override if set, else fallback.
func ResolveBaseURL(fallback string) string {
	cfg, err := LoadGlobalConfig()
	if err != nil || cfg.BaseURL == "" {
		return fallback
	}
	return cfg.BaseURL
}

// DefaultRoot returns the knowledge base used when the working directory is
// not inside one: PRAG_ROOT, then default_root from the global config.
func DefaultRoot() string {
	if v := os.Getenv(EnvRoot); v != "" {
		return ExpandPath(v)
	}
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.DefaultRoot
}
