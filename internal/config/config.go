// Package config handles knowledge-base and global configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents knowledge-base configuration stored in .plasmarag/config.json.
type Config struct {
	BaseURL string `json:"base_url,omitempty"` // OpenAI-compatible model service endpoint

	UnderstandingModel string `json:"understanding_model"` // Long-context reasoning model (stage 1)
	FormattingModel    string `json:"formatting_model"`    // Strict JSON formatting model (stage 2)
	VisionModel        string `json:"vision_model"`        // Figure captioning model
	RecommendModel     string `json:"recommend_model"`     // Recommendation synthesis model

	EmbeddingProvider string `json:"embedding_provider"` // "openai" or "ollama"
	EmbeddingModel    string `json:"embedding_model"`
	EmbeddingDims     int    `json:"embedding_dims"`
	EmbeddingURL      string `json:"embedding_url,omitempty"` // Only used by the ollama provider

	UnderstandingAttempts int `json:"understanding_attempts"`
	FormattingAttempts    int `json:"formatting_attempts"`
	MaxInputChars         int `json:"max_input_chars"`

	FigurePages    int  `json:"figure_pages"`
	FigureWorkers  int  `json:"figure_workers"`
	DisableFigures bool `json:"disable_figures,omitempty"`
	RenderDPI      int  `json:"render_dpi"`

	DuplicatePolicy   string  `json:"duplicate_policy"` // "reject" or "replace"
	RequestsPerSecond float64 `json:"requests_per_second"`
	MaxRetries        int     `json:"max_retries"` // Attempts per model call, including the first
	RequestTimeoutSec int     `json:"request_timeout_sec"`
	LockTimeoutSec    int     `json:"lock_timeout_sec"`
}

const (
	DataDir    = ".plasmarag"
	ConfigFile = "config.json"
	DBFile     = "knowledge.db"
	IndexDir   = "index"
	FiguresDir = "figures"
	LocksDir   = "locks"
)

// Duplicate policies.
const (
	PolicyReject  = "reject"
	PolicyReplace = "replace"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ValidPolicies lists the supported duplicate_policy values.
var ValidPolicies = []string{PolicyReject, PolicyReplace}

// Default returns the configuration written by `prag init`.
func Default() *Config {
	return &Config{
		BaseURL:               "https://dashscope.aliyuncs.com/compatible-mode/v1",
		UnderstandingModel:    "qwen-long",
		FormattingModel:       "qwen-plus",
		VisionModel:           "qwen-vl-max",
		RecommendModel:        "qwen-long",
		EmbeddingProvider:     ProviderOpenAI,
		EmbeddingModel:        "text-embedding-v2",
		EmbeddingDims:         1536,
		UnderstandingAttempts: 2,
		FormattingAttempts:    3,
		MaxInputChars:         120000,
		FigurePages:           6,
		FigureWorkers:         3,
		RenderDPI:             100,
		DuplicatePolicy:       PolicyReject,
		RequestsPerSecond:     2,
		MaxRetries:            3,
		RequestTimeoutSec:     300,
		LockTimeoutSec:        10,
	}
}

// DataPath returns the path to the .plasmarag directory from a root path.
func DataPath(root string) string {
	return filepath.Join(root, DataDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, DataDir, ConfigFile)
}

// DBPath returns the path to knowledge.db from a root path.
func DBPath(root string) string {
	return filepath.Join(root, DataDir, DBFile)
}

// IndexPath returns the directory holding the vector index files.
func IndexPath(root string) string {
	return filepath.Join(root, DataDir, IndexDir)
}

// FiguresPath returns the directory holding rendered figure images.
func FiguresPath(root string) string {
	return filepath.Join(root, DataDir, FiguresDir)
}

// LocksPath returns the directory holding writer lock files.
func LocksPath(root string) string {
	return filepath.Join(root, DataDir, LocksDir)
}

// IsRepository checks if the given path contains a knowledge base.
func IsRepository(root string) bool {
	info, err := os.Stat(DataPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a knowledge base.
// Returns the root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a plasmarag knowledge base (no %s directory found)", DataDir)
		}
		abs = parent
	}
}

// Load reads configuration from the knowledge base at the given root.
// Fields missing from the file keep their defaults.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to the knowledge base at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	if err := ValidatePolicy(c.DuplicatePolicy); err != nil {
		return err
	}
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("invalid embedding_provider: %s (valid: %s, %s)", c.EmbeddingProvider, ProviderOpenAI, ProviderOllama)
	}
	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("invalid embedding_dims: %d", c.EmbeddingDims)
	}
	if c.FormattingAttempts < 1 || c.UnderstandingAttempts < 1 || c.MaxRetries < 1 {
		return fmt.Errorf("attempt counts must be at least 1")
	}
	return nil
}

// ValidatePolicy checks that the duplicate policy value is valid.
func ValidatePolicy(policy string) error {
	for _, valid := range ValidPolicies {
		if policy == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid duplicate_policy: %s (valid: %v)", policy, ValidPolicies)
}

// RequestTimeout returns the per-request model timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// LockTimeout returns how long a writer waits for the named locks.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSec) * time.Second
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
