// Package config loads repomind settings from .repomind/config.json5.
// JSON5 keeps the file hand-editable (comments, trailing commas). A
// missing file yields defaults; a malformed file is an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
	"github.com/zalando/go-keyring"
)

const (
	// StateDirName is the repo-relative directory holding all repomind
	// state. Everything under it is excluded from change detection.
	StateDirName = ".repomind"

	// MemoryDocName is the repo-relative path of the memory document.
	MemoryDocName = "PROJECT_MEMORY.md"

	configFileName = "config.json5"

	keyringService = "repomind"
	keyringUser    = "openai"
)

// Config is the full runtime configuration.
type Config struct {
	Model          string `json:"model"`
	APIBase        string `json:"apiBase"`
	ContextWindow  int    `json:"contextWindow"`
	CallsPerMinute int    `json:"callsPerMinute"`

	// TokenBudget caps the estimated size of a single generation input.
	TokenBudget int `json:"tokenBudget"`

	// ThinkingLevel is low, medium or high.
	ThinkingLevel string `json:"thinkingLevel"`

	// DebounceMS is the quiet period after git activity before a sync
	// cycle starts.
	DebounceMS int `json:"debounceMs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:          "gpt-4o-mini",
		ContextWindow:  128_000,
		CallsPerMinute: 20,
		TokenBudget:    24_000,
		ThinkingLevel:  "medium",
		DebounceMS:     500,
	}
}

// StateDir returns the state directory path for a repository root.
func StateDir(repoRoot string) string {
	return filepath.Join(repoRoot, StateDirName)
}

// Path returns the config file path for a repository root.
func Path(repoRoot string) string {
	return filepath.Join(StateDir(repoRoot), configFileName)
}

// Load reads the config file under repoRoot, applying defaults for
// absent fields. A missing file is not an error.
func Load(repoRoot string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(repoRoot))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configFileName, err)
	}
	return cfg.normalize(), nil
}

func (c Config) normalize() Config {
	d := Default()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = d.ContextWindow
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = d.TokenBudget
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = d.DebounceMS
	}
	switch c.ThinkingLevel {
	case "low", "medium", "high":
	default:
		c.ThinkingLevel = d.ThinkingLevel
	}
	return c
}

// WriteDefault writes a commented starter config, failing if one
// already exists.
func WriteDefault(repoRoot string) error {
	path := Path(repoRoot)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigText), 0o644)
}

const defaultConfigText = `{
  // Model used for memory updates.
  model: "gpt-4o-mini",

  // Override for OpenAI-compatible endpoints. Empty means api.openai.com.
  apiBase: "",

  // Estimated-token cap for a single generation input. Larger change
  // sets are split into chunks.
  tokenBudget: 24000,

  // low, medium or high.
  thinkingLevel: "medium",

  // Quiet period after git activity before a sync cycle starts.
  debounceMs: 500,
}
`

// APIKey resolves the generation API key: OS keyring first, then the
// REPOMIND_API_KEY and OPENAI_API_KEY environment variables.
func APIKey() (string, error) {
	if key, err := keyring.Get(keyringService, keyringUser); err == nil && key != "" {
		return key, nil
	}
	for _, env := range []string{"REPOMIND_API_KEY", "OPENAI_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key, nil
		}
	}
	return "", errors.New("no API key: store one with `repomind init --api-key` or set REPOMIND_API_KEY")
}

// StoreAPIKey saves the key in the OS keyring.
func StoreAPIKey(key string) error {
	if err := keyring.Set(keyringService, keyringUser, key); err != nil {
		return fmt.Errorf("store API key: %w", err)
	}
	return nil
}
