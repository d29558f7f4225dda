// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file LoadDefault looks for in the current
// directory.
const DefaultFile = "workbrief.toml"

// Agent roles that can be configured under [agents].
const (
	RoleCodeReview   = "code-review"
	RoleIssueTracker = "issue-tracker"
	RoleMessaging    = "messaging"
	RoleScheduling   = "scheduling"
	RoleCorrelator   = "correlator"
	RoleSynthesizer  = "synthesizer"
)

// Roles lists every configurable role.
var Roles = []string{RoleCodeReview, RoleIssueTracker, RoleMessaging, RoleScheduling, RoleCorrelator, RoleSynthesizer}

// Config represents the workbrief configuration.
type Config struct {
	LLM       LLMConfig              `toml:"llm"`
	Agents    map[string]AgentConfig `toml:"agents"`    // Per-role mode and iteration cap
	Synthesis SynthesisConfig        `toml:"synthesis"` // Brief synthesis strategy
	Store     StoreConfig            `toml:"store"`     // Intermediate store
	Fixtures  FixturesConfig         `toml:"fixtures"`  // File-backed domain data
	Timeouts  TimeoutsConfig         `toml:"timeouts"`  // Phase deadlines
	Telemetry TelemetryConfig        `toml:"telemetry"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
	Thinking     string `toml:"thinking"`      // Thinking level: auto|off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// AgentConfig configures one role.
type AgentConfig struct {
	Mode          string `toml:"mode"`           // deep|fast
	MaxIterations int    `toml:"max_iterations"` // 0 = loop default (10)
}

// SynthesisConfig selects the synthesis strategy.
type SynthesisConfig struct {
	Mode string `toml:"mode"` // ai|rules
}

// StoreConfig selects the intermediate store.
type StoreConfig struct {
	Driver string `toml:"driver"` // memory|sqlite|file
	Path   string `toml:"path"`   // Database file (sqlite) or directory (file)
}

// FixturesConfig points at the fixture directory used by the file fetchers.
type FixturesConfig struct {
	Dir string `toml:"dir"`
}

// TimeoutsConfig contains phase deadlines.
type TimeoutsConfig struct {
	Worker      string `toml:"worker"`      // Per-worker deadline (default "90s")
	Correlation string `toml:"correlation"` // Correlation deadline (default "60s")
	Synthesis   string `toml:"synthesis"`   // AI synthesis deadline (default "60s")
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// New creates a new config with defaults.
func New() *Config {
	agents := make(map[string]AgentConfig, len(Roles))
	for _, r := range Roles {
		agents[r] = AgentConfig{Mode: "fast"}
	}
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Agents: agents,
		Synthesis: SynthesisConfig{
			Mode: "rules",
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Fixtures: FixturesConfig{
			Dir: "fixtures",
		},
		Timeouts: TimeoutsConfig{
			Worker:      "90s",
			Correlation: "60s",
			Synthesis:   "60s",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.fillAgents()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads workbrief.toml from the current directory. A missing
// file yields the defaults.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// fillAgents gives roles omitted from the file their default entry.
func (c *Config) fillAgents() {
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	for _, r := range Roles {
		a := c.Agents[r]
		if a.Mode == "" {
			a.Mode = "fast"
		}
		c.Agents[r] = a
	}
}

// Validate checks enum values and durations.
func (c *Config) Validate() error {
	for role, a := range c.Agents {
		if !knownRole(role) {
			return fmt.Errorf("agents.%s: unknown role", role)
		}
		switch a.Mode {
		case "deep", "fast", "":
		default:
			return fmt.Errorf("agents.%s.mode: must be deep or fast, got %q", role, a.Mode)
		}
		if a.MaxIterations < 0 {
			return fmt.Errorf("agents.%s.max_iterations: must not be negative", role)
		}
	}
	switch c.Synthesis.Mode {
	case "ai", "rules":
	default:
		return fmt.Errorf("synthesis.mode: must be ai or rules, got %q", c.Synthesis.Mode)
	}
	switch c.Store.Driver {
	case "memory", "":
	case "sqlite", "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path: required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver: must be memory, sqlite or file, got %q", c.Store.Driver)
	}
	for name, v := range map[string]string{
		"worker":      c.Timeouts.Worker,
		"correlation": c.Timeouts.Correlation,
		"synthesis":   c.Timeouts.Synthesis,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("timeouts.%s: invalid duration %q", name, v)
		}
	}
	return nil
}

func knownRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Agent returns the configuration of role.
func (c *Config) Agent(role string) AgentConfig {
	if a, ok := c.Agents[role]; ok {
		return a
	}
	return AgentConfig{Mode: "fast"}
}

// NeedsLLM reports whether any role or the synthesis strategy uses the
// reasoning engine.
func (c *Config) NeedsLLM() bool {
	if c.Synthesis.Mode == "ai" {
		return true
	}
	for _, a := range c.Agents {
		if a.Mode == "deep" {
			return true
		}
	}
	return false
}

// ForceFast switches every role and the synthesis strategy to their
// deterministic paths.
func (c *Config) ForceFast() {
	for role, a := range c.Agents {
		a.Mode = "fast"
		c.Agents[role] = a
	}
	c.Synthesis.Mode = "rules"
}

// Durations returns the parsed phase deadlines. Unset or invalid values
// are zero, which callers treat as their default.
func (t TimeoutsConfig) Durations() (worker, correlation, synthesis time.Duration) {
	parse := func(s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0
		}
		return d
	}
	return parse(t.Worker), parse(t.Correlation), parse(t.Synthesis)
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
