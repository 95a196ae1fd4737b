package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Agent names used as keys in the [agents] table.
const (
	AgentRouter       = "router"
	AgentUtility      = "utility"
	AgentMedical      = "medical"
	AgentSubscription = "subscription"
	AgentTelecom      = "telecom"
	AgentResearch     = "research"
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	MaxTokens      int    `toml:"max_tokens"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type CacheConfig struct {
	MaxCostBytes int64 `toml:"max_cost_bytes"`
	TTLSeconds   int   `toml:"ttl_seconds"`
}

type WorkflowConfig struct {
	AutoThreshold       float64 `toml:"auto_threshold"`
	SupervisedThreshold float64 `toml:"supervised_threshold"`
	LLMTimeoutSeconds   int     `toml:"llm_timeout_seconds"`
	LLMRetries          int     `toml:"llm_retries"`
}

type Config struct {
	Server   ServerConfig         `toml:"server"`
	LLM      LLMConfig            `toml:"llm"`
	Agents   map[string]LLMConfig `toml:"agents"`
	Memgraph MemgraphConfig       `toml:"memgraph"`
	NATS     NATSConfig           `toml:"nats"`
	Cache    CacheConfig          `toml:"cache"`
	Workflow WorkflowConfig       `toml:"workflow"`
	Prompts  Prompts              `toml:"prompts"`

	// ProviderKeys holds API keys by provider name, used when an agent's
	// resolved settings carry no key of their own.
	ProviderKeys map[string]string `toml:"provider_keys"`
}

// Default returns a configuration that runs against a local Ollama with no
// memory store or event bus.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		LLM: LLMConfig{
			Provider:  "ollama",
			Model:     "llama3.1:latest",
			BaseURL:   "http://localhost:11434",
			MaxTokens: 1500,
		},
		Agents:       map[string]LLMConfig{},
		ProviderKeys: map[string]string{},
		NATS:         NATSConfig{Subject: "negotiations.completed"},
		Cache:        CacheConfig{MaxCostBytes: 64 << 20, TTLSeconds: 24 * 60 * 60},
		Workflow: WorkflowConfig{
			AutoThreshold:       0.8,
			SupervisedThreshold: 0.5,
			LLMTimeoutSeconds:   60,
			LLMRetries:          1,
		},
		Prompts: DefaultPrompts(),
	}
}

// Load reads a TOML file on top of Default, so keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	w := c.Workflow
	if w.SupervisedThreshold < 0 || w.AutoThreshold > 1 {
		return fmt.Errorf("workflow thresholds must lie in [0,1]: auto=%v supervised=%v", w.AutoThreshold, w.SupervisedThreshold)
	}
	if w.SupervisedThreshold > w.AutoThreshold {
		return fmt.Errorf("supervised_threshold (%v) must not exceed auto_threshold (%v)", w.SupervisedThreshold, w.AutoThreshold)
	}
	if w.LLMRetries < 0 {
		return fmt.Errorf("llm_retries must be >= 0, got %d", w.LLMRetries)
	}
	return c.Prompts.check()
}

// AgentLLM returns the LLM settings for one agent: the [llm] table with any
// non-empty field from [agents.<name>] laid over it. A provider override
// drops the inherited API key and base URL since they belong to another vendor.
func (c *Config) AgentLLM(name string) LLMConfig {
	out := c.LLM
	o, ok := c.Agents[strings.ToLower(name)]
	if !ok {
		return c.withProviderKey(out)
	}
	if o.Provider != "" && !strings.EqualFold(o.Provider, out.Provider) {
		out.Provider = o.Provider
		out.APIKey = ""
		out.BaseURL = ""
		out.EmbeddingModel = ""
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	if o.EmbeddingModel != "" {
		out.EmbeddingModel = o.EmbeddingModel
	}
	if o.APIKey != "" {
		out.APIKey = o.APIKey
	}
	if o.BaseURL != "" {
		out.BaseURL = o.BaseURL
	}
	if o.MaxTokens != 0 {
		out.MaxTokens = o.MaxTokens
	}
	return c.withProviderKey(out)
}

func (c *Config) withProviderKey(l LLMConfig) LLMConfig {
	if l.APIKey == "" {
		l.APIKey = c.ProviderKeys[strings.ToLower(l.Provider)]
	}
	return l
}
