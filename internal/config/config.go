package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models leadline.yml. Owner and org identifiers are injected
// here once and passed to components at construction time; they are
// never embedded in operation logic.
type Config struct {
	Owner struct {
		ID string `yaml:"id"`
	} `yaml:"owner"`
	Org struct {
		ID     string `yaml:"id"`
		Scoped bool   `yaml:"scoped"`
	} `yaml:"org"`
	Ideation IdeationConfig  `yaml:"ideation"`
	Bus      BusConfig       `yaml:"bus"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// IdeationConfig points at the external text-generation backend.
type IdeationConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BusConfig selects the event bus transport. An empty NATS URL means
// the in-process bus.
type BusConfig struct {
	NATSURL string `yaml:"nats_url"`
}

// WebhookConfig is one outbound event delivery target.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with ll config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner.ID) == "" {
		return fmt.Errorf("config.owner.id is required")
	}
	if c.Org.Scoped && strings.TrimSpace(c.Org.ID) == "" {
		return fmt.Errorf("config.org.id is required when org.scoped is true")
	}
	if c.Ideation.TimeoutSeconds < 0 {
		return fmt.Errorf("config.ideation.timeout_seconds must not be negative")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "leadline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(ownerID string) string {
	return fmt.Sprintf(defaultTemplate, ownerID)
}

// Default returns the default Config struct for an owner.
func Default(ownerID string) *Config {
	cfg, err := FromYAML([]byte(GenerateDefault(ownerID)))
	if err != nil {
		// The template is static; a parse failure is a programming error.
		panic(err)
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `owner:
  id: %s

org:
  id: ""
  scoped: false

ideation:
  base_url: "https://generativelanguage.googleapis.com/v1beta"
  model: "gemini-1.5-flash"
  api_key_env: "LEADLINE_IDEATION_API_KEY"
  timeout_seconds: 30

bus:
  nats_url: ""

webhooks: []
`
