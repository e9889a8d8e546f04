// Package config loads and validates quorum.yml, the council configuration
// file: engine defaults, the optional Redis backend, and the persona roster.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/quorum/internal/persona"
	"github.com/dyluth/quorum/pkg/deliberation"
)

const (
	defaultMethod         = deliberation.MethodWeighted
	defaultRoundTimeout   = 30 * time.Second
	defaultPersonaTimeout = 10 * time.Second

	defaultProceedAdvice = "proceed with the proposal as described"
	defaultHoldAdvice    = "hold pending further review"
)

// Config represents the top-level quorum.yml configuration.
type Config struct {
	Version  string                   `yaml:"version"`
	Instance string                   `yaml:"instance,omitempty"` // Namespace for Redis keys; default "default"
	Defaults Defaults                 `yaml:"defaults,omitempty"`
	Redis    *RedisConfig             `yaml:"redis,omitempty"`    // Optional; absent means no persistence backend
	Personas map[string]PersonaConfig `yaml:"personas,omitempty"` // Optional; absent means the built-in council
}

// Defaults specifies per-request fallbacks applied when the caller leaves
// the corresponding request field empty.
type Defaults struct {
	Method         string   `yaml:"method,omitempty"`
	RoundTimeout   Duration `yaml:"round_timeout,omitempty"`
	PersonaTimeout Duration `yaml:"persona_timeout,omitempty"`
}

// RedisConfig specifies the Redis backend for the memory and knowledge
// collaborators.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// PersonaConfig declares one council member.
type PersonaConfig struct {
	Name    string              `yaml:"name"`
	Weight  float64             `yaml:"weight,omitempty"` // Default 1.0
	Domains []string            `yaml:"domains"`
	Signals map[string][]string `yaml:"signals,omitempty"` // domain -> terms; defaults to the domain name itself
	Caution []string            `yaml:"caution,omitempty"`
	Proceed string              `yaml:"proceed,omitempty"`
	Hold    string              `yaml:"hold,omitempty"`
}

// Duration wraps time.Duration for yaml fields written as "30s", "2m", etc.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no quorum.yml exists.
func Default() *Config {
	return &Config{
		Version:  "1.0",
		Instance: "default",
		Defaults: Defaults{
			Method:         string(defaultMethod),
			RoundTimeout:   Duration(defaultRoundTimeout),
			PersonaTimeout: Duration(defaultPersonaTimeout),
		},
	}
}

// Load reads and validates a quorum.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the configuration and fills defaulted fields in place.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if c.Instance == "" {
		c.Instance = "default"
	}

	if c.Defaults.Method == "" {
		c.Defaults.Method = string(defaultMethod)
	}
	if err := deliberation.ConsensusMethod(c.Defaults.Method).Validate(); err != nil {
		return fmt.Errorf("defaults.method: %w", err)
	}

	if c.Defaults.RoundTimeout == 0 {
		c.Defaults.RoundTimeout = Duration(defaultRoundTimeout)
	}
	if c.Defaults.PersonaTimeout == 0 {
		c.Defaults.PersonaTimeout = Duration(defaultPersonaTimeout)
	}
	if c.Defaults.PersonaTimeout >= c.Defaults.RoundTimeout {
		return fmt.Errorf("defaults.persona_timeout (%v) must be below defaults.round_timeout (%v)",
			time.Duration(c.Defaults.PersonaTimeout), time.Duration(c.Defaults.RoundTimeout))
	}

	if c.Redis != nil && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when a redis section is present")
	}

	for id, pc := range c.Personas {
		if pc.Name == "" {
			return fmt.Errorf("persona %q: name is required", id)
		}
		if len(pc.Domains) == 0 {
			return fmt.Errorf("persona %q: at least one domain is required", id)
		}
		if pc.Weight < 0 {
			return fmt.Errorf("persona %q: weight cannot be negative", id)
		}
	}

	return nil
}

// Registry builds the persona registry from the configuration, falling back
// to the built-in council when no personas are declared.
func (c *Config) Registry() (*persona.Registry, error) {
	if len(c.Personas) == 0 {
		return persona.BuiltinRegistry(), nil
	}

	registry := persona.NewRegistry()
	for id, pc := range c.Personas {
		weight := pc.Weight
		if weight == 0 {
			weight = 1.0
		}

		proceed := pc.Proceed
		if proceed == "" {
			proceed = defaultProceedAdvice
		}
		hold := pc.Hold
		if hold == "" {
			hold = defaultHoldAdvice
		}

		identity := persona.Identity{
			ID:      id,
			Name:    pc.Name,
			Domains: pc.Domains,
			Weight:  weight,
		}

		advisor, err := persona.NewAdvisor(identity, pc.Signals, pc.Caution, proceed, hold)
		if err != nil {
			return nil, fmt.Errorf("persona %q: %w", id, err)
		}

		if err := registry.Register(advisor); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// ApplyDefaults fills the request fields the caller left at their zero
// values.
func (c *Config) ApplyDefaults(req *deliberation.Request) {
	if req.Method == "" {
		req.Method = deliberation.ConsensusMethod(c.Defaults.Method)
	}
	if req.RoundTimeout == 0 {
		req.RoundTimeout = time.Duration(c.Defaults.RoundTimeout)
	}
	if req.PersonaTimeout == 0 {
		req.PersonaTimeout = time.Duration(c.Defaults.PersonaTimeout)
	}
}
