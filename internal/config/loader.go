package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	switch cfg.Switch.Platform {
	case "eventsock", "mock":
	default:
		errs = append(errs, fmt.Errorf("switch.platform %q is invalid; valid values: eventsock, mock", cfg.Switch.Platform))
	}

	if cfg.Flows.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("flows.poll_interval %s must not be negative", cfg.Flows.PollInterval))
	}
	if cfg.Engine.VisitBudget < 1 {
		errs = append(errs, fmt.Errorf("engine.visit_budget %d must be at least 1", cfg.Engine.VisitBudget))
	}

	if cfg.Auth.TokenURL != "" {
		u, err := url.Parse(cfg.Auth.TokenURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("auth.token_url %q is not a valid http(s) URL", cfg.Auth.TokenURL))
		}
		if cfg.Auth.ClientID == "" {
			errs = append(errs, errors.New("auth.client_id is required when auth.token_url is set"))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
