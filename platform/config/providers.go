package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderOverride is one entry of the optional PROVIDERS_FILE document.
// Unset fields keep the value loaded from the environment.
type ProviderOverride struct {
	Enabled *bool  `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// ProviderOverrides maps a provider key (byteme, webwunder, pingperfect,
// verbyndich, servusspeed) to its override.
type ProviderOverrides struct {
	Providers map[string]ProviderOverride `yaml:"providers"`
}

// LoadProviderOverrides parses a YAML override file.
func LoadProviderOverrides(path string) (*ProviderOverrides, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseProviderOverrides(raw)
}

// ParseProviderOverrides decodes an override document.
func ParseProviderOverrides(raw []byte) (*ProviderOverrides, error) {
	var out ProviderOverrides
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	for key := range out.Providers {
		if !knownProvider(key) {
			return nil, fmt.Errorf("parse providers file: unknown provider %q", key)
		}
	}
	return &out, nil
}

// Apply merges the overrides into cfg. An override can disable a configured
// provider but cannot enable one that is missing credentials.
func (o *ProviderOverrides) Apply(cfg *Config) {
	if o == nil {
		return
	}
	for key, ov := range o.Providers {
		switch strings.ToLower(key) {
		case "byteme":
			applyOverride(ov, &cfg.ByteMe.URL, &cfg.ByteMe.Enabled)
		case "webwunder":
			applyOverride(ov, &cfg.WebWunder.URL, &cfg.WebWunder.Enabled)
		case "pingperfect":
			applyOverride(ov, &cfg.PingPerfect.URL, &cfg.PingPerfect.Enabled)
		case "verbyndich":
			applyOverride(ov, &cfg.VerbynDich.URL, &cfg.VerbynDich.Enabled)
		case "servusspeed":
			applyOverride(ov, &cfg.ServusSpeed.URL, &cfg.ServusSpeed.Enabled)
		}
	}
}

func applyOverride(ov ProviderOverride, url *string, enabled *bool) {
	if ov.URL != "" {
		*url = ov.URL
	}
	if ov.Enabled != nil && !*ov.Enabled {
		*enabled = false
	}
}

func knownProvider(key string) bool {
	switch strings.ToLower(key) {
	case "byteme", "webwunder", "pingperfect", "verbyndich", "servusspeed":
		return true
	}
	return false
}
