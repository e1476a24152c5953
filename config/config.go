package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/freightpool/absorb/core/allocator"
	"github.com/freightpool/absorb/core/handshake"
	"github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/core/scanner"
	"github.com/freightpool/absorb/infra/notify"
)

// Config is the coordinator's full runtime configuration.
type Config struct {
	Notify    NotifyConfig     `json:"notify"`
	Scanner   scanner.Config   `json:"scanner"`
	Allocator allocator.Config `json:"allocator"`
	Handshake handshake.Config `json:"handshake"`
	Metrics   metrics.Config   `json:"metrics"`
	Store     StoreConfig      `json:"store"`
}

// NotifyConfig selects the notification transport.
type NotifyConfig struct {
	// Backend selects the transport: "local" for the in-process bus or
	// "mqtt" for a broker.
	Backend string        `json:"backend"`
	MQTT    notify.Config `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *NotifyConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "local"
	}
}

// Validate checks the transport selection.
func (c NotifyConfig) Validate() error {
	switch c.Backend {
	case "local":
		return nil
	case "mqtt":
		return c.MQTT.Validate()
	default:
		return fmt.Errorf("notify: unknown backend %q", c.Backend)
	}
}

// Load reads the configuration file at path, applies AB_-prefixed
// environment overrides, fills defaults and validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. AB_HANDSHAKE__QR_SECRET.
	if err := k.Load(env.Provider("AB_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ab_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Notify.SetDefaults()
	cfg.Scanner.SetDefaults()
	cfg.Allocator.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Store.SetDefaults()
	if err := cfg.Notify.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Scanner.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Allocator.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Handshake.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
