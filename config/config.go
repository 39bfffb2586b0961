// Package config loads the pipecall TOML configuration.
//
//	[child]
//	path    = ""        # empty: re-execute the running binary
//	args    = []
//	workers = 1
//
//	[host]
//	rate_limit = 0.0    # calls per second, 0 disables
//	burst      = 0
//
//	[log]
//	level = "info"
//
//	[registry]
//	endpoints = []      # empty: in-memory registry
//	service   = "Demo"
//	ttl       = 10
//
//	[limits]
//	max_string = 1048576
//	max_args   = 1024
//	max_block  = 67108864
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"

	"pipecall/protocol"
)

type Config struct {
	Child    Child    `toml:"child"`
	Host     Host     `toml:"host"`
	Log      Log      `toml:"log"`
	Registry Registry `toml:"registry"`
	Limits   Limits   `toml:"limits"`
}

type Child struct {
	Path    string   `toml:"path"`
	Args    []string `toml:"args"`
	Workers int      `toml:"workers"`
}

type Host struct {
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

type Log struct {
	Level string `toml:"level"`
}

type Registry struct {
	Endpoints []string `toml:"endpoints"`
	Service   string   `toml:"service"`
	TTL       int64    `toml:"ttl"`
}

type Limits struct {
	MaxString uint64 `toml:"max_string"`
	MaxArgs   int32  `toml:"max_args"`
	MaxBlock  int32  `toml:"max_block"`
}

// Protocol converts the configured limits for the frame reader.
func (l Limits) Protocol() protocol.Limits {
	return protocol.Limits{MaxString: l.MaxString, MaxArgs: l.MaxArgs, MaxBlock: l.MaxBlock}
}

func Default() Config {
	limits := protocol.DefaultLimits()
	return Config{
		Child: Child{Workers: 1},
		Log:   Log{Level: "info"},
		Registry: Registry{
			Service: "Demo",
			TTL:     10,
		},
		Limits: Limits{
			MaxString: limits.MaxString,
			MaxArgs:   limits.MaxArgs,
			MaxBlock:  limits.MaxBlock,
		},
	}
}

// Load overlays the file at path on Default and validates the result. Keys
// the file does not set keep their defaults; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Child.Workers < 1 {
		return fmt.Errorf("child.workers must be at least 1, got %d", c.Child.Workers)
	}
	if c.Host.RateLimit < 0 {
		return fmt.Errorf("host.rate_limit must not be negative")
	}
	if c.Host.RateLimit > 0 && c.Host.Burst < 1 {
		return fmt.Errorf("host.burst must be at least 1 when rate_limit is set")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if strings.TrimSpace(c.Registry.Service) == "" {
		return fmt.Errorf("registry.service is required")
	}
	if c.Registry.TTL < 1 {
		return fmt.Errorf("registry.ttl must be at least 1 second")
	}
	for i, ep := range c.Registry.Endpoints {
		if strings.TrimSpace(ep) == "" {
			return fmt.Errorf("registry.endpoints[%d] is empty", i)
		}
	}
	if c.Limits.MaxString == 0 || c.Limits.MaxArgs < 1 || c.Limits.MaxBlock < 1 {
		return fmt.Errorf("limits must all be positive")
	}
	return nil
}
