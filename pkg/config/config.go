// Package config loads diffgraph's TOML configuration.
//
// Every value has a default; a missing file is not an error, so the CLI
// and server run unconfigured out of the box. A typical diffgraph.toml:
//
//	[geometry]
//	decision_size = 96
//	statement_width = 180
//
//	[engine]
//	workers = 2
//	hard_timeout_ms = 2500
//	soft_timeout_ms = 1000
//	soft_threshold = 300
//
//	[cache]
//	backend = "memory"   # memory | file | redis | none
//	capacity = 16
//
//	[server]
//	addr = ":8970"
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	dgerrors "github.com/miltonlaufer/diffgraph/pkg/errors"
	"github.com/miltonlaufer/diffgraph/pkg/layout"
)

// Cache backends selectable in configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config is the root configuration document.
type Config struct {
	Geometry layout.Geometry `toml:"geometry"`
	Engine   Engine          `toml:"engine"`
	Cache    Cache           `toml:"cache"`
	Server   Server          `toml:"server"`
}

// Engine tunes the offload coordinator.
type Engine struct {
	Workers       int `toml:"workers"`
	HardTimeoutMS int `toml:"hard_timeout_ms"`
	SoftTimeoutMS int `toml:"soft_timeout_ms"`
	SoftThreshold int `toml:"soft_threshold"`
}

// HardTimeout returns the watchdog deadline as a duration.
func (e Engine) HardTimeout() time.Duration { return time.Duration(e.HardTimeoutMS) * time.Millisecond }

// SoftTimeout returns the proactive fallback delay as a duration.
func (e Engine) SoftTimeout() time.Duration { return time.Duration(e.SoftTimeoutMS) * time.Millisecond }

// Cache selects and tunes the result cache backend.
type Cache struct {
	Backend  string `toml:"backend"`
	Capacity int    `toml:"capacity"`
	Dir      string `toml:"dir"`        // file backend
	Addr     string `toml:"addr"`       // redis backend
	Password string `toml:"password"`   // redis backend
	DB       int    `toml:"db"`         // redis backend
	TTLHours int    `toml:"ttl_hours"`
}

// TTL returns the configured cache entry lifetime as a duration.
func (c Cache) TTL() time.Duration { return time.Duration(c.TTLHours) * time.Hour }

// Server configures the HTTP surface.
type Server struct {
	Addr     string `toml:"addr"`
	MongoURI string `toml:"mongo_uri"` // optional snapshot store
	MongoDB  string `toml:"mongo_db"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Geometry: layout.DefaultGeometry(),
		Engine: Engine{
			HardTimeoutMS: 2500,
			SoftTimeoutMS: 1000,
			SoftThreshold: 300,
		},
		Cache: Cache{
			Backend:  BackendMemory,
			Capacity: 16,
			TTLHours: 1,
		},
		Server: Server{
			Addr:    ":8970",
			MongoDB: "diffgraph",
		},
	}
}

// Load reads a TOML file over the defaults. An empty path or a missing
// file yields the defaults; a malformed file is an INVALID_CONFIG error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, dgerrors.Wrap(dgerrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, dgerrors.Wrap(dgerrors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendNone, "":
	default:
		return dgerrors.New(dgerrors.ErrCodeInvalidConfig,
			"unknown cache backend %q (must be one of: memory, file, redis, none)", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.Addr == "" {
		return dgerrors.New(dgerrors.ErrCodeInvalidConfig, "redis cache backend requires addr")
	}
	return nil
}
