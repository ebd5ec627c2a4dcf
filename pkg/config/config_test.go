package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dgerrors "github.com/miltonlaufer/diffgraph/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diffgraph.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/diffgraph.toml"} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if cfg.Cache.Backend != BackendMemory {
			t.Errorf("default backend = %q, want memory", cfg.Cache.Backend)
		}
		if cfg.Engine.HardTimeout() != 2500*time.Millisecond {
			t.Errorf("default hard timeout = %v", cfg.Engine.HardTimeout())
		}
		if cfg.Engine.SoftTimeout() != time.Second {
			t.Errorf("default soft timeout = %v", cfg.Engine.SoftTimeout())
		}
		if cfg.Engine.SoftThreshold != 300 {
			t.Errorf("default soft threshold = %d", cfg.Engine.SoftThreshold)
		}
		if cfg.Server.Addr != ":8970" {
			t.Errorf("default server addr = %q", cfg.Server.Addr)
		}
		if cfg.Geometry.DecisionSize != 96 {
			t.Errorf("default decision size = %v", cfg.Geometry.DecisionSize)
		}
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
[geometry]
decision_size = 120

[engine]
workers = 4
hard_timeout_ms = 5000

[cache]
backend = "file"
dir = "/tmp/dgcache"
ttl_hours = 2

[server]
addr = ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Geometry.DecisionSize != 120 {
		t.Errorf("decision_size = %v", cfg.Geometry.DecisionSize)
	}
	// Untouched geometry keys keep their defaults.
	if cfg.Geometry.StatementWidth != 180 {
		t.Errorf("statement_width = %v, want default", cfg.Geometry.StatementWidth)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.HardTimeout() != 5*time.Second {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Cache.Backend != BackendFile || cfg.Cache.Dir != "/tmp/dgcache" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.TTL() != 2*time.Hour {
		t.Errorf("TTL = %v", cfg.Cache.TTL())
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"MalformedTOML", `[cache`},
		{"UnknownBackend", "[cache]\nbackend = \"memcached\"\n"},
		{"RedisWithoutAddr", "[cache]\nbackend = \"redis\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !dgerrors.Is(err, dgerrors.ErrCodeInvalidConfig) {
				t.Errorf("error code = %v, want INVALID_CONFIG", dgerrors.GetCode(err))
			}
		})
	}
}
