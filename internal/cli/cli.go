package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/miltonlaufer/diffgraph/pkg/buildinfo"
	"github.com/miltonlaufer/diffgraph/pkg/cache"
	"github.com/miltonlaufer/diffgraph/pkg/config"
	"github.com/miltonlaufer/diffgraph/pkg/engine"
)

// appName is used for the cache directory and the root command.
const appName = "diffgraph"

// CLI holds the dependencies for command construction. Commands are methods
// on CLI so tests can inject their own writer and log level.
type CLI struct {
	w     io.Writer
	level log.Level
}

// New creates a CLI that writes to w and logs at the given level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{w: w, level: level}
}

// Execute runs the root command with default settings.
// It returns an error if command execution fails.
func Execute() error {
	c := New(os.Stdout, log.InfoLevel)
	return c.RootCommand().Execute()
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Diff-aware layout engine for structure graphs",
		Long: `diffgraph computes positioned, cross-aligned layouts for old/new
structure graph pairs produced by a diff analyzer.

It matches nodes across the two sides, lays out each side with nested
group containers, aligns matched content vertically via breakpoints,
and builds search and neighborhood indexes over the result.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := c.level
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(withLogger(cmd.Context(), logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("config", "", "path to config file (TOML)")

	root.AddCommand(
		c.layoutCommand(),
		c.renderCommand(),
		c.serveCommand(),
		c.cacheCommand(),
		c.completionCommand(),
	)

	return root
}

// loadConfig resolves the effective configuration for a command, honoring
// the persistent --config flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// newEngine constructs an engine from configuration, wiring the configured
// cache backend. noCache forces the null backend regardless of config.
func newEngine(ctx context.Context, cfg config.Config, logger *log.Logger, noCache bool) (*engine.Engine, error) {
	backend, err := newCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engine.Config{
		Workers:       cfg.Engine.Workers,
		HardTimeout:   cfg.Engine.HardTimeout(),
		SoftTimeout:   cfg.Engine.SoftTimeout(),
		SoftThreshold: cfg.Engine.SoftThreshold,
		CacheTTL:      cfg.Cache.TTL(),
		Geometry:      cfg.Geometry,
	}, engine.WithCache(backend), engine.WithLogger(logger))
	return eng, nil
}

// newCache creates the cache backend selected by configuration.
func newCache(ctx context.Context, cfg config.Cache, disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return cache.NewMemoryCache(cfg.Capacity), nil
	case config.BackendFile:
		dir := cfg.Dir
		if dir == "" {
			var err error
			dir, err = cacheDir()
			if err != nil {
				return nil, err
			}
		}
		return cache.NewFileCache(dir)
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case config.BackendNone:
		return cache.NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// cacheDir returns the default on-disk cache location, creating it if needed.
func cacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate user cache dir: %w", err)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	return dir, nil
}
