package cli

import (
	"github.com/spf13/cobra"

	"github.com/miltonlaufer/diffgraph/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP layout service",
		Long: `Run an HTTP server that accepts analyzer bundles and serves
computed layouts, derived indexes, and search results.

Bundles are kept in memory unless a MongoDB URI is configured, in which
case snapshots persist across restarts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			eng, err := newEngine(ctx, cfg, logger, noCache)
			if err != nil {
				return err
			}
			defer eng.Close()

			var store server.Store
			if cfg.Server.MongoURI != "" {
				store, err = server.NewMongoStore(ctx, cfg.Server.MongoURI, cfg.Server.MongoDB)
				if err != nil {
					return err
				}
				logger.Info("using mongodb snapshot store", "db", cfg.Server.MongoDB)
			} else {
				store = server.NewMemoryStore()
			}
			defer store.Close(ctx)

			srv := server.New(eng, store, logger)
			printInfo("Serving on %s", cfg.Server.Addr)
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the layout cache")

	return cmd
}
