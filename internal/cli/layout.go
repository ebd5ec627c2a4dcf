package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		view    string
		output  string
		noCache bool
		pick    bool
	)

	cmd := &cobra.Command{
		Use:   "layout <bundle.json>",
		Short: "Compute aligned layouts for a graph bundle",
		Long: `Compute positioned layouts for the old and new graphs of a bundle view.

The bundle is a JSON document produced by the diff analyzer, holding one
graph pair per view type. Both sides are laid out, matched node-by-node,
and the old side is vertically aligned to the new side via breakpoints.

The result is written as JSON next to the input (or to --output) and
contains both positioned sides, the per-container breakpoints, and the
content signature used for caching.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			bundle, err := structure.ReadBundleFile(args[0])
			if err != nil {
				return err
			}

			name, err := resolveView(bundle, view, pick)
			if err != nil {
				return err
			}
			pair := bundle.Views[name]

			eng, err := newEngine(ctx, cfg, logger, noCache)
			if err != nil {
				return err
			}
			defer eng.Close()

			spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %q view...", name))
			spinner.Start()

			prog := newProgress(logger)
			out, err := eng.Layout(ctx, pair, name)
			if err != nil {
				spinner.StopWithError("Layout failed")
				return err
			}
			spinner.Stop()
			prog.done(fmt.Sprintf("Laid out %d old / %d new nodes",
				len(out.Old.Nodes), len(out.New.Nodes)))

			path := output
			if path == "" {
				path = outputPath(args[0], name)
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal layout: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			bps := 0
			for _, steps := range out.Breakpoints {
				bps += len(steps)
			}
			printSuccess("Layout complete")
			printFile(path)
			printStats(len(out.Old.Nodes), len(out.New.Nodes), bps, false)
			printNextStep("Render it", fmt.Sprintf("%s render %s --format svg", appName, path))
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", "", "view type to lay out (default: sole view, or interactive pick)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: <input>.<view>.layout.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the layout cache")
	cmd.Flags().BoolVar(&pick, "pick", false, "always pick the view interactively")

	return cmd
}

// resolveView decides which view of the bundle to lay out. A single-view
// bundle needs no flag; multi-view bundles take --view or fall back to the
// interactive picker on a terminal.
func resolveView(bundle *structure.Bundle, view string, pick bool) (string, error) {
	names := bundle.ViewNames()

	if view != "" && !pick {
		if _, ok := bundle.Views[view]; !ok {
			return "", fmt.Errorf("bundle has no %q view (available: %s)",
				view, strings.Join(names, ", "))
		}
		return view, nil
	}

	if len(names) == 1 && !pick {
		return names[0], nil
	}

	if !isTerminal(os.Stdout) {
		return "", fmt.Errorf("bundle has %d views, pass --view (available: %s)",
			len(names), strings.Join(names, ", "))
	}
	return pickView(bundle)
}

// outputPath derives the default layout output path from the input path.
func outputPath(input, view string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return fmt.Sprintf("%s.%s.layout.json", base, view)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
