package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miltonlaufer/diffgraph/pkg/engine"
	"github.com/miltonlaufer/diffgraph/pkg/export"
	"github.com/miltonlaufer/diffgraph/pkg/layout"
)

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		side     string
		format   string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "render <layout.json>",
		Short: "Render a computed layout as DOT or SVG",
		Long: `Render one side of a computed layout as a Graphviz document.

The input is the JSON written by the layout command. Groups become
clusters, leaves become boxes tinted by diff status, and flow edges
keep their branch port labels.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var out engine.Output
			if err := json.Unmarshal(data, &out); err != nil {
				return fmt.Errorf("unmarshal layout: %w", err)
			}

			var res *layout.Result
			switch side {
			case "old":
				res = out.Old
			case "new":
				res = out.New
			default:
				return fmt.Errorf("unknown side %q (want old or new)", side)
			}
			if res == nil {
				return fmt.Errorf("layout has no %s side", side)
			}

			spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("Generating DOT for %s side...", side))
			spinner.Start()

			dot := export.ToDOT(res, export.Options{Detailed: detailed})

			var (
				payload []byte
				ext     string
			)
			switch format {
			case "dot":
				payload = []byte(dot)
				ext = ".dot"
			case "svg":
				spinner.SetMessage("Rendering SVG...")
				prog := newProgress(logger)
				payload, err = export.RenderSVG(dot)
				if err != nil {
					spinner.StopWithError("Render failed")
					return err
				}
				prog.done("Rendered SVG")
				ext = ".svg"
			default:
				spinner.Stop()
				return fmt.Errorf("unknown format %q (want dot or svg)", format)
			}

			path := output
			if path == "" {
				base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
				path = base + "." + side + ext
			}
			if err := os.WriteFile(path, payload, 0o644); err != nil {
				spinner.StopWithError("Render failed")
				return fmt.Errorf("write %s: %w", path, err)
			}

			spinner.StopWithSuccess(fmt.Sprintf("Rendered %s side", side))
			printFile(path)
			return nil
		},
	}

	cmd.Flags().StringVar(&side, "side", "new", "side to render (old or new)")
	cmd.Flags().StringVar(&format, "format", "svg", "output format (dot or svg)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include file locations in node labels")

	return cmd
}
