// Package export renders positioned layouts to Graphviz DOT and SVG for
// inspection and debugging. The interactive viewer has its own renderer;
// this package exists so the CLI can produce a standalone artifact from a
// computed layout without any of that machinery.
package export

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/miltonlaufer/diffgraph/pkg/layout"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes kind and diff status in node labels.
	Detailed bool
}

// ToDOT converts one side's layout to Graphviz DOT. Groups become
// clusters; leaves become boxes filled by diff status (added green,
// removed red, modified yellow). Positions are not carried over; DOT
// output is for structural inspection, not pixel fidelity.
func ToDOT(res *layout.Result, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	children := make(map[string][]*layout.PositionedNode)
	var roots []*layout.PositionedNode
	for i := range res.Nodes {
		n := &res.Nodes[i]
		if n.ParentID == "" {
			roots = append(roots, n)
		} else {
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	sortNodes(roots)
	for _, kids := range children {
		sortNodes(kids)
	}

	for _, root := range roots {
		writeNode(&buf, root, children, opts, 1)
	}

	buf.WriteString("\n")
	for i := range res.Edges {
		e := &res.Edges[i]
		attrs := []string{}
		if e.SourcePort != "" {
			attrs = append(attrs, fmt.Sprintf("taillabel=%q", e.SourcePort))
		}
		if e.Relation == structure.RelationInvoke {
			attrs = append(attrs, "style=dashed")
		}
		if len(attrs) > 0 {
			fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeNode(buf *bytes.Buffer, n *layout.PositionedNode, children map[string][]*layout.PositionedNode, opts Options, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.Kind == structure.KindGroup {
		fmt.Fprintf(buf, "%ssubgraph \"cluster_%s\" {\n", indent, n.ID)
		fmt.Fprintf(buf, "%s  label=%q;\n", indent, fmtLabel(n, opts.Detailed))
		for _, kid := range children[n.ID] {
			writeNode(buf, kid, children, opts, depth+1)
		}
		fmt.Fprintf(buf, "%s}\n", indent)
		return
	}
	fmt.Fprintf(buf, "%s%q [label=%q%s];\n", indent, n.ID, fmtLabel(n, opts.Detailed), fillFor(n.DiffStatus))
}

func fmtLabel(n *layout.PositionedNode, detailed bool) string {
	label := n.Label
	if label == "" {
		label = n.ID
	}
	if !detailed {
		return label
	}
	parts := []string{label, "kind: " + n.Kind}
	if n.DiffStatus != "" {
		parts = append(parts, "status: "+n.DiffStatus)
	}
	return strings.Join(parts, "\n")
}

func fillFor(status string) string {
	switch status {
	case structure.DiffAdded:
		return ", fillcolor=palegreen"
	case structure.DiffRemoved:
		return ", fillcolor=lightpink"
	case structure.DiffModified:
		return ", fillcolor=lightyellow"
	default:
		return ""
	}
}

func sortNodes(ns []*layout.PositionedNode) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].Y != ns[j].Y {
			return ns[i].Y < ns[j].Y
		}
		if ns[i].X != ns[j].X {
			return ns[i].X < ns[j].X
		}
		return ns[i].ID < ns[j].ID
	})
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
