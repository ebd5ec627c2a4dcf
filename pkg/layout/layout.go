// Package layout computes nested hierarchical layouts for one side of a
// structure-graph diff.
//
// The engine runs in four steps: prune empty unchanged groups, lay out each
// group's direct children bottom-up (deepest groups first), place the
// surviving roots left to right, and select the edges worth drawing.
// Positions are parent-relative; Result.Abs resolves absolute coordinates.
//
// The overlap resolver in this package post-processes a Result so sibling
// bounding boxes never collide. It runs once after layout and again after
// cross-side alignment, which can reintroduce collisions.
package layout

import (
	"sort"
	"strings"

	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// Options configures one layout run.
type Options struct {
	// Side labels the result ("old" or "new").
	Side string

	// Geometry supplies sizing constants. Zero value means defaults.
	Geometry Geometry

	// Files maps normalized file paths to full file text, used to attach
	// code-context snippets to positioned nodes. May be nil.
	Files map[string]string

	// ShowCalls keeps invoke edges that cross group boundaries. Off by
	// default because call edges dominate large graphs.
	ShowCalls bool
}

// Build computes the layout for one graph. Nodes with unresolvable parents
// are treated as roots; malformed nodes are skipped rather than failing the
// whole layout.
func Build(g *structure.Graph, opts Options) *Result {
	if opts.Geometry == (Geometry{}) {
		opts.Geometry = DefaultGeometry()
	}
	geo := opts.Geometry
	idx := structure.NewIndex(g)

	kept := pruneEmptyGroups(g, idx)

	// Collect groups by depth so children are always sized before their
	// parent lays them out.
	type depthGroup struct {
		id    string
		depth int
	}
	var groups []depthGroup
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !n.IsGroup() || !kept[n.ID] {
			continue
		}
		d, err := idx.Depth(n.ID)
		if err != nil {
			continue // cyclic parent chain, skip
		}
		groups = append(groups, depthGroup{id: n.ID, depth: d})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].depth > groups[j].depth })

	res := &Result{Side: opts.Side}
	sizes := make(map[string][2]float64) // node ID → {w, h}
	placed := make(map[string]*PositionedNode)

	add := func(n *structure.Node, parentID string, x, y, w, h float64) {
		res.Nodes = append(res.Nodes, PositionedNode{
			ID:         n.ID,
			ParentID:   parentID,
			Kind:       n.Kind,
			Label:      n.Label,
			X:          x,
			Y:          y,
			Width:      w,
			Height:     h,
			DiffStatus: n.DiffStatus,
			Snippet:    snippet(opts.Files, n, geo.SnippetContext),
		})
		res.index()
		placed[n.ID] = res.Node(n.ID)
		sizes[n.ID] = [2]float64{w, h}
	}

	// Bottom-up local layout: stack each group's direct children top to
	// bottom, then pad to get the group's own footprint.
	for _, grp := range groups {
		var cursor, contentW float64
		for _, childID := range idx.Children(grp.id) {
			child := idx.Node(childID)
			if child == nil || !kept[childID] {
				continue
			}
			w, h := childSize(child, sizes, geo)
			add(child, grp.id, geo.GroupPadSide, geo.GroupPadTop+cursor, w, h)
			cursor += h + geo.VGap
			if w > contentW {
				contentW = w
			}
		}
		contentH := cursor
		if contentH > 0 {
			contentH -= geo.VGap // no gap after the last child
		}
		sizes[grp.id] = [2]float64{
			contentW + 2*geo.GroupPadSide,
			contentH + geo.GroupPadTop + geo.GroupPadBottom,
		}
	}

	// Top-level layout: surviving roots flow left to right.
	var xCursor float64
	for _, rootID := range idx.Roots() {
		root := idx.Node(rootID)
		if root == nil || !kept[rootID] {
			continue
		}
		w, h := childSize(root, sizes, geo)
		add(root, "", xCursor, 0, w, h)
		xCursor += w + geo.HGap
	}

	res.Edges = selectEdges(g, kept, idx, opts.ShowCalls)
	res.index()
	return res
}

// pruneEmptyGroups computes the kept set: all leaves, plus groups with at
// least one kept descendant, plus empty groups whose diff status is not
// unchanged (a newly added empty function must stay visible).
func pruneEmptyGroups(g *structure.Graph, idx *structure.Index) map[string]bool {
	kept := make(map[string]bool, len(g.Nodes))

	var keep func(id string) bool
	keep = func(id string) bool {
		if v, done := kept[id]; done {
			return v
		}
		kept[id] = false // guards against malformed child cycles
		n := idx.Node(id)
		if n == nil {
			return false
		}
		if !n.IsGroup() {
			kept[id] = true
			return true
		}
		any := false
		for _, childID := range idx.Children(id) {
			if keep(childID) {
				any = true
			}
		}
		kept[id] = any || n.Changed()
		return kept[id]
	}

	for i := range g.Nodes {
		keep(g.Nodes[i].ID)
	}
	return kept
}

// childSize returns a node's footprint: groups use their computed size,
// leaves use the fixed per-kind size.
func childSize(n *structure.Node, sizes map[string][2]float64, geo Geometry) (w, h float64) {
	if n.IsGroup() {
		s := sizes[n.ID]
		return s[0], s[1]
	}
	return geo.LeafSize(n.Kind)
}

// selectEdges keeps the edges worth drawing. Hierarchy edges never are —
// nesting already conveys containment. Flow edges between kept nodes are
// kept and, for decision-kind sources, tagged with a port matching the flow
// type. Invoke edges survive only when ShowCalls is on.
func selectEdges(g *structure.Graph, kept map[string]bool, idx *structure.Index, showCalls bool) []PositionedEdge {
	var out []PositionedEdge
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Relation == structure.RelationHierarchy {
			continue
		}
		if !kept[e.Source] || !kept[e.Target] {
			continue
		}
		if e.Relation == structure.RelationInvoke && !showCalls {
			continue
		}
		pe := PositionedEdge{
			ID:         e.ID,
			Source:     e.Source,
			Target:     e.Target,
			Relation:   e.Relation,
			DiffStatus: e.DiffStatus,
		}
		if src := idx.Node(e.Source); src != nil && src.IsDecision() && e.Relation == structure.RelationFlow {
			pe.SourcePort = flowPort(e.FlowType)
		}
		out = append(out, pe)
	}
	return out
}

// flowPort maps a flow type to its fixed source anchor token.
func flowPort(flowType string) string {
	switch flowType {
	case structure.FlowTrue:
		return "yes"
	case structure.FlowFalse:
		return "no"
	default:
		return "next"
	}
}

// snippet extracts the file-text context around a node's line range:
// context lines above StartLine through context lines below EndLine.
// Returns "" when the node has no line info or its file is unknown.
func snippet(files map[string]string, n *structure.Node, context int) string {
	if files == nil || n.StartLine <= 0 {
		return ""
	}
	text, ok := files[n.FilePath]
	if !ok {
		// The boundary keys file texts by normalized path.
		text, ok = files[normalizePath(n.FilePath)]
		if !ok {
			return ""
		}
	}
	lines := strings.Split(text, "\n")
	start := n.StartLine - 1 - context
	if start < 0 {
		start = 0
	}
	end := n.EndLine
	if end < n.StartLine {
		end = n.StartLine
	}
	end += context
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func normalizePath(path string) string {
	s := strings.ReplaceAll(path, `\`, "/")
	s = strings.TrimPrefix(s, "./")
	return strings.TrimPrefix(s, "/")
}
