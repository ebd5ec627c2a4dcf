// Package align keeps the two sides of a structure-graph diff visually
// comparable: matched elements should share vertical position across the
// old and new panels.
//
// Alignment works on absolute y coordinates. Anchors (nodes identifiable
// on both sides, either by IndexedMatchKey or by the coarser structural
// anchor key) yield per-container breakpoints: (sourceY, deltaY) steps
// describing how far content at or below sourceY must shift. Applying the
// breakpoints to a layout moves matched nodes level with their
// counterparts; a correction pass then makes sure no container's content
// floats above its own header, and the overlap resolver runs once more
// because shifting can reintroduce sibling collisions.
package align

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miltonlaufer/diffgraph/pkg/layout"
	"github.com/miltonlaufer/diffgraph/pkg/match"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// Breakpoint is one step of the alignment function for a container: nodes
// whose original absolute y is at or past SourceY shift by DeltaY.
type Breakpoint struct {
	SourceY float64 `json:"source_y" bson:"source_y"`
	DeltaY  float64 `json:"delta_y" bson:"delta_y"`
}

// Anchor is one alignable node of a layout: its keys and absolute position.
type Anchor struct {
	NodeID       string
	StructKey    string // ordinal-suffixed structural anchor key
	MatchKey     string // IndexedMatchKey, "" when the node has none
	ContainerKey string // stable key of the top-level container
	X, Y         float64
}

// Anchors is the alignable-node view of one side's layout, indexed by both
// key families.
type Anchors struct {
	ByStruct map[string]Anchor
	ByMatch  map[string]Anchor

	// TopLevel maps container keys to the container's absolute position,
	// used by split-panel viewers to synchronize scrolling.
	TopLevel map[string][2]float64
}

// BuildAnchors derives the anchor set for one side. Every non-top-level
// positioned node contributes a structural anchor; nodes that also carry an
// IndexedMatchKey contribute an id anchor. Structural keys are
// ordinal-suffixed on duplicates in (y, x, key) order, mirroring
// IndexedMatchKey disambiguation.
func BuildAnchors(res *layout.Result, g *structure.Graph, ix *match.Indexer) *Anchors {
	idx := structure.NewIndex(g)
	out := &Anchors{
		ByStruct: make(map[string]Anchor),
		ByMatch:  make(map[string]Anchor),
		TopLevel: make(map[string][2]float64),
	}

	containerKeys := make(map[string]string) // node ID → top container key
	for i := range res.Nodes {
		pn := &res.Nodes[i]
		if pn.ParentID != "" {
			continue
		}
		key := ContainerKey(idx.Node(pn.ID))
		containerKeys[pn.ID] = key
		x, y := res.Abs(pn.ID)
		out.TopLevel[key] = [2]float64{x, y}
	}

	var raw []Anchor
	for i := range res.Nodes {
		pn := &res.Nodes[i]
		if pn.ParentID == "" {
			continue
		}
		n := idx.Node(pn.ID)
		if n == nil {
			continue
		}
		top, err := idx.TopAncestor(pn.ID)
		if err != nil {
			continue
		}
		x, y := res.Abs(pn.ID)
		raw = append(raw, Anchor{
			NodeID:       pn.ID,
			StructKey:    structuralKey(containerKeys[top], n),
			MatchKey:     ix.KeyOf(pn.ID),
			ContainerKey: containerKeys[top],
			X:            x,
			Y:            y,
		})
	}

	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].Y != raw[j].Y {
			return raw[i].Y < raw[j].Y
		}
		if raw[i].X != raw[j].X {
			return raw[i].X < raw[j].X
		}
		return raw[i].StructKey < raw[j].StructKey
	})

	ordinals := make(map[string]int)
	for _, a := range raw {
		ordinals[a.StructKey]++
		a.StructKey = fmt.Sprintf("%s#%d", a.StructKey, ordinals[a.StructKey])
		out.ByStruct[a.StructKey] = a
		if a.MatchKey != "" {
			out.ByMatch[a.MatchKey] = a
		}
	}
	return out
}

// ContainerKey returns the stable, layout-independent identifier of a
// top-level container, derived the same way on both sides.
func ContainerKey(n *structure.Node) string {
	if n == nil {
		return ""
	}
	return match.Key(n)
}

// structuralKey builds the coarse anchor key: top-level container key plus
// kind, path, class, normalized label, and branch kind.
func structuralKey(containerKey string, n *structure.Node) string {
	return strings.Join([]string{
		containerKey,
		n.Kind,
		match.NormalizePath(n.FilePath),
		strings.ToLower(n.ClassName),
		match.NormalizeLabel(n.Label),
		strings.ToLower(n.BranchType),
	}, "|")
}

// ComputeBreakpoints compares matched anchors across sides and produces,
// per top-level container key, the breakpoint list that shifts the old
// side's content level with the new side. Id anchors win over structural
// anchors for the same node; steps are sorted by SourceY, deduplicated, and
// kept monotonic in DeltaY so alignment never swaps the vertical order of
// content within a container.
func ComputeBreakpoints(oldSide, newSide *Anchors) map[string][]Breakpoint {
	type pair struct{ oldY, newY float64 }
	pairs := make(map[string][]pair)

	seen := make(map[string]struct{})
	for k, na := range newSide.ByMatch {
		oa, ok := oldSide.ByMatch[k]
		if !ok {
			continue
		}
		pairs[na.ContainerKey] = append(pairs[na.ContainerKey], pair{oldY: oa.Y, newY: na.Y})
		seen[na.ContainerKey+"\x00"+na.NodeID] = struct{}{}
	}
	for k, na := range newSide.ByStruct {
		if _, done := seen[na.ContainerKey+"\x00"+na.NodeID]; done {
			continue
		}
		oa, ok := oldSide.ByStruct[k]
		if !ok {
			continue
		}
		pairs[na.ContainerKey] = append(pairs[na.ContainerKey], pair{oldY: oa.Y, newY: na.Y})
	}

	out := make(map[string][]Breakpoint, len(pairs))
	for key, ps := range pairs {
		sort.Slice(ps, func(i, j int) bool { return ps[i].oldY < ps[j].oldY })
		var bps []Breakpoint
		for _, p := range ps {
			delta := p.newY - p.oldY
			if n := len(bps); n > 0 {
				if bps[n-1].SourceY == p.oldY {
					continue
				}
				if delta < bps[n-1].DeltaY {
					continue // keep deltas monotonic: never reorder content
				}
				if delta == bps[n-1].DeltaY {
					continue // redundant step
				}
			}
			bps = append(bps, Breakpoint{SourceY: p.oldY, DeltaY: delta})
		}
		if len(bps) > 0 {
			out[key] = bps
		}
	}
	return out
}

// Apply shifts a layout by the given per-container breakpoints, runs the
// header correction, rewrites parent-relative positions, and resolves the
// overlaps the shift may have introduced. The layout is modified in place.
//
// For each non-top-level node the step in effect is the last breakpoint at
// or before the node's original absolute y; before the first breakpoint the
// first breakpoint's delta applies as a stable baseline, so content
// inserted ahead of the first match still shifts with its block.
func Apply(res *layout.Result, g *structure.Graph, bps map[string][]Breakpoint, gap float64) {
	idx := structure.NewIndex(g)

	containerKeys := make(map[string]string)
	for i := range res.Nodes {
		pn := &res.Nodes[i]
		if pn.ParentID == "" {
			containerKeys[pn.ID] = ContainerKey(idx.Node(pn.ID))
		}
	}

	// New absolute y per node, starting from current positions.
	absY := make(map[string]float64, len(res.Nodes))
	absBefore := make(map[string]float64, len(res.Nodes))
	for i := range res.Nodes {
		_, y := res.Abs(res.Nodes[i].ID)
		absY[res.Nodes[i].ID] = y
		absBefore[res.Nodes[i].ID] = y
	}

	// Descendants per top-level node, skipping malformed chains.
	descendants := make(map[string][]string)
	tops := make(map[string]string)
	for i := range res.Nodes {
		pn := &res.Nodes[i]
		if pn.ParentID == "" {
			continue
		}
		top := topOf(res, pn.ID)
		tops[pn.ID] = top
		descendants[top] = append(descendants[top], pn.ID)
	}

	for top, ids := range descendants {
		steps := bps[containerKeys[top]]
		if len(steps) == 0 {
			continue
		}
		for _, id := range ids {
			absY[id] += deltaAt(steps, absBefore[id])
		}

		// Correction: a container's content must never rise above where
		// it started, or it would float over the container's header. The
		// correction is one scalar for all of the container's content.
		minBefore, minAfter := absBefore[ids[0]], absY[ids[0]]
		for _, id := range ids[1:] {
			if absBefore[id] < minBefore {
				minBefore = absBefore[id]
			}
			if absY[id] < minAfter {
				minAfter = absY[id]
			}
		}
		if minAfter < minBefore {
			correction := minBefore - minAfter
			for _, id := range ids {
				absY[id] += correction
			}
		}
	}

	// Write back parent-relative: each node's Y is its new absolute y
	// minus its parent's.
	for i := range res.Nodes {
		pn := &res.Nodes[i]
		if pn.ParentID == "" {
			continue
		}
		pn.Y = absY[pn.ID] - absY[pn.ParentID]
	}

	layout.ResolveOverlaps(res, gap)
}

// deltaAt returns the delta of the last breakpoint at or before y, or the
// first breakpoint's delta when y precedes all steps.
func deltaAt(steps []Breakpoint, y float64) float64 {
	delta := steps[0].DeltaY
	for _, s := range steps {
		if s.SourceY > y {
			break
		}
		delta = s.DeltaY
	}
	return delta
}

func topOf(res *layout.Result, id string) string {
	cur := id
	for {
		n := res.Node(cur)
		if n == nil || n.ParentID == "" {
			return cur
		}
		cur = n.ParentID
	}
}
