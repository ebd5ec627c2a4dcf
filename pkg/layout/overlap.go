package layout

import (
	"sort"

	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// box is a node's absolute bounding box during overlap resolution.
type box struct {
	id                       string
	left, top, right, bottom float64
}

func (b box) hOverlaps(o box) bool { return b.left < o.right && o.left < b.right }
func (b box) vOverlaps(o box) bool { return b.top < o.bottom && o.top < b.bottom }

// ResolveOverlaps removes vertical collisions from a layout in two passes:
// first among siblings sharing a parent (including top-level blocks under
// the implicit root), then across all leaves grouped by top-level ancestor
// to catch residual collisions between independently laid-out subtrees.
// Only y coordinates change; x is never touched. The result is modified in
// place.
func ResolveOverlaps(r *Result, gap float64) {
	siblings := make(map[string][]string)
	for i := range r.Nodes {
		n := &r.Nodes[i]
		siblings[n.ParentID] = append(siblings[n.ParentID], n.ID)
	}
	for _, ids := range siblings {
		resolveSet(r, ids, gap, false)
	}

	// Second pass: leaves per top-level ancestor, requiring vertical
	// overlap before pushing so already-separated leaves stay put.
	leavesByTop := make(map[string][]string)
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if n.Kind == structure.KindGroup {
			continue
		}
		top := topAncestor(r, n.ID)
		leavesByTop[top] = append(leavesByTop[top], n.ID)
	}
	for _, ids := range leavesByTop {
		resolveSet(r, ids, gap, true)
	}
}

// resolveSet greedily pushes colliding members of one set downward. When
// needVertical is false, horizontal span overlap alone forces the minimum
// gap; when true, a push happens only if the boxes actually intersect.
func resolveSet(r *Result, ids []string, gap float64, needVertical bool) {
	if len(ids) < 2 {
		return
	}
	boxes := make([]box, 0, len(ids))
	for _, id := range ids {
		n := r.Node(id)
		if n == nil {
			continue
		}
		x, y := r.Abs(id)
		boxes = append(boxes, box{id: id, left: x, top: y, right: x + n.Width, bottom: y + n.Height})
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		if boxes[i].top != boxes[j].top {
			return boxes[i].top < boxes[j].top
		}
		return boxes[i].left < boxes[j].left
	})

	placed := make([]box, 0, len(boxes))
	for _, b := range boxes {
		for _, p := range placed {
			if !b.hOverlaps(p) {
				continue
			}
			if needVertical && !b.vOverlaps(p) {
				continue
			}
			if b.top < p.bottom+gap {
				shift := p.bottom + gap - b.top
				b.top += shift
				b.bottom += shift
			}
		}
		r.SetAbsY(b.id, b.top)
		placed = append(placed, b)
	}
}

// topAncestor walks the positioned parent chain to the top-level node.
func topAncestor(r *Result, id string) string {
	cur := id
	for {
		n := r.Node(cur)
		if n == nil || n.ParentID == "" {
			return cur
		}
		cur = n.ParentID
	}
}
