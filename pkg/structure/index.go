package structure

// Index is a flat arena over one graph's nodes with the lookups every
// downstream stage needs: id → node, children lists, depth, and top-level
// ancestor resolution.
//
// Parent chains are resolved iteratively with a visited set. The data model
// forbids cycles, but a malformed graph must not hang the layout, so a
// revisited node yields ErrParentCycle instead of looping.
//
// An Index is read-only after construction and safe for concurrent use.
type Index struct {
	nodes    []Node
	byID     map[string]int
	children map[string][]string
}

// NewIndex builds an index over the graph's nodes. Nodes whose ParentID
// does not resolve within the graph are treated as roots.
func NewIndex(g *Graph) *Index {
	idx := &Index{
		nodes:    g.Nodes,
		byID:     make(map[string]int, len(g.Nodes)),
		children: make(map[string][]string),
	}
	for i := range g.Nodes {
		idx.byID[g.Nodes[i].ID] = i
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ParentID == "" {
			continue
		}
		if _, ok := idx.byID[n.ParentID]; !ok {
			continue // dangling parent, node becomes a root
		}
		idx.children[n.ParentID] = append(idx.children[n.ParentID], n.ID)
	}
	return idx
}

// Node returns the node with the given ID, or nil if absent.
func (idx *Index) Node(id string) *Node {
	i, ok := idx.byID[id]
	if !ok {
		return nil
	}
	return &idx.nodes[i]
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return len(idx.nodes) }

// Children returns the direct children of the given node, in input order.
func (idx *Index) Children(id string) []string { return idx.children[id] }

// IsRoot reports whether the node has no resolvable parent.
func (idx *Index) IsRoot(id string) bool {
	n := idx.Node(id)
	if n == nil {
		return false
	}
	if n.ParentID == "" {
		return true
	}
	_, ok := idx.byID[n.ParentID]
	return !ok
}

// Roots returns all nodes with no resolvable parent, in input order.
func (idx *Index) Roots() []string {
	var roots []string
	for i := range idx.nodes {
		if idx.IsRoot(idx.nodes[i].ID) {
			roots = append(roots, idx.nodes[i].ID)
		}
	}
	return roots
}

// Depth returns the number of resolvable ancestors above the node. Roots
// have depth 0; cyclic chains return ErrParentCycle.
func (idx *Index) Depth(id string) (int, error) {
	steps := 0
	if err := idx.walkUp(id, func(string) { steps++ }); err != nil {
		return 0, err
	}
	if steps == 0 {
		return 0, nil
	}
	return steps - 1, nil
}

// Ancestors returns the parent chain from the node's immediate parent up to
// its root, excluding the node itself.
func (idx *Index) Ancestors(id string) ([]string, error) {
	var chain []string
	if err := idx.walkUp(id, func(nid string) {
		if nid != id {
			chain = append(chain, nid)
		}
	}); err != nil {
		return nil, err
	}
	return chain, nil
}

// TopAncestor returns the root of the node's parent chain. A root node is
// its own top ancestor.
func (idx *Index) TopAncestor(id string) (string, error) {
	top := id
	if err := idx.walkUp(id, func(nid string) { top = nid }); err != nil {
		return "", err
	}
	return top, nil
}

// walkUp visits id and each resolvable ancestor in order, rejecting cycles.
func (idx *Index) walkUp(id string, visit func(string)) error {
	visited := make(map[string]struct{})
	cur := id
	for {
		n := idx.Node(cur)
		if n == nil {
			return nil
		}
		if _, seen := visited[cur]; seen {
			return ErrParentCycle
		}
		visited[cur] = struct{}{}
		visit(cur)
		if n.ParentID == "" {
			return nil
		}
		if _, ok := idx.byID[n.ParentID]; !ok {
			return nil
		}
		cur = n.ParentID
	}
}
