// Package structure defines the source-derived structure graph consumed by
// the diff layout engine.
//
// A StructureGraph holds one side (old or new) of a diff: control-flow
// blocks, declarations, or component nodes produced by an external analyzer,
// plus the edges between them. Nodes form a forest via ParentID; `group`
// nodes are containers (functions, classes, scopes) and every other kind is
// a leaf.
//
// The graph is immutable as far as this module is concerned: the analyzer
// produces it once per (diff, view type), and all downstream computation
// (matching, layout, alignment, indexing) treats it as read-only input.
package structure

import "errors"

// Node kinds. Kind is a closed set: exactly one container kind plus the
// leaf kinds below. The layout and matching code switch exhaustively on it.
const (
	KindGroup       = "group"
	KindBranch      = "branch"
	KindLoop        = "loop"
	KindStatement   = "statement"
	KindDeclaration = "declaration"
	KindCall        = "call"
	KindReturn      = "return"
)

// Edge relations.
const (
	RelationHierarchy = "hierarchy"
	RelationFlow      = "flow"
	RelationInvoke    = "invoke"
)

// Flow types for decision branches.
const (
	FlowTrue  = "true"
	FlowFalse = "false"
	FlowNext  = "next"
)

// Diff statuses, attached by the analyzer to nodes and edges.
const (
	DiffAdded     = "added"
	DiffRemoved   = "removed"
	DiffModified  = "modified"
	DiffUnchanged = "unchanged"
)

// Sides of a diff pair.
const (
	SideOld = "old"
	SideNew = "new"
)

var (
	// ErrEmptyNodeID is returned by Validate when a node has no ID.
	ErrEmptyNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by Validate when two nodes share an ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrParentCycle is returned by Validate when following ParentID links
	// revisits a node. The data model forbids cycles; this indicates a
	// corrupt graph from the analyzer.
	ErrParentCycle = errors.New("parent chain contains a cycle")
)

// Node is one element of a structure graph: a container (KindGroup) or a
// leaf such as a branch, loop, or statement.
type Node struct {
	ID         string `json:"id" bson:"id"`
	Kind       string `json:"kind" bson:"kind"`
	Label      string `json:"label,omitempty" bson:"label,omitempty"`
	FilePath   string `json:"file_path,omitempty" bson:"file_path,omitempty"`
	StartLine  int    `json:"start_line,omitempty" bson:"start_line,omitempty"`
	EndLine    int    `json:"end_line,omitempty" bson:"end_line,omitempty"`
	ParentID   string `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	ClassName  string `json:"class_name,omitempty" bson:"class_name,omitempty"`
	BranchType string `json:"branch_type,omitempty" bson:"branch_type,omitempty"`
	DiffStatus string `json:"diff_status,omitempty" bson:"diff_status,omitempty"`
}

// IsGroup reports whether the node is a container.
func (n *Node) IsGroup() bool { return n.Kind == KindGroup }

// IsDecision reports whether the node is a decision-kind leaf (branch or
// loop). Decision leaves get a larger square footprint in the layout and
// carry yes/no/next ports on their outgoing flow edges.
func (n *Node) IsDecision() bool { return n.Kind == KindBranch || n.Kind == KindLoop }

// Changed reports whether the node's diff status is anything other than
// unchanged. An empty status counts as unchanged.
func (n *Node) Changed() bool {
	return n.DiffStatus != "" && n.DiffStatus != DiffUnchanged
}

// Edge is a directed connection between two nodes of the same graph.
type Edge struct {
	ID         string `json:"id" bson:"id"`
	Source     string `json:"source" bson:"source"`
	Target     string `json:"target" bson:"target"`
	Relation   string `json:"relation" bson:"relation"`
	FlowType   string `json:"flow_type,omitempty" bson:"flow_type,omitempty"`
	DiffStatus string `json:"diff_status,omitempty" bson:"diff_status,omitempty"`
}

// Graph is one side's structure graph. Nodes form a forest via ParentID;
// edges reference node IDs within the same graph.
type Graph struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Edges []Edge `json:"edges" bson:"edges"`
}

// Pair bundles both sides of a diff for one view type, together with the
// file texts referenced by node line ranges (normalized path → full text)
// and the flag controlling whether invoke edges are laid out.
type Pair struct {
	Old       Graph             `json:"old" bson:"old"`
	New       Graph             `json:"new" bson:"new"`
	Files     map[string]string `json:"files,omitempty" bson:"files,omitempty"`
	ShowCalls bool              `json:"show_calls,omitempty" bson:"show_calls,omitempty"`
}

// Validate checks structural integrity: non-empty unique node IDs and
// acyclic parent chains. Dangling ParentID or edge endpoints are not
// errors; downstream stages skip them so one malformed node cannot blank
// a whole panel.
func (g *Graph) Validate() error {
	seen := make(map[string]struct{}, len(g.Nodes))
	for i := range g.Nodes {
		id := g.Nodes[i].ID
		if id == "" {
			return ErrEmptyNodeID
		}
		if _, dup := seen[id]; dup {
			return ErrDuplicateNodeID
		}
		seen[id] = struct{}{}
	}

	idx := NewIndex(g)
	for i := range g.Nodes {
		if _, err := idx.TopAncestor(g.Nodes[i].ID); err != nil {
			return err
		}
	}
	return nil
}
