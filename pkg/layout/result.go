package layout

// PositionedNode is one placed element of a layout. X and Y are relative to
// the immediate parent's content origin; top-level nodes carry absolute
// coordinates. Status metadata from the input graph is preserved so the
// rendering layer never needs the raw graph.
type PositionedNode struct {
	ID         string  `json:"id" bson:"id"`
	ParentID   string  `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	Kind       string  `json:"kind" bson:"kind"`
	Label      string  `json:"label,omitempty" bson:"label,omitempty"`
	X          float64 `json:"x" bson:"x"`
	Y          float64 `json:"y" bson:"y"`
	Width      float64 `json:"width" bson:"width"`
	Height     float64 `json:"height" bson:"height"`
	DiffStatus string  `json:"diff_status,omitempty" bson:"diff_status,omitempty"`
	Snippet    string  `json:"snippet,omitempty" bson:"snippet,omitempty"`
}

// PositionedEdge is a kept edge of a layout. SourcePort is set for flow
// edges leaving a decision leaf ("yes", "no", "next") so rendering can
// route them to fixed anchor points.
type PositionedEdge struct {
	ID         string `json:"id" bson:"id"`
	Source     string `json:"source" bson:"source"`
	Target     string `json:"target" bson:"target"`
	Relation   string `json:"relation" bson:"relation"`
	SourcePort string `json:"source_port,omitempty" bson:"source_port,omitempty"`
	DiffStatus string `json:"diff_status,omitempty" bson:"diff_status,omitempty"`
}

// Result is the positioned output for one side of a diff.
type Result struct {
	Side  string           `json:"side" bson:"side"`
	Nodes []PositionedNode `json:"nodes" bson:"nodes"`
	Edges []PositionedEdge `json:"edges" bson:"edges"`

	byID map[string]int
}

// index (re)builds the id lookup. Called after any pass that appends or
// reorders Nodes.
func (r *Result) index() {
	r.byID = make(map[string]int, len(r.Nodes))
	for i := range r.Nodes {
		r.byID[r.Nodes[i].ID] = i
	}
}

// Node returns the positioned node with the given ID, or nil.
func (r *Result) Node(id string) *PositionedNode {
	if r.byID == nil {
		r.index()
	}
	i, ok := r.byID[id]
	if !ok {
		return nil
	}
	return &r.Nodes[i]
}

// Abs returns the absolute position of a node: the sum of position deltas
// along its parent chain. Every non-top-level node's parent is guaranteed
// to be present in the same Result.
func (r *Result) Abs(id string) (x, y float64) {
	for n := r.Node(id); n != nil; n = r.Node(n.ParentID) {
		x += n.X
		y += n.Y
		if n.ParentID == "" {
			break
		}
	}
	return x, y
}

// SetAbsY moves the node so its absolute y becomes absY, adjusting only its
// parent-relative Y. Descendant positions follow implicitly because they
// are stored relative to the node.
func (r *Result) SetAbsY(id string, absY float64) {
	n := r.Node(id)
	if n == nil {
		return
	}
	_, cur := r.Abs(id)
	n.Y += absY - cur
}
