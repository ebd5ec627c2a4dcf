package layout

// Geometry holds the fixed sizing constants for one layout run. All values
// are in user units (typically pixels). The zero value is not usable; use
// DefaultGeometry and adjust fields as needed.
type Geometry struct {
	// Leaf footprints. Decision leaves (branch, loop) are rendered as
	// larger squares so their outgoing yes/no/next ports have room;
	// everything else is a wide shallow box.
	DecisionSize    float64 `toml:"decision_size"`
	StatementWidth  float64 `toml:"statement_width"`
	StatementHeight float64 `toml:"statement_height"`

	// Group padding is asymmetric: extra room at the top for a header.
	GroupPadTop    float64 `toml:"group_pad_top"`
	GroupPadSide   float64 `toml:"group_pad_side"`
	GroupPadBottom float64 `toml:"group_pad_bottom"`

	// Gaps between stacked children, between top-level blocks, and the
	// minimum clearance the overlap resolver enforces.
	VGap       float64 `toml:"v_gap"`
	HGap       float64 `toml:"h_gap"`
	OverlapGap float64 `toml:"overlap_gap"`

	// SnippetContext is the number of file-text lines captured on each
	// side of a node's line range.
	SnippetContext int `toml:"snippet_context"`
}

// DefaultGeometry returns the standard sizing constants.
func DefaultGeometry() Geometry {
	return Geometry{
		DecisionSize:    96,
		StatementWidth:  180,
		StatementHeight: 48,
		GroupPadTop:     44,
		GroupPadSide:    16,
		GroupPadBottom:  16,
		VGap:            12,
		HGap:            48,
		OverlapGap:      8,
		SnippetContext:  2,
	}
}

// LeafSize returns the footprint for a leaf of the given kind.
func (g Geometry) LeafSize(kind string) (w, h float64) {
	switch kind {
	case "branch", "loop":
		return g.DecisionSize, g.DecisionSize
	default:
		return g.StatementWidth, g.StatementHeight
	}
}
