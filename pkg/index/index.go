// Package index builds the derived lookups a viewer needs on top of a
// finalized layout: match-key maps for cross-panel hover, per-node hover
// neighborhoods for dimming unrelated content, and text search over node
// labels, paths, and kinds.
//
// Everything here is a pure function of its inputs, so the engine is free
// to run index building off the interactive path and cache the results
// under the same signature scheme as layouts.
package index

import (
	"sort"
	"strings"

	"github.com/miltonlaufer/diffgraph/pkg/layout"
	"github.com/miltonlaufer/diffgraph/pkg/match"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// Derived is the complete derived-index set for one side.
type Derived struct {
	// KeyByNode maps node ID → IndexedMatchKey; NodeByKey is the inverse.
	// Hovering a node on one side resolves the same key in the other
	// side's Derived to find its counterpart.
	KeyByNode map[string]string `json:"key_by_node" bson:"key_by_node"`
	NodeByKey map[string]string `json:"node_by_key" bson:"node_by_key"`

	// Neighborhoods maps node ID → the IDs kept visible when that node is
	// hovered: the node itself, its edge-adjacent neighbors, and its
	// ancestor chain.
	Neighborhoods map[string]Neighborhood `json:"neighborhoods" bson:"neighborhoods"`
}

// Neighborhood is the kept set for one hovered node.
type Neighborhood struct {
	Nodes []string `json:"nodes" bson:"nodes"`
	Edges []string `json:"edges" bson:"edges"`
}

// Build computes the derived indexes for one side from its raw graph, its
// finalized layout, and the side's match indexer.
func Build(g *structure.Graph, res *layout.Result, ix *match.Indexer) *Derived {
	idx := structure.NewIndex(g)
	d := &Derived{
		KeyByNode:     make(map[string]string, len(res.Nodes)),
		NodeByKey:     make(map[string]string, len(res.Nodes)),
		Neighborhoods: make(map[string]Neighborhood, len(res.Nodes)),
	}

	laidOut := make(map[string]bool, len(res.Nodes))
	for i := range res.Nodes {
		laidOut[res.Nodes[i].ID] = true
	}

	for i := range res.Nodes {
		id := res.Nodes[i].ID
		if k := ix.KeyOf(id); k != "" {
			d.KeyByNode[id] = k
			d.NodeByKey[k] = id
		}
	}

	adjacent := make(map[string][]string)
	for i := range res.Edges {
		e := &res.Edges[i]
		adjacent[e.Source] = append(adjacent[e.Source], e.Target)
		adjacent[e.Target] = append(adjacent[e.Target], e.Source)
	}

	for i := range res.Nodes {
		id := res.Nodes[i].ID
		kept := map[string]struct{}{id: {}}
		for _, nb := range adjacent[id] {
			kept[nb] = struct{}{}
		}
		if chain, err := idx.Ancestors(id); err == nil {
			for _, anc := range chain {
				if laidOut[anc] {
					kept[anc] = struct{}{}
				}
			}
		}

		nh := Neighborhood{Nodes: make([]string, 0, len(kept))}
		for nid := range kept {
			nh.Nodes = append(nh.Nodes, nid)
		}
		sort.Strings(nh.Nodes) // deterministic output for caching
		for j := range res.Edges {
			e := &res.Edges[j]
			_, src := kept[e.Source]
			_, dst := kept[e.Target]
			if src && dst {
				nh.Edges = append(nh.Edges, e.ID)
			}
		}
		d.Neighborhoods[id] = nh
	}
	return d
}

// Search returns the IDs of laid-out nodes whose label, path, or kind
// contains the query (case-insensitive substring). With exclude set, the
// match is inverted: only non-matching nodes are returned. An empty query
// matches every node, so exclude with an empty query returns nothing.
func Search(g *structure.Graph, res *layout.Result, query string, exclude bool) []string {
	idx := structure.NewIndex(g)
	q := strings.ToLower(query)

	var out []string
	for i := range res.Nodes {
		id := res.Nodes[i].ID
		n := idx.Node(id)
		if n == nil {
			continue
		}
		hit := strings.Contains(strings.ToLower(n.Label), q) ||
			strings.Contains(strings.ToLower(n.FilePath), q) ||
			strings.Contains(strings.ToLower(n.Kind), q)
		if hit != exclude {
			out = append(out, id)
		}
	}
	return out
}
