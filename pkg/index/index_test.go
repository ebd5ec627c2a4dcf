package index

import (
	"sort"
	"testing"

	"github.com/miltonlaufer/diffgraph/pkg/layout"
	"github.com/miltonlaufer/diffgraph/pkg/match"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

func fixture(t *testing.T) (*structure.Graph, *layout.Result, *match.Indexer) {
	t.Helper()
	g := &structure.Graph{
		Nodes: []structure.Node{
			{ID: "fn", Kind: structure.KindGroup, Label: "func handler", FilePath: "api/handler.go"},
			{ID: "br", Kind: structure.KindBranch, Label: "if authorized", FilePath: "api/handler.go", ParentID: "fn", StartLine: 3},
			{ID: "ok", Kind: structure.KindStatement, Label: "serve request", FilePath: "api/handler.go", ParentID: "fn", StartLine: 4},
			{ID: "deny", Kind: structure.KindReturn, Label: "return 403", FilePath: "api/handler.go", ParentID: "fn", StartLine: 6},
		},
		Edges: []structure.Edge{
			{ID: "e1", Source: "br", Target: "ok", Relation: structure.RelationFlow, FlowType: structure.FlowTrue},
			{ID: "e2", Source: "br", Target: "deny", Relation: structure.RelationFlow, FlowType: structure.FlowFalse},
		},
	}
	res := layout.Build(g, layout.Options{Side: structure.SideNew})
	return g, res, match.NewIndexer(g)
}

func TestBuildKeyMapsAreInverse(t *testing.T) {
	g, res, ix := fixture(t)
	d := Build(g, res, ix)

	if len(d.KeyByNode) != len(g.Nodes) {
		t.Fatalf("KeyByNode has %d entries, want %d", len(d.KeyByNode), len(g.Nodes))
	}
	for id, key := range d.KeyByNode {
		if d.NodeByKey[key] != id {
			t.Errorf("NodeByKey[%q] = %q, want %q", key, d.NodeByKey[key], id)
		}
	}
}

func TestBuildNeighborhoods(t *testing.T) {
	g, res, ix := fixture(t)
	d := Build(g, res, ix)

	nh, ok := d.Neighborhoods["br"]
	if !ok {
		t.Fatal("no neighborhood for br")
	}
	// Hovering the branch keeps itself, both flow targets, and its
	// ancestor container.
	want := []string{"br", "deny", "fn", "ok"}
	if len(nh.Nodes) != len(want) {
		t.Fatalf("neighborhood nodes = %v, want %v", nh.Nodes, want)
	}
	if !sort.StringsAreSorted(nh.Nodes) {
		t.Errorf("neighborhood nodes not sorted: %v", nh.Nodes)
	}
	for i, id := range want {
		if nh.Nodes[i] != id {
			t.Fatalf("neighborhood nodes = %v, want %v", nh.Nodes, want)
		}
	}
	if len(nh.Edges) != 2 {
		t.Errorf("neighborhood edges = %v, want both flow edges", nh.Edges)
	}

	// A leaf with one edge keeps only itself, its neighbor, and the
	// container; the unrelated branch target is dimmed away.
	nhOK := d.Neighborhoods["ok"]
	for _, id := range nhOK.Nodes {
		if id == "deny" {
			t.Error("unrelated node kept in neighborhood")
		}
	}
	if len(nhOK.Edges) != 1 || nhOK.Edges[0] != "e1" {
		t.Errorf("ok edges = %v, want [e1]", nhOK.Edges)
	}
}

func TestSearch(t *testing.T) {
	g, res, _ := fixture(t)

	tests := []struct {
		name    string
		query   string
		exclude bool
		want    []string
	}{
		{"ByLabel", "authorized", false, []string{"br"}},
		{"CaseInsensitive", "AUTHORIZED", false, []string{"br"}},
		{"ByPath", "handler.go", false, []string{"br", "ok", "deny", "fn"}},
		{"ByKind", "return", false, []string{"deny"}},
		{"NoHits", "zebra", false, nil},
		{"Excluded", "authorized", true, []string{"ok", "deny", "fn"}},
		{"EmptyMatchesAll", "", false, []string{"br", "ok", "deny", "fn"}},
		{"EmptyExcludedMatchesNone", "", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Search(g, res, tt.query, tt.exclude)
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q, %v) = %v, want %v", tt.query, tt.exclude, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Search(%q, %v) = %v, want %v", tt.query, tt.exclude, got, tt.want)
				}
			}
		})
	}
}

func TestSearchSkipsPrunedNodes(t *testing.T) {
	g := &structure.Graph{
		Nodes: []structure.Node{
			{ID: "empty", Kind: structure.KindGroup, Label: "ghost", DiffStatus: structure.DiffUnchanged},
			{ID: "fn", Kind: structure.KindGroup, Label: "func real"},
			{ID: "s", Kind: structure.KindStatement, Label: "ghost sighting", ParentID: "fn"},
		},
	}
	res := layout.Build(g, layout.Options{})

	got := Search(g, res, "ghost", false)
	if len(got) != 1 || got[0] != "s" {
		t.Errorf("Search = %v, want only the laid-out statement", got)
	}
}
