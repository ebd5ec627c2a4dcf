package structure

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		graph   Graph
		wantErr error
	}{
		{
			name:  "Empty",
			graph: Graph{},
		},
		{
			name: "Valid",
			graph: Graph{
				Nodes: []Node{
					{ID: "fn", Kind: KindGroup},
					{ID: "s1", Kind: KindStatement, ParentID: "fn"},
				},
			},
		},
		{
			name: "EmptyID",
			graph: Graph{
				Nodes: []Node{{ID: "", Kind: KindStatement}},
			},
			wantErr: ErrEmptyNodeID,
		},
		{
			name: "DuplicateID",
			graph: Graph{
				Nodes: []Node{
					{ID: "a", Kind: KindStatement},
					{ID: "a", Kind: KindStatement},
				},
			},
			wantErr: ErrDuplicateNodeID,
		},
		{
			name: "ParentCycle",
			graph: Graph{
				Nodes: []Node{
					{ID: "a", Kind: KindGroup, ParentID: "b"},
					{ID: "b", Kind: KindGroup, ParentID: "a"},
				},
			},
			wantErr: ErrParentCycle,
		},
		{
			name: "DanglingParentOK",
			graph: Graph{
				Nodes: []Node{{ID: "a", Kind: KindStatement, ParentID: "missing"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIndexDepthAndAncestors(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "root", Kind: KindGroup},
			{ID: "mid", Kind: KindGroup, ParentID: "root"},
			{ID: "leaf", Kind: KindStatement, ParentID: "mid"},
		},
	}
	idx := NewIndex(g)

	for _, tt := range []struct {
		id        string
		depth     int
		ancestors int
		top       string
	}{
		{"root", 0, 0, "root"},
		{"mid", 1, 1, "root"},
		{"leaf", 2, 2, "root"},
	} {
		d, err := idx.Depth(tt.id)
		if err != nil {
			t.Fatalf("Depth(%s): %v", tt.id, err)
		}
		if d != tt.depth {
			t.Errorf("Depth(%s) = %d, want %d", tt.id, d, tt.depth)
		}
		anc, err := idx.Ancestors(tt.id)
		if err != nil {
			t.Fatalf("Ancestors(%s): %v", tt.id, err)
		}
		if len(anc) != tt.ancestors {
			t.Errorf("Ancestors(%s) = %d entries, want %d", tt.id, len(anc), tt.ancestors)
		}
		top, err := idx.TopAncestor(tt.id)
		if err != nil {
			t.Fatalf("TopAncestor(%s): %v", tt.id, err)
		}
		if top != tt.top {
			t.Errorf("TopAncestor(%s) = %s, want %s", tt.id, top, tt.top)
		}
	}
}

func TestIndexDanglingParentIsRoot(t *testing.T) {
	g := &Graph{
		Nodes: []Node{{ID: "orphan", Kind: KindStatement, ParentID: "gone"}},
	}
	idx := NewIndex(g)

	if !idx.IsRoot("orphan") {
		t.Error("node with dangling parent should be treated as a root")
	}
	roots := idx.Roots()
	if len(roots) != 1 || roots[0] != "orphan" {
		t.Errorf("Roots() = %v, want [orphan]", roots)
	}
}

func TestUnmarshalBundle(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		views   int
	}{
		{
			name: "SingleView",
			data: `{"views":{"flow":{"old":{"nodes":[],"edges":[]},"new":{"nodes":[{"id":"a","kind":"statement"}],"edges":[]}}}}`,
			views: 1,
		},
		{
			name:    "NoViews",
			data:    `{"views":{}}`,
			wantErr: true,
		},
		{
			name:    "InvalidGraph",
			data:    `{"views":{"flow":{"old":{"nodes":[{"id":"","kind":"statement"}]},"new":{"nodes":[]}}}}`,
			wantErr: true,
		},
		{
			name:    "NotJSON",
			data:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := UnmarshalBundle([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalBundle: %v", err)
			}
			if len(b.Views) != tt.views {
				t.Errorf("got %d views, want %d", len(b.Views), tt.views)
			}
		})
	}
}

func TestBundleViewNamesSorted(t *testing.T) {
	b := &Bundle{Views: map[string]*Pair{
		"flow":         {},
		"components":   {},
		"declarations": {},
	}}
	got := b.ViewNames()
	want := []string{"components", "declarations", "flow"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ViewNames() = %v, want %v", got, want)
		}
	}
}
