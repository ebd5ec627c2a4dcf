package cache

import "testing"

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.LayoutKey("sig", "old"); got != "layout:old:sig" {
		t.Errorf("LayoutKey = %q", got)
	}
	if got := k.AlignKey("sig"); got != "align:sig" {
		t.Errorf("AlignKey = %q", got)
	}

	// Index keys are hashed but must be deterministic and sensitive to
	// the query options.
	a := k.IndexKey("sig", "new", IndexKeyOpts{Query: "foo"})
	b := k.IndexKey("sig", "new", IndexKeyOpts{Query: "foo"})
	c := k.IndexKey("sig", "new", IndexKeyOpts{Query: "foo", Exclude: true})
	if a != b {
		t.Error("IndexKey not deterministic")
	}
	if a == c {
		t.Error("IndexKey ignores Exclude")
	}
}

func TestScopedKeyerPrefixesEverything(t *testing.T) {
	k := NewScopedKeyer(NewDefaultKeyer(), "diff:abc:")

	tests := []struct {
		name string
		key  string
	}{
		{"Layout", k.LayoutKey("sig", "old")},
		{"Align", k.AlignKey("sig")},
		{"Index", k.IndexKey("sig", "old", IndexKeyOpts{})},
	}
	for _, tt := range tests {
		if len(tt.key) < len("diff:abc:") || tt.key[:9] != "diff:abc:" {
			t.Errorf("%s key %q missing scope prefix", tt.name, tt.key)
		}
	}
}

func TestScopedKeyerIsolation(t *testing.T) {
	a := NewScopedKeyer(nil, "diff:a:")
	b := NewScopedKeyer(nil, "diff:b:")
	if a.LayoutKey("sig", "old") == b.LayoutKey("sig", "old") {
		t.Error("scoped keyers collide across sessions")
	}
}
