package structure

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Bundle is the canonical serialization format for analyzer output: one
// diff's graph pairs keyed by view type (e.g. "flow", "declarations",
// "components"). It is the input boundary of the whole engine, produced
// by the external analyzer and consumed by CLI and server alike.
type Bundle struct {
	// DiffID identifies the source diff/PR, informational only.
	DiffID string `json:"diff_id,omitempty" bson:"diff_id,omitempty"`

	// Views maps view type to its old/new graph pair.
	Views map[string]*Pair `json:"views" bson:"views"`
}

// ViewNames returns the bundle's view types, sorted.
func (b *Bundle) ViewNames() []string {
	names := make([]string, 0, len(b.Views))
	for name := range b.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalBundle deserializes JSON bytes to a Bundle and validates every
// contained graph.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}
	if len(b.Views) == 0 {
		return nil, fmt.Errorf("bundle contains no views")
	}
	for name, pair := range b.Views {
		if pair == nil {
			return nil, fmt.Errorf("view %q is empty", name)
		}
		if err := pair.Old.Validate(); err != nil {
			return nil, fmt.Errorf("view %q old graph: %w", name, err)
		}
		if err := pair.New.Validate(); err != nil {
			return nil, fmt.Errorf("view %q new graph: %w", name, err)
		}
	}
	return &b, nil
}

// ReadBundleFile reads a Bundle from a JSON file.
func ReadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalBundle(data)
}
