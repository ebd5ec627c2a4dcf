package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miltonlaufer/diffgraph/pkg/cache"
	"github.com/miltonlaufer/diffgraph/pkg/layout"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// fileSampleSize is how many bytes of each referenced file's head and tail
// go into the signature. Sampling keeps signing cheap on large files while
// still catching edits near either end; the length guards the middle.
const fileSampleSize = 256

// Signature computes the content signature for a diff pair under the given
// view parameters. Identical signatures mean identical positioned output,
// which is what lets the cache short-circuit both the worker call and the
// wait. The hash covers every node and edge field the layout depends on, a
// head/tail sample of each referenced file text, and the view parameters,
// never object identity.
func Signature(pair *structure.Pair, view string, geo layout.Geometry) string {
	var b strings.Builder
	b.Grow(1 << 12)

	fmt.Fprintf(&b, "view=%s;calls=%t;geo=%+v;", view, pair.ShowCalls, geo)

	writeGraph(&b, "old", &pair.Old)
	writeGraph(&b, "new", &pair.New)

	paths := make([]string, 0, len(pair.Files))
	for p := range pair.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		text := pair.Files[p]
		fmt.Fprintf(&b, "file=%s;len=%d;head=%s;tail=%s;",
			p, len(text), sample(text, true), sample(text, false))
	}

	return cache.Hash([]byte(b.String()))
}

func writeGraph(b *strings.Builder, side string, g *structure.Graph) {
	fmt.Fprintf(b, "side=%s;", side)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		fmt.Fprintf(b, "n=%s|%s|%s|%s|%d|%d|%s|%s|%s|%s;",
			n.ID, n.Kind, n.Label, n.FilePath, n.StartLine, n.EndLine,
			n.ParentID, n.ClassName, n.BranchType, n.DiffStatus)
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		fmt.Fprintf(b, "e=%s|%s|%s|%s|%s|%s;",
			e.ID, e.Source, e.Target, e.Relation, e.FlowType, e.DiffStatus)
	}
}

func sample(text string, head bool) string {
	if len(text) <= fileSampleSize {
		return text
	}
	if head {
		return text[:fileSampleSize]
	}
	return text[len(text)-fileSampleSize:]
}
