// Package match derives stable cross-version identities for structure-graph
// nodes.
//
// The same logical element (a branch, a statement, a declaration) usually
// survives an edit with a shifted line number or a changed version tag in
// its label. Matching is therefore heuristic and label/path based: a
// MatchKey normalizes away the volatile parts of a node's identity, and an
// IndexedMatchKey disambiguates duplicates (overloaded or repeated labels)
// with a deterministic ordinal. Two nodes on opposite sides of a diff
// correspond exactly when their IndexedMatchKeys are equal.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

// maxLine is the sort sentinel for nodes without line information: they
// order after every node that has a line. Determinism is the only
// guarantee the ordinal assignment makes.
const maxLine = int(^uint(0) >> 1)

var (
	bracketTagRe = regexp.MustCompile(`^\[[^\]]*\]\s*`)
	numericIDRe  = regexp.MustCompile(`@\d+`)
	lineRefRe    = regexp.MustCompile(`\bline \d+\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeLabel canonicalizes a node label for matching: strips a leading
// bracketed tag (version markers), rewrites `@<number>` identifiers and
// `line <number>` references to wildcard tokens, collapses whitespace, and
// lowercases. Labels that differ only by line shifts or version tags
// normalize to the same string.
func NormalizeLabel(label string) string {
	s := bracketTagRe.ReplaceAllString(label, "")
	s = numericIDRe.ReplaceAllString(s, "@*")
	s = lineRefRe.ReplaceAllString(s, "line *")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePath canonicalizes a file path: backslashes become slashes and
// leading "./" or "/" prefixes are dropped.
func NormalizePath(path string) string {
	s := strings.ReplaceAll(path, `\`, "/")
	for {
		switch {
		case strings.HasPrefix(s, "./"):
			s = s[2:]
		case strings.HasPrefix(s, "/"):
			s = s[1:]
		default:
			return s
		}
	}
}

// Key derives the MatchKey for a node:
//
//	kind : normalizedPath : normalizedClass : normalizedBranchType : normalizedLabel
//
// Multiple nodes of one graph may share a MatchKey; use Indexer for the
// disambiguated form.
func Key(n *structure.Node) string {
	return strings.Join([]string{
		n.Kind,
		NormalizePath(n.FilePath),
		strings.ToLower(n.ClassName),
		strings.ToLower(n.BranchType),
		NormalizeLabel(n.Label),
	}, ":")
}

// Indexer holds the per-graph IndexedMatchKey assignment.
type Indexer struct {
	keyByID  map[string]string // node ID → IndexedMatchKey
	idsByKey map[string]string // IndexedMatchKey → node ID
}

// NewIndexer computes IndexedMatchKeys for every node of a graph: nodes are
// grouped by MatchKey, each group is sorted by (StartLine, EndLine, ID) with
// missing lines ordering last, and keys get a 1-based `#n` suffix.
func NewIndexer(g *structure.Graph) *Indexer {
	groups := make(map[string][]*structure.Node)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		k := Key(n)
		groups[k] = append(groups[k], n)
	}

	ix := &Indexer{
		keyByID:  make(map[string]string, len(g.Nodes)),
		idsByKey: make(map[string]string, len(g.Nodes)),
	}
	for k, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			as, bs := lineOrMax(a.StartLine), lineOrMax(b.StartLine)
			if as != bs {
				return as < bs
			}
			ae, be := lineOrMax(a.EndLine), lineOrMax(b.EndLine)
			if ae != be {
				return ae < be
			}
			return a.ID < b.ID
		})
		for i, n := range group {
			indexed := fmt.Sprintf("%s#%d", k, i+1)
			ix.keyByID[n.ID] = indexed
			ix.idsByKey[indexed] = n.ID
		}
	}
	return ix
}

// KeyOf returns the node's IndexedMatchKey, or "" for unknown IDs.
func (ix *Indexer) KeyOf(nodeID string) string { return ix.keyByID[nodeID] }

// NodeOf returns the node ID carrying the given IndexedMatchKey, or "".
func (ix *Indexer) NodeOf(indexedKey string) string { return ix.idsByKey[indexedKey] }

// Correspond resolves a node of this graph to its counterpart in the other
// graph's indexer. The second return is false when the node is exclusive to
// its side (added or removed, never unchanged).
func (ix *Indexer) Correspond(nodeID string, other *Indexer) (string, bool) {
	k := ix.KeyOf(nodeID)
	if k == "" {
		return "", false
	}
	id := other.NodeOf(k)
	return id, id != ""
}

func lineOrMax(line int) int {
	if line <= 0 {
		return maxLine
	}
	return line
}
