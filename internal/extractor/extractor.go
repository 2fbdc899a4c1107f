// Package extractor turns one PHP file into the declarations it contains.
//
// Two implementations share the Extractor interface: a heuristic one that
// matches declaration shapes and doc comments structurally, and a
// tree-sitter one backed by the full PHP grammar. Both are best-effort: a
// file being edited yields whatever declarations are complete.
package extractor

import (
	"fmt"
	"sort"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// Extractor produces the ordered symbol records declared in one file.
// Implementations never fail; malformed input yields partial results.
type Extractor interface {
	Extract(path string, source []byte) []symbols.Record
}

// Names of the available implementations.
const (
	Heuristic  = "heuristic"
	TreeSitter = "treesitter"
)

// New returns the extractor registered under name.
func New(name string) (Extractor, error) {
	switch name {
	case "", Heuristic:
		return NewHeuristic(), nil
	case TreeSitter:
		return NewTreeSitter(), nil
	}
	return nil, fmt.Errorf("unknown extractor %q", name)
}

func sortRecords(records []symbols.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Offset < records[j].Offset
	})
}

// returnType applies the inference policy: documented type first, then the
// declaration's own hint, otherwise nothing.
func returnType(doc Doc, hint string) string {
	if doc.Return != "" {
		return symbols.NormalizeType(doc.Return)
	}
	return symbols.NormalizeType(hint)
}

func visibilityOf(modifiers []string) symbols.Visibility {
	for _, m := range modifiers {
		switch m {
		case "private":
			return symbols.Private
		case "protected":
			return symbols.Protected
		}
	}
	return symbols.Public
}

func hasModifier(modifiers []string, want string) bool {
	for _, m := range modifiers {
		if m == want {
			return true
		}
	}
	return false
}
