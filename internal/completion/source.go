package completion

import (
	"sort"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// Source is the read side of a symbol index. *index.Index implements it.
type Source interface {
	Class(name string) []symbols.Record
	Ancestors(name string) []string
	Functions() []symbols.Record
	ClassNames() []string
	LookupLocations(className string) []string
}

// Merge combines the indexes of several project roots into one Source.
// Roots are consulted in order.
func Merge(sources ...Source) Source {
	if len(sources) == 1 {
		return sources[0]
	}
	return multi(sources)
}

type multi []Source

func (m multi) Class(name string) []symbols.Record {
	var out []symbols.Record
	for _, s := range m {
		out = append(out, s.Class(name)...)
	}
	return out
}

func (m multi) Ancestors(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range m {
		for _, a := range s.Ancestors(name) {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

func (m multi) Functions() []symbols.Record {
	var out []symbols.Record
	for _, s := range m {
		out = append(out, s.Functions()...)
	}
	return out
}

func (m multi) ClassNames() []string {
	return m.union(func(s Source) []string { return s.ClassNames() })
}

func (m multi) LookupLocations(className string) []string {
	return m.union(func(s Source) []string { return s.LookupLocations(className) })
}

func (m multi) union(get func(Source) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range m {
		for _, v := range get(s) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
