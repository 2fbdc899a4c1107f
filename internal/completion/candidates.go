package completion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// Candidate kinds.
const (
	KindVar   = "var"
	KindFunc  = "func"
	KindClass = "class"
)

// Candidate is one completion entry. Variable, Function and ClassRef are
// the implementations.
type Candidate interface {
	// Label is the text shown in the completion list.
	Label() string
	// Snippet is the text inserted, possibly with ${n:...} placeholders.
	Snippet() string
	// Kind is KindVar, KindFunc or KindClass.
	Kind() string
	// Detail is the type annotation shown next to the label, if any.
	Detail() string
}

// Variable is a property, constant or local variable.
type Variable struct {
	Name     string // without $
	Type     string
	Sigil    bool // label and snippet carry the $, as for static properties and locals
	Constant bool
}

func (v Variable) Label() string {
	if v.Sigil {
		return "$" + v.Name
	}
	return v.Name
}

func (v Variable) Snippet() string { return v.Label() }
func (v Variable) Kind() string    { return KindVar }
func (v Variable) Detail() string  { return v.Type }

// Function is a method or free function.
type Function struct {
	Name    string
	Args    []symbols.Arg
	Returns string
}

func (f Function) Label() string {
	names := make([]string, len(f.Args))
	for i, a := range f.Args {
		names[i] = a.Name
	}
	return f.Name + "(" + strings.Join(names, ", ") + ")"
}

// Snippet has one tab stop per parameter, e.g. find(${1:\$id}).
func (f Function) Snippet() string {
	stops := make([]string, len(f.Args))
	for i, a := range f.Args {
		stops[i] = fmt.Sprintf("${%d:%s}", i+1, strings.ReplaceAll(a.Name, "$", `\$`))
	}
	return f.Name + "(" + strings.Join(stops, ", ") + ")"
}

func (f Function) Kind() string   { return KindFunc }
func (f Function) Detail() string { return f.Returns }

// ClassRef is a class, interface, trait or enum name.
type ClassRef struct {
	Name   string
	Flavor string
}

func (c ClassRef) Label() string   { return c.Name }
func (c ClassRef) Snippet() string { return c.Name }
func (c ClassRef) Kind() string    { return KindClass }
func (c ClassRef) Detail() string  { return c.Flavor }

// Display renders a candidate as "label\tdetail", the layout editors expect
// for completion rows.
func Display(c Candidate) string {
	if d := c.Detail(); d != "" {
		return c.Label() + "\t" + d
	}
	return c.Label()
}

// finalize drops candidates repeating an earlier (label, snippet) pair and
// sorts the rest by label.
func finalize(cands []Candidate) []Candidate {
	type key struct{ label, snippet string }
	seen := make(map[key]bool, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		k := key{c.Label(), c.Snippet()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Label() != out[j].Label() {
			return out[i].Label() < out[j].Label()
		}
		return out[i].Snippet() < out[j].Snippet()
	})
	return out
}
