// Package completion resolves an access chain to the members that can
// follow it.
//
// Resolution is static and best effort: the head of the chain is typed from
// the enclosing class, parameter hints, property types or user patterns,
// then each segment is looked up through the inheritance lineage, taking the
// declared return or property type. Anything that cannot be typed ends the
// walk with no candidates.
package completion

import (
	"strings"

	"github.com/mvp-joe/phpintel/internal/chain"
	"github.com/mvp-joe/phpintel/internal/symbols"
)

// Scope is the buffer being edited: its own declarations, which may be
// newer than the index, and the cursor offset.
type Scope struct {
	Records []symbols.Record
	Offset  int
}

// Request is one completion query.
type Request struct {
	Chain chain.Chain
	Scope Scope
}

// Resolver answers completion requests against a Source.
type Resolver struct {
	src      Source
	patterns []Pattern
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPatterns adds user patterns, tried in order.
func WithPatterns(patterns ...Pattern) Option {
	return func(r *Resolver) {
		r.patterns = append(r.patterns, patterns...)
	}
}

// NewResolver creates a resolver reading from src.
func NewResolver(src Source, opts ...Option) *Resolver {
	r := &Resolver{src: src}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the de-duplicated, sorted candidates for req. It returns
// nil when the chain is empty or cannot be typed.
func (r *Resolver) Resolve(req Request) []Candidate {
	ch := req.Chain
	if ch.IsEmpty() {
		return nil
	}
	v := r.newView(req.Scope)
	if ch.IsGlobal() {
		return finalize(v.globals(ch.Partial))
	}
	class, ok := v.resolveChain(ch)
	if !ok {
		return nil
	}
	return finalize(v.complete(class, ch))
}

// ResolveClass returns the class the whole chain (excluding the partial)
// evaluates to.
func (r *Resolver) ResolveClass(req Request) (string, bool) {
	if req.Chain.IsEmpty() || req.Chain.IsGlobal() {
		return "", false
	}
	return r.newView(req.Scope).resolveChain(req.Chain)
}

// view is one request's picture of the world: the source overlaid with the
// buffer's declarations.
type view struct {
	r     *Resolver
	local map[string][]symbols.Record // class → buffer records
	funcs []symbols.Record            // buffer free functions
	class *symbols.Record             // innermost enclosing class
	fn    *symbols.Record             // innermost enclosing function
}

func (r *Resolver) newView(scope Scope) *view {
	v := &view{r: r, local: make(map[string][]symbols.Record)}
	for i := range scope.Records {
		rec := &scope.Records[i]
		switch {
		case rec.Kind == symbols.KindClass:
			v.local[rec.Name] = append(v.local[rec.Name], *rec)
			if rec.Encloses(scope.Offset) && (v.class == nil || rec.Offset > v.class.Offset) {
				v.class = rec
			}
		case rec.Class != "":
			v.local[rec.Class] = append(v.local[rec.Class], *rec)
		case rec.Kind == symbols.KindFunction:
			v.funcs = append(v.funcs, *rec)
		}
		if rec.Kind == symbols.KindFunction && rec.Encloses(scope.Offset) && (v.fn == nil || rec.Offset > v.fn.Offset) {
			v.fn = rec
		}
	}
	return v
}

func (v *view) isLocal(name string) bool {
	for _, r := range v.local[name] {
		if r.Kind == symbols.KindClass {
			return true
		}
	}
	return false
}

// classRecords returns the class record and members of name, preferring the
// buffer's version over the index.
func (v *view) classRecords(name string) []symbols.Record {
	if v.isLocal(name) {
		return v.local[name]
	}
	return v.r.src.Class(name)
}

func (v *view) classDecl(name string) (symbols.Record, bool) {
	for _, r := range v.classRecords(name) {
		if r.Kind == symbols.KindClass && r.Name == name {
			return r, true
		}
	}
	return symbols.Record{}, false
}

// lineage returns name followed by its ancestors, nearest first.
func (v *view) lineage(name string) []string {
	out := []string{name}
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if !v.isLocal(current) {
			for _, a := range v.r.src.Ancestors(current) {
				if !seen[a] {
					seen[a] = true
					out = append(out, a)
				}
			}
			continue
		}
		for _, r := range v.local[current] {
			if r.Kind != symbols.KindClass {
				continue
			}
			for _, list := range [][]string{r.Extends, r.Traits, r.Implements} {
				for _, p := range list {
					if !seen[p] {
						seen[p] = true
						out = append(out, p)
						queue = append(queue, p)
					}
				}
			}
		}
	}
	return out
}

// members returns the members visible on class, the nearest declaration of
// each (kind, name) winning.
func (v *view) members(class string) []symbols.Record {
	type key struct {
		kind symbols.Kind
		name string
	}
	var out []symbols.Record
	seen := make(map[key]bool)
	for _, c := range v.lineage(class) {
		for _, r := range v.classRecords(c) {
			if r.Kind == symbols.KindClass || r.Class != c {
				continue
			}
			k := key{r.Kind, r.Name}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}

func (v *view) resolveChain(ch chain.Chain) (string, bool) {
	segs := ch.Segments
	class, start := "", 0

	for i := len(segs) - 1; i >= 1 && class == ""; i-- {
		if c, ok := v.matchPattern(ch.Prefix(i)); ok {
			class, start = c, i+1
		}
	}
	if class == "" {
		c, ok := v.resolveHead(segs[0])
		if !ok {
			if c, ok = v.matchPattern(ch.Prefix(0)); !ok {
				return "", false
			}
		}
		class, start = c, 1
	}

	for _, seg := range segs[start:] {
		next, ok := v.memberType(class, seg)
		if !ok {
			return "", false
		}
		class = next
	}
	return class, class != ""
}

func (v *view) matchPattern(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, p := range v.r.patterns {
		if class, ok := p.Resolve(text); ok && class != "" {
			return class, true
		}
	}
	return "", false
}

func (v *view) resolveHead(seg chain.Segment) (string, bool) {
	name := seg.Name
	switch {
	case seg.New:
		return nonEmpty(symbols.ShortName(name))
	case symbols.IsSelfType(name):
		if v.class == nil {
			return "", false
		}
		return v.class.Name, true
	case strings.EqualFold(name, "parent"):
		if v.class == nil {
			return "", false
		}
		decl, ok := v.classDecl(v.class.Name)
		if !ok || len(decl.Extends) == 0 {
			return "", false
		}
		return decl.Extends[0], true
	case strings.HasPrefix(name, "$"):
		return nonEmpty(v.variableType(name))
	case seg.Call:
		return nonEmpty(v.functionType(symbols.ShortName(name)))
	}
	return nonEmpty(symbols.ShortName(name))
}

// variableType types $name from the enclosing function's parameters, then
// from a property of the same name on the enclosing class.
func (v *view) variableType(name string) string {
	if v.fn != nil {
		for _, a := range v.fn.Args {
			if a.Name == name && a.Type != "" {
				return v.receiver(a.Type)
			}
		}
	}
	if v.class != nil {
		prop := strings.TrimPrefix(name, "$")
		for _, m := range v.members(v.class.Name) {
			if m.Kind == symbols.KindProperty && m.Name == prop && m.Returns != "" {
				return v.receiver(m.Returns)
			}
		}
	}
	return ""
}

func (v *view) functionType(name string) string {
	for _, list := range [][]symbols.Record{v.funcs, v.r.src.Functions()} {
		for _, f := range list {
			if strings.EqualFold(f.Name, name) {
				return f.Returns
			}
		}
	}
	return ""
}

// receiver maps self-referencing types to the enclosing class.
func (v *view) receiver(t string) string {
	if symbols.IsSelfType(t) && v.class != nil {
		return v.class.Name
	}
	return t
}

// memberType returns the type of seg accessed on class.
func (v *view) memberType(class string, seg chain.Segment) (string, bool) {
	m, ok := findMember(v.members(class), strings.TrimPrefix(seg.Name, "$"), seg.Call)
	if !ok || m.Returns == "" {
		return "", false
	}
	if symbols.IsSelfType(m.Returns) {
		return class, true
	}
	return m.Returns, true
}

// findMember looks up a method (case-insensitively, as PHP does) or a
// property or constant.
func findMember(members []symbols.Record, name string, call bool) (symbols.Record, bool) {
	for _, m := range members {
		if call {
			if m.Kind == symbols.KindFunction && strings.EqualFold(m.Name, name) {
				return m, true
			}
			continue
		}
		if (m.Kind == symbols.KindProperty || m.Kind == symbols.KindConstant) && m.Name == name {
			return m, true
		}
	}
	return symbols.Record{}, false
}

// complete lists the members of class the chain's operator can reach.
func (v *view) complete(class string, ch chain.Chain) []Candidate {
	internal := v.reaches(class)
	static := ch.Operator == chain.OpStatic
	bare := strings.TrimPrefix(ch.Partial, "$")

	var out []Candidate
	for _, m := range v.members(class) {
		if !v.visible(m, internal) {
			continue
		}
		switch m.Kind {
		case symbols.KindFunction:
			if bare != ch.Partial || !strings.HasPrefix(m.Name, ch.Partial) {
				continue
			}
			out = append(out, Function{Name: m.Name, Args: m.Args, Returns: m.Returns})
		case symbols.KindProperty:
			if m.Static != static || !strings.HasPrefix(m.Name, bare) {
				continue
			}
			out = append(out, Variable{Name: m.Name, Type: m.Returns, Sigil: static})
		case symbols.KindConstant:
			if !static || bare != ch.Partial || !strings.HasPrefix(m.Name, ch.Partial) {
				continue
			}
			out = append(out, Variable{Name: m.Name, Type: m.Returns, Constant: true})
		}
	}
	return out
}

// reaches reports whether code in the enclosing class can see the
// non-public members of class: it must be that class or one of its
// ancestors.
func (v *view) reaches(class string) bool {
	if v.class == nil {
		return false
	}
	for _, c := range v.lineage(v.class.Name) {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// visible reports whether member m can be offered. Private members are
// only visible inside the class that declares them, or that uses the trait
// declaring them.
func (v *view) visible(m symbols.Record, internal bool) bool {
	switch m.Visibility {
	case symbols.Public, "":
		return true
	case symbols.Private:
		if !internal {
			return false
		}
		if strings.EqualFold(m.Class, v.class.Name) {
			return true
		}
		decl, ok := v.classDecl(m.Class)
		return ok && decl.Flavor == symbols.FlavorTrait && v.usesTrait(m.Class)
	default:
		return internal
	}
}

// usesTrait reports whether the enclosing class itself uses trait.
func (v *view) usesTrait(trait string) bool {
	for _, t := range v.class.Traits {
		if strings.EqualFold(t, trait) {
			return true
		}
	}
	return false
}

// globals lists free functions and classes, or the enclosing function's
// parameters when the partial starts with $.
func (v *view) globals(partial string) []Candidate {
	var out []Candidate
	if strings.HasPrefix(partial, "$") {
		if v.fn != nil {
			for _, a := range v.fn.Args {
				if strings.HasPrefix(a.Name, partial) {
					out = append(out, Variable{Name: strings.TrimPrefix(a.Name, "$"), Type: a.Type, Sigil: true})
				}
			}
		}
		if v.class != nil && strings.HasPrefix("$this", partial) {
			out = append(out, Variable{Name: "this", Type: v.class.Name, Sigil: true})
		}
		return out
	}

	for _, list := range [][]symbols.Record{v.funcs, v.r.src.Functions()} {
		for _, f := range list {
			if strings.HasPrefix(f.Name, partial) {
				out = append(out, Function{Name: f.Name, Args: f.Args, Returns: f.Returns})
			}
		}
	}
	for name, records := range v.local {
		for _, r := range records {
			if r.Kind == symbols.KindClass && strings.HasPrefix(name, partial) {
				out = append(out, ClassRef{Name: name, Flavor: r.Flavor})
				break
			}
		}
	}
	for _, name := range v.r.src.ClassNames() {
		if strings.HasPrefix(name, partial) && !v.isLocal(name) {
			out = append(out, ClassRef{Name: name})
		}
	}
	return out
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}
