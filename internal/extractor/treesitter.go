package extractor

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// TreeSitterExtractor extracts declarations from a full PHP syntax tree.
// Error recovery in the grammar keeps declarations outside a broken region
// intact.
type TreeSitterExtractor struct {
	language *sitter.Language
}

// NewTreeSitter creates an extractor backed by the tree-sitter PHP grammar.
func NewTreeSitter() *TreeSitterExtractor {
	return &TreeSitterExtractor{
		language: sitter.NewLanguage(php.LanguagePHP()),
	}
}

// Extract implements Extractor.
func (t *TreeSitterExtractor) Extract(path string, src []byte) (records []symbols.Record) {
	if len(src) == 0 {
		return nil
	}
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(t.language); err != nil {
		return nil
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	w := &treeWalk{path: path, src: src}
	defer func() {
		if recover() != nil {
			records = w.records
			sortRecords(records)
		}
	}()

	walk(tree.RootNode(), w.visit)
	sortRecords(w.records)
	return w.records
}

type treeWalk struct {
	path    string
	src     []byte
	records []symbols.Record
}

func (w *treeWalk) visit(n *sitter.Node) bool {
	switch n.Kind() {
	case "class_declaration":
		w.class(n, symbols.FlavorClass)
		return false
	case "interface_declaration":
		w.class(n, symbols.FlavorInterface)
		return false
	case "trait_declaration":
		w.class(n, symbols.FlavorTrait)
		return false
	case "enum_declaration":
		w.class(n, symbols.FlavorEnum)
		return false
	case "function_definition":
		if rec, ok := w.function(n, ""); ok {
			w.records = append(w.records, rec)
		}
		return false
	}
	return true
}

func (w *treeWalk) class(n *sitter.Node, flavor string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	rec := symbols.Record{
		Kind:       symbols.KindClass,
		Name:       name,
		Flavor:     flavor,
		Visibility: symbols.Public,
		Path:       w.path,
		Offset:     int(n.StartByte()),
		End:        int(n.EndByte()),
	}

	var members []symbols.Record
	eachChild(n, func(c *sitter.Node) {
		switch c.Kind() {
		case "base_clause":
			rec.Extends = append(rec.Extends, w.names(c)...)
		case "class_interface_clause":
			rec.Implements = append(rec.Implements, w.names(c)...)
		}
	})

	doc := w.docFor(n)
	for _, group := range [][]symbols.Record{doc.Properties, doc.Methods} {
		for _, m := range group {
			m.Class = name
			m.Path = w.path
			m.Offset = rec.Offset
			members = append(members, m)
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		eachChild(body, func(c *sitter.Node) {
			switch c.Kind() {
			case "method_declaration":
				if m, ok := w.function(c, name); ok {
					members = append(members, m)
					members = append(members, w.promoted(c, name)...)
				}
			case "property_declaration":
				members = append(members, w.properties(c, name)...)
			case "const_declaration":
				members = append(members, w.constants(c, name)...)
			case "enum_case":
				if cn := c.ChildByFieldName("name"); cn != nil {
					members = append(members, symbols.Record{
						Kind:       symbols.KindConstant,
						Name:       w.text(cn),
						Class:      name,
						Returns:    name,
						Visibility: symbols.Public,
						Static:     true,
						Path:       w.path,
						Offset:     int(c.StartByte()),
					})
				}
			case "use_declaration":
				rec.Traits = append(rec.Traits, w.names(c)...)
			}
		})
	}

	w.records = append(w.records, rec)
	w.records = append(w.records, members...)
}

func (w *treeWalk) function(n *sitter.Node, class string) (symbols.Record, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return symbols.Record{}, false
	}
	doc := w.docFor(n)
	mods := w.modifiers(n)

	var hint string
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		hint = w.text(rt)
	}

	var args []symbols.Arg
	if params := n.ChildByFieldName("parameters"); params != nil {
		eachChild(params, func(p *sitter.Node) {
			switch p.Kind() {
			case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
			default:
				return
			}
			pn := p.ChildByFieldName("name")
			if pn == nil {
				return
			}
			argName := w.variableName(pn)
			var typ string
			if tn := p.ChildByFieldName("type"); tn != nil {
				typ = w.text(tn)
			} else {
				typ = doc.Params[argName]
			}
			args = append(args, symbols.Arg{Name: argName, Type: symbols.NormalizeType(typ)})
		})
	}

	return symbols.Record{
		Kind:       symbols.KindFunction,
		Name:       w.text(nameNode),
		Class:      class,
		Args:       args,
		Returns:    returnType(doc, hint),
		Visibility: visibilityOf(mods),
		Static:     hasModifier(mods, "static"),
		Path:       w.path,
		Offset:     int(n.StartByte()),
		End:        int(n.EndByte()),
	}, true
}

// promoted returns the properties declared through constructor parameters.
func (w *treeWalk) promoted(method *sitter.Node, class string) []symbols.Record {
	params := method.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var out []symbols.Record
	eachChild(params, func(p *sitter.Node) {
		if p.Kind() != "property_promotion_parameter" {
			return
		}
		pn := p.ChildByFieldName("name")
		if pn == nil {
			return
		}
		var typ string
		if tn := p.ChildByFieldName("type"); tn != nil {
			typ = w.text(tn)
		}
		out = append(out, symbols.Record{
			Kind:       symbols.KindProperty,
			Name:       strings.TrimPrefix(w.variableName(pn), "$"),
			Class:      class,
			Returns:    symbols.NormalizeType(typ),
			Visibility: visibilityOf(w.modifiers(p)),
			Path:       w.path,
			Offset:     int(p.StartByte()),
		})
	})
	return out
}

func (w *treeWalk) properties(n *sitter.Node, class string) []symbols.Record {
	mods := w.modifiers(n)
	typ := w.docFor(n).Var
	if typ == "" {
		if tn := n.ChildByFieldName("type"); tn != nil {
			typ = w.text(tn)
		}
	}
	var out []symbols.Record
	eachChild(n, func(c *sitter.Node) {
		if c.Kind() != "property_element" {
			return
		}
		vn := c.ChildByFieldName("name")
		if vn == nil {
			vn = firstChildOfKind(c, "variable_name")
		}
		if vn == nil {
			return
		}
		out = append(out, symbols.Record{
			Kind:       symbols.KindProperty,
			Name:       strings.TrimPrefix(w.variableName(vn), "$"),
			Class:      class,
			Returns:    symbols.NormalizeType(typ),
			Visibility: visibilityOf(mods),
			Static:     hasModifier(mods, "static"),
			Path:       w.path,
			Offset:     int(c.StartByte()),
		})
	})
	return out
}

func (w *treeWalk) constants(n *sitter.Node, class string) []symbols.Record {
	mods := w.modifiers(n)
	var out []symbols.Record
	eachChild(n, func(c *sitter.Node) {
		if c.Kind() != "const_element" {
			return
		}
		cn := firstChildOfKind(c, "name")
		if cn == nil {
			return
		}
		out = append(out, symbols.Record{
			Kind:       symbols.KindConstant,
			Name:       w.text(cn),
			Class:      class,
			Visibility: visibilityOf(mods),
			Static:     true,
			Path:       w.path,
			Offset:     int(c.StartByte()),
		})
	})
	return out
}

// names collects the class names listed in an extends, implements or
// trait use clause.
func (w *treeWalk) names(n *sitter.Node) []string {
	var out []string
	eachChild(n, func(c *sitter.Node) {
		switch c.Kind() {
		case "name", "qualified_name":
			out = append(out, symbols.ShortName(w.text(c)))
		}
	})
	return out
}

func (w *treeWalk) modifiers(n *sitter.Node) []string {
	var mods []string
	eachChild(n, func(c *sitter.Node) {
		if strings.HasSuffix(c.Kind(), "_modifier") {
			mods = append(mods, strings.ToLower(w.text(c)))
		}
	})
	return mods
}

// docFor returns the doc comment directly above n.
func (w *treeWalk) docFor(n *sitter.Node) Doc {
	prev := n.PrevSibling()
	if prev == nil || prev.Kind() != "comment" {
		return Doc{}
	}
	text := w.text(prev)
	if !strings.HasPrefix(text, "/**") || strings.HasPrefix(text, "/**/") {
		return Doc{}
	}
	if strings.TrimSpace(string(w.src[prev.EndByte():n.StartByte()])) != "" {
		return Doc{}
	}
	return ParseDoc(text)
}

func (w *treeWalk) variableName(n *sitter.Node) string {
	if n.Kind() == "by_ref" {
		if vn := firstChildOfKind(n, "variable_name"); vn != nil {
			n = vn
		}
	}
	return strings.TrimPrefix(w.text(n), "&")
}

func (w *treeWalk) text(n *sitter.Node) string {
	return string(w.src[n.StartByte():n.EndByte()])
}

func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		walk(n.Child(i), visit)
	}
}

func eachChild(n *sitter.Node, fn func(*sitter.Node)) {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			fn(c)
		}
	}
}

func firstChildOfKind(n *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}
