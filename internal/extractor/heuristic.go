package extractor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mvp-joe/phpintel/internal/source"
	"github.com/mvp-joe/phpintel/internal/symbols"
)

const identPattern = `[A-Za-z_\p{L}][\w\p{L}]*`

var (
	classRe      = regexp.MustCompile(`(?i)\b((?:(?:abstract|final|readonly)\s+)*)(class|interface|trait|enum)\s+(` + identPattern + `)([^{};]*)\{`)
	functionRe   = regexp.MustCompile(`(?i)((?:\b(?:public|protected|private|static|abstract|final)\s+)*)\bfunction\s*&?\s*(` + identPattern + `)\s*\(`)
	propertyRe   = regexp.MustCompile(`(?i)((?:\b(?:public|protected|private|static|var|readonly)\s+)+)(\??[\\\w]+(?:\s*[|&]\s*\??[\\\w]+)*\s+)?&?\$(` + identPattern + `)`)
	constRe      = regexp.MustCompile(`(?i)((?:\b(?:public|protected|private|final)\s+)*)\bconst\s+(?:[\\\w?|]+\s+)?(` + identPattern + `)\s*=`)
	enumCaseRe   = regexp.MustCompile(`(?i)\bcase\s+(` + identPattern + `)\s*[;=]`)
	traitUseRe   = regexp.MustCompile(`(?i)\buse\s+(\\?[\w\\]+(?:\s*,\s*\\?[\w\\]+)*)\s*[;{]`)
	returnHintRe = regexp.MustCompile(`^\s*:\s*(\??[\\\w]+(?:\s*[|&]\s*\??[\\\w]+)*)`)
	paramRe      = regexp.MustCompile(`^(?:([?\\\w|&()]+)\s+)?&?\s*(?:\.\.\.\s*)?(\$` + identPattern + `)`)
	leadNameRe   = regexp.MustCompile(`^&?\$(` + identPattern + `)`)
	leadConstRe  = regexp.MustCompile(`^(` + identPattern + `)\s*=`)
	attributeRe  = regexp.MustCompile(`#\[[^\]]*\]`)
	paramModRe   = regexp.MustCompile(`(?i)^(?:(?:public|protected|private|readonly)\s+)+`)
)

var reservedClassNames = map[string]bool{
	"extends":    true,
	"implements": true,
}

// HeuristicExtractor matches declaration shapes over source text in which
// strings and comments have been blanked out. It does not build a syntax
// tree; brace depth and doc comment adjacency carry all structure.
type HeuristicExtractor struct{}

// NewHeuristic creates the default extractor.
func NewHeuristic() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

type classSpan struct {
	rec    int // index of the class record
	name   string
	flavor string
	body   int   // first byte inside the braces
	end    int   // one past the closing brace, or EOF
	depth  int32 // brace depth of the body
}

type funcSpan struct {
	open, close int // parameter list parentheses
	body        int // start of the body (the '{'), or -1 for abstract
	end         int
}

type fileScan struct {
	path    string
	text    string
	masked  string
	docs    []source.Span
	depth   []int32
	records []symbols.Record
	classes []classSpan
	funcs   []funcSpan
}

// Extract implements Extractor.
func (h *HeuristicExtractor) Extract(path string, src []byte) (records []symbols.Record) {
	text := string(src)
	masked, docs := source.Mask(text)
	f := &fileScan{
		path:   path,
		text:   text,
		masked: string(masked),
		docs:   docs,
		depth:  braceDepths(masked),
	}

	defer func() {
		if recover() != nil {
			records = f.records
			sortRecords(records)
		}
	}()

	f.scanClasses()
	f.scanFunctions()
	f.scanProperties()
	f.scanConstants()
	f.scanTraitUses()

	sortRecords(f.records)
	return f.records
}

func (f *fileScan) scanClasses() {
	for _, loc := range classRe.FindAllStringSubmatchIndex(f.masked, -1) {
		start := loc[0]
		if isMemberAccess(f.masked, loc[4]) {
			continue
		}
		name := f.masked[loc[6]:loc[7]]
		if reservedClassNames[strings.ToLower(name)] {
			continue
		}

		open := loc[1] - 1
		end := len(f.masked)
		if closing := matchForward(f.masked, open, '{', '}'); closing >= 0 {
			end = closing + 1
		}
		flavor := strings.ToLower(f.masked[loc[4]:loc[5]])
		extends, implements := parseHeader(f.masked[loc[8]:loc[9]])

		f.records = append(f.records, symbols.Record{
			Kind:       symbols.KindClass,
			Name:       name,
			Flavor:     flavor,
			Extends:    extends,
			Implements: implements,
			Visibility: symbols.Public,
			Path:       f.path,
			Offset:     start,
			End:        end,
		})
		f.classes = append(f.classes, classSpan{
			rec:    len(f.records) - 1,
			name:   name,
			flavor: flavor,
			body:   open + 1,
			end:    end,
			depth:  f.depth[open] + 1,
		})

		doc := f.docFor(start)
		for _, members := range [][]symbols.Record{doc.Properties, doc.Methods} {
			for _, r := range members {
				r.Class = name
				r.Path = f.path
				r.Offset = start
				f.records = append(f.records, r)
			}
		}
	}
}

func (f *fileScan) scanFunctions() {
	for _, loc := range functionRe.FindAllStringSubmatchIndex(f.masked, -1) {
		start := loc[0]
		open := loc[1] - 1
		closing := matchForward(f.masked, open, '(', ')')
		if closing < 0 || f.insideFunction(start) {
			continue
		}

		var className string
		if cls := f.classAt(start); cls != nil {
			if f.depth[start] != cls.depth {
				continue
			}
			className = cls.name
		}

		after := closing + 1
		var hint string
		if hm := returnHintRe.FindStringSubmatchIndex(f.masked[after:]); hm != nil {
			hint = f.masked[after+hm[2] : after+hm[3]]
			after += hm[1]
		}
		body, end := bodyAfter(f.masked, after)

		mods := modifierWords(f.masked[loc[2]:loc[3]])
		doc := f.docFor(start)
		f.records = append(f.records, symbols.Record{
			Kind:       symbols.KindFunction,
			Name:       f.masked[loc[4]:loc[5]],
			Class:      className,
			Args:       parseParams(f.masked[open+1:closing], doc),
			Returns:    returnType(doc, hint),
			Visibility: visibilityOf(mods),
			Static:     hasModifier(mods, "static"),
			Path:       f.path,
			Offset:     start,
			End:        end,
		})
		f.funcs = append(f.funcs, funcSpan{open: open, close: closing, body: body, end: end})
	}
}

func (f *fileScan) scanProperties() {
	for _, loc := range propertyRe.FindAllStringSubmatchIndex(f.masked, -1) {
		start := loc[0]
		cls := f.memberContext(start)
		if cls == nil {
			continue
		}
		mods := modifierWords(f.masked[loc[2]:loc[3]])
		var hint string
		if loc[4] >= 0 {
			hint = strings.TrimSpace(f.masked[loc[4]:loc[5]])
		}
		typ := f.docFor(start).Var
		if typ == "" {
			typ = hint
		}
		prop := symbols.Record{
			Kind:       symbols.KindProperty,
			Name:       f.masked[loc[6]:loc[7]],
			Class:      cls.name,
			Returns:    symbols.NormalizeType(typ),
			Visibility: visibilityOf(mods),
			Static:     hasModifier(mods, "static"),
			Path:       f.path,
			Offset:     start,
		}
		f.records = append(f.records, prop)

		// promoted constructor parameters are one per match
		if f.inParams(start) {
			continue
		}
		for _, p := range f.statementTail(loc[1]) {
			if m := leadNameRe.FindStringSubmatch(p.text); m != nil {
				extra := prop
				extra.Name = m[1]
				extra.Offset = p.off
				f.records = append(f.records, extra)
			}
		}
	}
}

func (f *fileScan) scanConstants() {
	for _, loc := range constRe.FindAllStringSubmatchIndex(f.masked, -1) {
		start := loc[0]
		cls := f.memberContext(start)
		if cls == nil {
			continue
		}
		mods := modifierWords(f.masked[loc[2]:loc[3]])
		c := symbols.Record{
			Kind:       symbols.KindConstant,
			Name:       f.masked[loc[4]:loc[5]],
			Class:      cls.name,
			Visibility: visibilityOf(mods),
			Static:     true,
			Path:       f.path,
			Offset:     start,
		}
		f.records = append(f.records, c)
		for _, p := range f.statementTail(loc[1]) {
			if m := leadConstRe.FindStringSubmatch(p.text); m != nil {
				extra := c
				extra.Name = m[1]
				extra.Offset = p.off
				f.records = append(f.records, extra)
			}
		}
	}

	for _, loc := range enumCaseRe.FindAllStringSubmatchIndex(f.masked, -1) {
		cls := f.memberContext(loc[0])
		if cls == nil || cls.flavor != symbols.FlavorEnum {
			continue
		}
		f.records = append(f.records, symbols.Record{
			Kind:       symbols.KindConstant,
			Name:       f.masked[loc[2]:loc[3]],
			Class:      cls.name,
			Returns:    cls.name,
			Visibility: symbols.Public,
			Static:     true,
			Path:       f.path,
			Offset:     loc[0],
		})
	}
}

func (f *fileScan) scanTraitUses() {
	for _, loc := range traitUseRe.FindAllStringSubmatchIndex(f.masked, -1) {
		cls := f.memberContext(loc[0])
		if cls == nil {
			continue
		}
		rec := &f.records[cls.rec]
		for _, name := range strings.Split(f.masked[loc[2]:loc[3]], ",") {
			if name = symbols.ShortName(name); name != "" {
				rec.Traits = append(rec.Traits, name)
			}
		}
	}
}

// classAt returns the innermost class whose body contains pos.
func (f *fileScan) classAt(pos int) *classSpan {
	var best *classSpan
	for i := range f.classes {
		c := &f.classes[i]
		if pos >= c.body && pos < c.end && (best == nil || c.body > best.body) {
			best = c
		}
	}
	return best
}

// memberContext returns the class when pos sits directly in its body, not
// inside a method body or a nested block.
func (f *fileScan) memberContext(pos int) *classSpan {
	cls := f.classAt(pos)
	if cls == nil || f.depth[pos] != cls.depth {
		return nil
	}
	return cls
}

func (f *fileScan) insideFunction(pos int) bool {
	for _, fn := range f.funcs {
		if fn.body >= 0 && pos > fn.body && pos < fn.end {
			return true
		}
	}
	return false
}

func (f *fileScan) inParams(pos int) bool {
	for _, fn := range f.funcs {
		if pos > fn.open && pos < fn.close {
			return true
		}
	}
	return false
}

// docFor returns the doc comment immediately preceding pos. Only whitespace,
// plain comments and attributes may sit between the two.
func (f *fileScan) docFor(pos int) Doc {
	i := sort.Search(len(f.docs), func(i int) bool { return f.docs[i].End > pos }) - 1
	if i < 0 {
		return Doc{}
	}
	d := f.docs[i]
	gap := attributeRe.ReplaceAllString(f.masked[d.End:pos], "")
	if strings.TrimSpace(gap) != "" {
		return Doc{}
	}
	return ParseDoc(f.text[d.Start:d.End])
}

type piece struct {
	text string
	off  int
}

// statementTail returns the comma separated pieces after the first one in
// the statement starting before pos, e.g. "$b" and "$c" in "public $a, $b, $c;".
func (f *fileScan) statementTail(pos int) []piece {
	end := strings.IndexByte(f.masked[pos:], ';')
	if end < 0 {
		return nil
	}
	parts := splitTopLevel(f.masked[pos:pos+end], pos)
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}

// splitTopLevel splits s on commas outside brackets. Offsets are shifted by
// base and point at the first non-space byte of each piece.
func splitTopLevel(s string, base int) []piece {
	var parts []piece
	depth, from := 0, 0
	flush := func(to int) {
		raw := s[from:to]
		trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
		parts = append(parts, piece{
			text: strings.TrimSpace(trimmed),
			off:  base + from + len(raw) - len(trimmed),
		})
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				from = i + 1
			}
		}
	}
	flush(len(s))
	return parts
}

func parseParams(list string, doc Doc) []symbols.Arg {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var args []symbols.Arg
	for _, p := range splitTopLevel(list, 0) {
		text := strings.TrimSpace(attributeRe.ReplaceAllString(p.text, ""))
		text = paramModRe.ReplaceAllString(text, "")
		m := paramRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		typ := m[1]
		if typ == "" {
			typ = doc.Params[m[2]]
		}
		args = append(args, symbols.Arg{Name: m[2], Type: symbols.NormalizeType(typ)})
	}
	return args
}

// parseHeader reads the extends and implements lists of a class header. A
// backed enum's ": type" is skipped.
func parseHeader(header string) (extends, implements []string) {
	mode := ""
	tokens := strings.FieldsFunc(header, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	for _, tok := range tokens {
		switch strings.ToLower(tok) {
		case "extends", "implements":
			mode = strings.ToLower(tok)
			continue
		}
		if strings.HasPrefix(tok, ":") {
			mode = "type"
			if tok = strings.TrimPrefix(tok, ":"); tok == "" {
				continue
			}
		}
		switch mode {
		case "extends":
			extends = append(extends, symbols.ShortName(tok))
		case "implements":
			implements = append(implements, symbols.ShortName(tok))
		case "type":
			mode = ""
		}
	}
	return extends, implements
}

func modifierWords(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// isMemberAccess reports whether the keyword at pos is used as a member name,
// as in Foo::class or $x->trait.
func isMemberAccess(s string, pos int) bool {
	p := pos
	for p > 0 && (s[p-1] == ' ' || s[p-1] == '\t' || s[p-1] == '\n' || s[p-1] == '\r') {
		p--
	}
	if p < 2 {
		return false
	}
	prev := s[p-2 : p]
	return prev == "::" || prev == "->"
}

func braceDepths(masked []byte) []int32 {
	depth := make([]int32, len(masked)+1)
	var cur int32
	for i, c := range masked {
		depth[i] = cur
		switch c {
		case '{':
			cur++
		case '}':
			if cur > 0 {
				cur--
			}
		}
	}
	depth[len(masked)] = cur
	return depth
}

func matchForward(s string, open int, o, c byte) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case o:
			depth++
		case c:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// bodyAfter locates a function body starting at pos. It returns the offset
// of the opening brace (or -1 for a declaration without body) and the end of
// the declaration.
func bodyAfter(s string, pos int) (int, int) {
	for pos < len(s) && unicode.IsSpace(rune(s[pos])) {
		pos++
	}
	if pos >= len(s) {
		return -1, len(s)
	}
	switch s[pos] {
	case '{':
		if closing := matchForward(s, pos, '{', '}'); closing >= 0 {
			return pos, closing + 1
		}
		return pos, len(s)
	case ';':
		return -1, pos + 1
	}
	return -1, pos
}
