// Package chain reduces the text around a cursor to the access chain being
// typed, e.g. "$this->repo->find()->" or "Foo::bar".
package chain

import (
	"regexp"
	"strings"

	"github.com/mvp-joe/phpintel/internal/source"
)

// GlobalScope is the sentinel segment name for completions outside any
// member or static access.
const GlobalScope = "__global__"

// maxSegments bounds the backward walk on pathological input.
const maxSegments = 64

// Operator is an access operator.
type Operator int

const (
	OpNone   Operator = iota
	OpMember          // ->
	OpStatic          // ::
)

func (o Operator) String() string {
	switch o {
	case OpMember:
		return "->"
	case OpStatic:
		return "::"
	}
	return ""
}

// Segment is one operand of the chain.
type Segment struct {
	Name string
	Call bool     // operand was invoked: foo()
	New  bool     // operand is an instantiation: (new Foo())
	Op   Operator // operator joining this segment to the next one

	// Start and End are offsets into Chain.Raw covering the operand,
	// including any call arguments.
	Start int
	End   int
}

// Chain is a normalized description of the expression ending at the cursor.
type Chain struct {
	Segments []Segment
	Partial  string   // identifier being typed
	Operator Operator // operator immediately before Partial
	Raw      string   // source text from the first segment up to the cursor
}

// Global returns the global-scope chain for a partial token.
func Global(partial string) Chain {
	return Chain{
		Segments: []Segment{{Name: GlobalScope}},
		Partial:  partial,
		Operator: OpNone,
	}
}

// IsEmpty reports whether the cursor was somewhere completion does not apply.
func (c Chain) IsEmpty() bool {
	return len(c.Segments) == 0
}

// IsGlobal reports whether the chain is the global-scope sentinel.
func (c Chain) IsGlobal() bool {
	return len(c.Segments) == 1 && c.Segments[0].Name == GlobalScope
}

// Tokens returns the segment names followed by the partial token. The
// global chain collapses to the single sentinel entry.
func (c Chain) Tokens() []string {
	if c.IsEmpty() {
		return nil
	}
	if c.IsGlobal() {
		return []string{GlobalScope}
	}
	tokens := make([]string, 0, len(c.Segments)+1)
	for _, s := range c.Segments {
		tokens = append(tokens, s.Name)
	}
	return append(tokens, c.Partial)
}

// Len is the number of tokens in the chain.
func (c Chain) Len() int {
	return len(c.Tokens())
}

// Prefix returns the raw source text up to and including segment i.
func (c Chain) Prefix(i int) string {
	if i < 0 || i >= len(c.Segments) || c.Segments[i].End > len(c.Raw) {
		return ""
	}
	return c.Raw[:c.Segments[i].End]
}

var newExprRe = regexp.MustCompile(`^\s*new\s+(\\?[A-Za-z_\x80-\xff][\w\\\x80-\xff]*)`)

// Parse returns the access chain ending at offset. It never fails: a cursor
// inside a string or comment yields an empty chain and anything it cannot
// make sense of degrades to the global chain.
func Parse(text string, offset int) Chain {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	if !source.InCode(text, offset) {
		return Chain{}
	}

	// walk a copy with strings and comments blanked, so "$x // note\n->"
	// still reaches $x
	raw := text
	masked, _ := source.Mask(text)
	text = string(masked)

	start := scanIdentBack(text, offset, true)
	partial := text[start:offset]

	op, opStart := operatorBefore(text, skipSpaceBack(text, start))
	if op == OpNone {
		return Global(partial)
	}

	var segs []Segment
	pending := op
	pos := skipSpaceBack(text, opStart)

	for len(segs) < maxSegments {
		seg, segStart, ok := operandBefore(text, pos)
		if !ok {
			return Global(partial)
		}
		seg.Op = pending
		seg.Start, seg.End = segStart, pos
		segs = append(segs, seg)

		prevOp, prevStart := operatorBefore(text, skipSpaceBack(text, segStart))
		if prevOp == OpNone || seg.New {
			break
		}
		pending = prevOp
		pos = skipSpaceBack(text, prevStart)
	}

	// collected back to front
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	base := segs[0].Start
	for i := range segs {
		segs[i].Start -= base
		segs[i].End -= base
	}

	return Chain{
		Segments: segs,
		Partial:  partial,
		Operator: op,
		Raw:      raw[base:offset],
	}
}

// WordAt expands offset to the identifier surrounding it. A leading "$" or
// namespace separators are not part of the word.
func WordAt(text string, offset int) string {
	if offset < 0 || offset > len(text) {
		return ""
	}
	start, end := offset, offset
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}
	for end < len(text) && isIdentByte(text[end]) {
		end++
	}
	return text[start:end]
}

// operandBefore parses the operand that ends at pos. It returns the segment,
// the offset where the operand starts and whether anything usable was found.
func operandBefore(text string, pos int) (Segment, int, bool) {
	var seg Segment

	// array access: $items[0]->
	for pos > 0 && text[pos-1] == ']' {
		open := matchBack(text, pos-1, '[', ']')
		if open < 0 {
			return seg, 0, false
		}
		pos = skipSpaceBack(text, open)
	}

	if pos > 0 && text[pos-1] == ')' {
		open := matchBack(text, pos-1, '(', ')')
		if open < 0 {
			return seg, 0, false
		}
		seg.Call = true
		nameEnd := skipSpaceBack(text, open)
		nameStart := scanOperandBack(text, nameEnd)
		if nameStart == nameEnd || isKeyword(text[nameStart:nameEnd]) {
			// parenthesised expression: (new Foo(...))
			m := newExprRe.FindStringSubmatch(text[open+1 : pos-1])
			if m == nil {
				return seg, 0, false
			}
			seg.Name = strings.TrimPrefix(m[1], "\\")
			seg.Call = false
			seg.New = true
			return seg, open, true
		}
		seg.Name = text[nameStart:nameEnd]
		if precededByNew(text, nameStart) {
			seg.Call = false
			seg.New = true
		}
		return seg, nameStart, true
	}

	nameStart := scanOperandBack(text, pos)
	if nameStart == pos {
		return seg, 0, false
	}
	seg.Name = text[nameStart:pos]
	return seg, nameStart, true
}

// operatorBefore reports the access operator ending at pos, if any, and
// where it starts.
func operatorBefore(text string, pos int) (Operator, int) {
	if pos < 2 {
		return OpNone, pos
	}
	switch text[pos-2 : pos] {
	case "->":
		if pos >= 3 && text[pos-3] == '?' {
			return OpMember, pos - 3
		}
		return OpMember, pos - 2
	case "::":
		return OpStatic, pos - 2
	}
	return OpNone, pos
}

// isKeyword reports whether a word directly before "(" is a language
// construct rather than a callee, as in "return(new Foo)->".
func isKeyword(word string) bool {
	switch strings.ToLower(word) {
	case "return", "echo", "print", "yield", "clone", "and", "or", "xor", "throw":
		return true
	}
	return false
}

func precededByNew(text string, pos int) bool {
	p := skipSpaceBack(text, pos)
	if p == pos {
		return false
	}
	s := scanIdentBack(text, p, false)
	return strings.EqualFold(text[s:p], "new")
}

// matchBack finds the opening bracket matching the closing one at idx,
// skipping quoted strings. It returns -1 if unbalanced.
func matchBack(text string, idx int, open, close byte) int {
	depth := 0
	for i := idx; i >= 0; i-- {
		switch c := text[i]; c {
		case close:
			depth++
		case open:
			depth--
			if depth == 0 {
				return i
			}
		case '\'', '"':
			j := i - 1
			for j >= 0 && !(text[j] == c && (j == 0 || text[j-1] != '\\')) {
				j--
			}
			if j < 0 {
				return -1
			}
			i = j
		case ';', '{', '}':
			// statement boundary before balance was reached
			return -1
		}
	}
	return -1
}

func skipSpaceBack(text string, pos int) int {
	for pos > 0 {
		switch text[pos-1] {
		case ' ', '\t', '\n', '\r':
			pos--
		default:
			return pos
		}
	}
	return pos
}

// scanIdentBack returns the start of the identifier ending at pos. With
// allowDollar a single leading "$" is included.
func scanIdentBack(text string, pos int, allowDollar bool) int {
	for pos > 0 && isIdentByte(text[pos-1]) {
		pos--
	}
	if allowDollar && pos > 0 && text[pos-1] == '$' {
		pos--
	}
	return pos
}

// scanOperandBack is scanIdentBack that also accepts namespace separators,
// so "\App\Foo::" yields "\App\Foo".
func scanOperandBack(text string, pos int) int {
	for pos > 0 && (isIdentByte(text[pos-1]) || text[pos-1] == '\\') {
		pos--
	}
	if pos > 0 && text[pos-1] == '$' {
		pos--
	}
	return pos
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
