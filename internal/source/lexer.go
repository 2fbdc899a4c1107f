// Package source locates the non-code regions of PHP text (inline HTML,
// string literals, comments) without tokenizing it fully.
package source

import (
	"bytes"
	"strings"
)

// SpanKind identifies a non-code region.
type SpanKind int

const (
	HTML SpanKind = iota
	String
	LineComment
	BlockComment
	DocComment
)

// Span is a half-open byte range [Start, End) of non-code text.
type Span struct {
	Start  int
	End    int
	Kind   SpanKind
	Closed bool
}

// Contains reports whether a cursor placed at offset sits inside the span.
func (s Span) Contains(offset int) bool {
	switch s.Kind {
	case HTML:
		return s.Start < s.End && offset >= s.Start && offset <= s.End
	case LineComment:
		return offset > s.Start && offset <= s.End
	default:
		if offset <= s.Start {
			return false
		}
		return offset < s.End || (!s.Closed && offset == s.End)
	}
}

// Spans returns the non-code regions of text in order. Text without any
// "<?" open tag is treated as pure PHP.
func Spans(text string) []Span {
	var spans []Span
	n := len(text)
	i := 0

	if strings.Contains(text, "<?") {
		i = scanHTML(text, 0, &spans)
	}

	for i < n {
		c := text[i]
		switch {
		case c == '?' && i+1 < n && text[i+1] == '>':
			i = scanHTML(text, i+2, &spans)
		case c == '\'' || c == '"' || c == '`':
			i = scanQuoted(text, i, c, &spans)
		case c == '#' && !(i+1 < n && text[i+1] == '['):
			i = scanLine(text, i, &spans)
		case c == '/' && i+1 < n && text[i+1] == '/':
			i = scanLine(text, i, &spans)
		case c == '/' && i+1 < n && text[i+1] == '*':
			i = scanBlock(text, i, &spans)
		case c == '<' && strings.HasPrefix(text[i:], "<<<"):
			i = scanHeredoc(text, i, &spans)
		default:
			i++
		}
	}
	return spans
}

// InCode reports whether a cursor at offset is in PHP code rather than in a
// string, comment or inline HTML.
func InCode(text string, offset int) bool {
	for _, s := range Spans(text) {
		if s.Start > offset {
			break
		}
		if s.Contains(offset) {
			return false
		}
	}
	return true
}

// Mask returns a copy of text with every non-code byte replaced by a space.
// Newlines are preserved so offsets and line numbers stay valid. Doc comment
// spans are returned separately.
func Mask(text string) ([]byte, []Span) {
	masked := []byte(text)
	var docs []Span
	for _, s := range Spans(text) {
		if s.Kind == DocComment {
			docs = append(docs, s)
		}
		for j := s.Start; j < s.End && j < len(masked); j++ {
			if masked[j] != '\n' {
				masked[j] = ' '
			}
		}
	}
	return masked, docs
}

func scanHTML(text string, start int, spans *[]Span) int {
	idx := strings.Index(text[start:], "<?")
	end := len(text)
	closed := false
	if idx >= 0 {
		end = start + idx
		closed = true
	}
	if end > start {
		*spans = append(*spans, Span{Start: start, End: end, Kind: HTML, Closed: closed})
	}
	if !closed {
		return end
	}
	// skip the open tag itself
	i := end + 2
	if strings.HasPrefix(text[i:], "php") {
		i += 3
	} else if strings.HasPrefix(text[i:], "=") {
		i++
	}
	return i
}

func scanQuoted(text string, start int, quote byte, spans *[]Span) int {
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
			continue
		case quote:
			*spans = append(*spans, Span{Start: start, End: i + 1, Kind: String, Closed: true})
			return i + 1
		}
		i++
	}
	*spans = append(*spans, Span{Start: start, End: len(text), Kind: String})
	return len(text)
}

func scanLine(text string, start int, spans *[]Span) int {
	i := start
	for i < len(text) && text[i] != '\n' {
		// a close tag ends a one-line comment
		if text[i] == '?' && i+1 < len(text) && text[i+1] == '>' {
			break
		}
		i++
	}
	*spans = append(*spans, Span{Start: start, End: i, Kind: LineComment, Closed: i < len(text)})
	return i
}

func scanBlock(text string, start int, spans *[]Span) int {
	kind := BlockComment
	if strings.HasPrefix(text[start:], "/**") && !strings.HasPrefix(text[start:], "/**/") {
		kind = DocComment
	}
	idx := strings.Index(text[start+2:], "*/")
	if idx < 0 {
		*spans = append(*spans, Span{Start: start, End: len(text), Kind: kind})
		return len(text)
	}
	end := start + 2 + idx + 2
	*spans = append(*spans, Span{Start: start, End: end, Kind: kind, Closed: true})
	return end
}

// scanHeredoc handles <<<ID, <<<"ID" and <<<'ID'. The closing identifier may
// be indented (PHP 7.3+).
func scanHeredoc(text string, start int, spans *[]Span) int {
	i := start + 3
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	if i < len(text) && (text[i] == '\'' || text[i] == '"') {
		i++
	}
	idStart := i
	for i < len(text) && isIdentByte(text[i]) {
		i++
	}
	id := text[idStart:i]
	if id == "" {
		return start + 3
	}
	nl := strings.IndexByte(text[i:], '\n')
	if nl < 0 {
		*spans = append(*spans, Span{Start: start, End: len(text), Kind: String})
		return len(text)
	}
	pos := i + nl + 1
	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		line := text[pos:]
		if lineEnd >= 0 {
			line = text[pos : pos+lineEnd]
		}
		trimmed := bytes.TrimLeft([]byte(line), " \t")
		if bytes.HasPrefix(trimmed, []byte(id)) {
			rest := trimmed[len(id):]
			if len(rest) == 0 || !isIdentByte(rest[0]) {
				end := pos + (len(line) - len(trimmed)) + len(id)
				*spans = append(*spans, Span{Start: start, End: end, Kind: String, Closed: true})
				return end
			}
		}
		if lineEnd < 0 {
			break
		}
		pos += lineEnd + 1
	}
	*spans = append(*spans, Span{Start: start, End: len(text), Kind: String})
	return len(text)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
