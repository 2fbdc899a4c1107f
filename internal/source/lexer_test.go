package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for source regions:
// - Plain PHP without an open tag has no HTML region
// - Inline HTML before "<?php" and after "?>" is non-code
// - Single, double and backtick strings honor backslash escapes
// - "#", "//" and block comments are non-code; "#[" attributes are code
// - "/**" opens a doc comment, "/**/" does not
// - Heredoc and nowdoc bodies end at an (optionally indented) closing id
// - Unterminated regions extend to the end of the text
// - Mask keeps offsets and newlines stable

func TestSpans_Comments(t *testing.T) {
	t.Parallel()

	text := "<?php\n# hash\n// slash\n/* block */\n/** doc */\n/**/\n#[Attr]\n"
	spans := Spans(text)

	kinds := make([]SpanKind, 0, len(spans))
	for _, s := range spans {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []SpanKind{LineComment, LineComment, BlockComment, DocComment, BlockComment}, kinds)

	doc := spans[3]
	assert.Equal(t, "/** doc */", text[doc.Start:doc.End])
	assert.True(t, doc.Closed)
}

func TestSpans_Strings(t *testing.T) {
	t.Parallel()

	text := `<?php $a = 'it\'s'; $b = "say \"hi\""; $c = ` + "`ls`;"
	spans := Spans(text)
	require.Len(t, spans, 3)
	assert.Equal(t, `'it\'s'`, text[spans[0].Start:spans[0].End])
	assert.Equal(t, `"say \"hi\""`, text[spans[1].Start:spans[1].End])
	assert.Equal(t, "`ls`", text[spans[2].Start:spans[2].End])
}

func TestSpans_HTML(t *testing.T) {
	t.Parallel()

	text := "<h1>title</h1>\n<?php echo 1; ?>\n<p>tail</p>"
	spans := Spans(text)
	require.Len(t, spans, 2)
	assert.Equal(t, HTML, spans[0].Kind)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, HTML, spans[1].Kind)
	assert.Equal(t, len(text), spans[1].End)

	assert.False(t, InCode(text, 3))
	assert.True(t, InCode(text, strings.Index(text, "echo")+2))
	assert.False(t, InCode(text, len(text)-2))
}

func TestSpans_PurePHP(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Spans("$a->b()->c"))
	assert.True(t, InCode("$a->b", 5))
}

func TestSpans_Heredoc(t *testing.T) {
	t.Parallel()

	text := "<?php\n$s = <<<EOT\n  $x->y\n  EOT;\n$n = <<<'RAW'\nraw\nRAW;\n$z->"
	spans := Spans(text)
	require.Len(t, spans, 2)
	assert.Equal(t, "<<<EOT\n  $x->y\n  EOT", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "<<<'RAW'\nraw\nRAW", text[spans[1].Start:spans[1].End])
	assert.True(t, InCode(text, len(text)))
	assert.False(t, InCode(text, strings.Index(text, "$x->")+4))
}

func TestInCode_Boundaries(t *testing.T) {
	t.Parallel()

	text := "<?php $a = 'abc'; // note\n$b"
	open := strings.Index(text, "'")
	assert.True(t, InCode(text, open), "cursor before the quote")
	assert.False(t, InCode(text, open+2))
	assert.True(t, InCode(text, open+5), "cursor after the closing quote")

	comment := strings.Index(text, "//")
	assert.False(t, InCode(text, comment+4))
	assert.True(t, InCode(text, len(text)))
}

func TestInCode_Unterminated(t *testing.T) {
	t.Parallel()

	text := "<?php $a = 'abc"
	assert.False(t, InCode(text, len(text)))

	text = "<?php /* open"
	assert.False(t, InCode(text, len(text)))
}

func TestMask(t *testing.T) {
	t.Parallel()

	text := "<?php\n/** @return Foo */\nfunction a() { return '}'; } // {\n"
	masked, docs := Mask(text)
	require.Len(t, masked, len(text))
	require.Len(t, docs, 1)
	assert.Equal(t, "/** @return Foo */", text[docs[0].Start:docs[0].End])

	assert.Equal(t, strings.Count(text, "\n"), strings.Count(string(masked), "\n"))
	assert.Equal(t, 1, strings.Count(string(masked), "{"))
	assert.Equal(t, 1, strings.Count(string(masked), "}"))
	assert.Contains(t, string(masked), "function a()")
}
