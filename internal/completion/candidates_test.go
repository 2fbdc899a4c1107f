package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

func TestFunctionSnippet(t *testing.T) {
	t.Parallel()

	f := Function{Name: "find", Args: []symbols.Arg{{Name: "$id"}, {Name: "$opts", Type: "array"}}, Returns: "User"}
	assert.Equal(t, "find($id, $opts)", f.Label())
	assert.Equal(t, `find(${1:\$id}, ${2:\$opts})`, f.Snippet())
	assert.Equal(t, "find($id, $opts)\tUser", Display(f))

	empty := Function{Name: "save"}
	assert.Equal(t, "save()", empty.Snippet())
	assert.Equal(t, "save()", Display(empty))
}

func TestVariableLabels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "name", Variable{Name: "name"}.Snippet())
	assert.Equal(t, "$count", Variable{Name: "count", Sigil: true}.Snippet())
	assert.Equal(t, "TABLE", Variable{Name: "TABLE", Constant: true}.Label())
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	got := finalize([]Candidate{
		Function{Name: "b"},
		Variable{Name: "a"},
		Function{Name: "b"},
		ClassRef{Name: "a"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, Variable{Name: "a"}, got[0])
	assert.Equal(t, "b()", got[1].Label())
}

func TestPattern(t *testing.T) {
	t.Parallel()

	p, err := NewPattern(`\$this->helper\('(\w+)'\)`, "{1}_helper", false)
	require.NoError(t, err)
	class, ok := p.Resolve(`$this->helper('core')`)
	require.True(t, ok)
	assert.Equal(t, "core_helper", class)

	_, ok = p.Resolve(`$this->helper('core')->x`)
	assert.False(t, ok, "must match the whole prefix")

	_, err = NewPattern(`(`, "X", false)
	assert.Error(t, err)
	_, err = NewPattern(`(\w+)`, "{2}", false)
	assert.Error(t, err)
}
