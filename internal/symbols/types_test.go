package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Foo", "Foo"},
		{"?Foo", "Foo"},
		{`\App\Models\User`, "User"},
		{"null|Foo", "Foo"},
		{"Foo|Bar", "Foo"},
		{"Collection<int, User>", "Collection"},
		{"(A&B)|null", "A"},
		{"Foo[]", "Foo[]"},
		{" static ", "static"},
		{"null", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeType(tt.in), tt.in)
	}
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	class := Record{Kind: KindClass, Name: "Foo", Offset: 10, End: 50}
	method := Record{Kind: KindFunction, Name: "bar", Class: "Foo", Offset: 20}
	fn := Record{Kind: KindFunction, Name: "baz"}

	assert.False(t, class.IsMember())
	assert.True(t, method.IsMember())
	assert.False(t, fn.IsMember())

	assert.True(t, class.Encloses(10))
	assert.True(t, class.Encloses(50))
	assert.False(t, class.Encloses(51))
	assert.False(t, method.Encloses(20), "no extent recorded")

	assert.Equal(t, []string{"Foo", "Qux"}, ClassNames([]Record{class, method, {Kind: KindClass, Name: "Qux"}, class}))
	assert.True(t, IsSelfType("Static"))
	assert.False(t, IsSelfType("Foo"))
}
