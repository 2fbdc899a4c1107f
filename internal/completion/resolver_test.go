package completion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/phpintel/internal/chain"
	"github.com/mvp-joe/phpintel/internal/extractor"
	"github.com/mvp-joe/phpintel/internal/index"
)

// Test Plan for Resolver:
// - An instantiation head walks call return types to the final class
// - Return types declared as static resolve to the receiver through inheritance
// - "->" offers instance properties and methods; "::" static properties, constants and methods
// - Protected members appear only for classes in the enclosing class's lineage
// - Private members appear only on the class that declares them or uses their trait
// - Parameter hints type $variables; free function calls type their result
// - The partial filters candidates by prefix
// - Classes declared in the buffer take precedence over the index
// - User patterns type chain prefixes the extractor cannot see through
// - Global scope lists functions and classes; a $ partial lists parameters
// - Unresolvable chains yield no candidates

const project = `<?php
class Model {
    /** @var Connection */
    protected $connection;
    public static $instances = [];
    const TABLE = 'models';
    public function save(): bool {}
    /** @return static */
    public static function create(array $attrs) {}
    public function fresh(): static {}
    private function secret() {}
    protected function guarded() {}
}
class User extends Model {
    use Notifiable;
    public $name;
    public function posts(): PostCollection {}
}
trait Notifiable {
    public function notify($message) {}
}
class Foo { public function bar(): Baz {} }
class Baz { public $qux; }
class PostCollection { public function first(): Post {} }
class Post { public $title; }
class Mage_Catalog_Model_Product { public function load($id): static {} }
function helper(): User {}
function other() {}
`

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	idx, err := index.Open(ctx, root, ".phpintel")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	records := extractor.NewHeuristic().Extract("project.php", []byte(project))
	idx.RecordFile("project.php", records)
	return NewResolver(idx, opts...)
}

// complete resolves the buffer at the position of the "|" marker.
func complete(r *Resolver, buffer string) []Candidate {
	return r.Resolve(request(buffer))
}

func request(buffer string) Request {
	offset := strings.Index(buffer, "|")
	text := buffer[:offset] + buffer[offset+1:]
	return Request{
		Chain: chain.Parse(text, offset),
		Scope: Scope{
			Records: extractor.NewHeuristic().Extract("buffer.php", []byte(text)),
			Offset:  offset,
		},
	}
}

func labels(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Label()
	}
	return out
}

func TestResolve_NewThenCall(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	cands := complete(r, "<?php (new Foo())->bar()->|")
	require.Len(t, cands, 1)
	assert.Equal(t, "qux", cands[0].Label())
	assert.Equal(t, KindVar, cands[0].Kind())

	class, ok := r.ResolveClass(request("<?php (new Foo())->bar()->|"))
	require.True(t, ok)
	assert.Equal(t, "Baz", class)
}

func TestResolve_InheritedStaticReturn(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	cands := complete(r, "<?php User::create()->|")
	assert.Equal(t, []string{"create($attrs)", "fresh()", "name", "notify($message)", "posts()", "save()"}, labels(cands))
}

func TestResolve_StaticAccess(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	cands := complete(r, "<?php User::|")
	assert.Equal(t, []string{"$instances", "TABLE", "create($attrs)", "fresh()", "notify($message)", "posts()", "save()"}, labels(cands))

	cands = complete(r, "<?php User::$in|")
	assert.Equal(t, []string{"$instances"}, labels(cands))
}

func TestResolve_ThisSeesNonPublic(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	buffer := `<?php
class Admin extends User {
    public function promote() {
        $this->|
    }
}
`
	got := labels(complete(r, buffer))
	assert.Contains(t, got, "promote()")
	assert.Contains(t, got, "guarded()")
	assert.NotContains(t, got, "secret()")
	assert.Contains(t, got, "connection")
	assert.Contains(t, got, "notify($message)")
	assert.NotContains(t, got, "$instances")
	assert.NotContains(t, got, "TABLE")

	got = labels(complete(r, strings.Replace(buffer, "$this->|", "$this->po|", 1)))
	assert.Equal(t, []string{"posts()", "promote()"}, got)
}

func TestResolve_OwnPrivateMembers(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	buffer := `<?php
class Vault {
    private $key;
    private function unlock() {}
    public function open() {
        $this->|
    }
}
`
	assert.Equal(t, []string{"key", "open()", "unlock()"}, labels(complete(r, buffer)))

	buffer = `<?php
trait Sealed {
    private function seal() {}
}
class Envelope {
    use Sealed;
    public function send() {
        $this->|
    }
}
`
	assert.Equal(t, []string{"seal()", "send()"}, labels(complete(r, buffer)))
}

func TestResolve_PropertyChainHidesForeignNonPublic(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	buffer := `<?php
class Repo {
    public function find() {}
    protected function internalHelper() {}
    private $secretState;
}
class Service {
    /** @var Repo */
    protected $repo;
    public function run() {
        $this->repo->|
    }
}
`
	assert.Equal(t, []string{"find()"}, labels(complete(r, buffer)))

	// The enclosing class's own protected property stays visible
	got := labels(complete(r, strings.Replace(buffer, "$this->repo->|", "$this->|", 1)))
	assert.Contains(t, got, "repo")
}

func TestResolve_ParentHidesAncestorPrivate(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	buffer := `<?php
class Base {
    private static function hidden() {}
    protected static function prot() {}
    public static function pub() {}
}
class Child extends Base {
    public static function run() {
        parent::|
    }
}
`
	assert.Equal(t, []string{"prot()", "pub()"}, labels(complete(r, buffer)))

	got := labels(complete(r, strings.Replace(buffer, "parent::|", "Base::|", 1)))
	assert.Equal(t, []string{"prot()", "pub()"}, got, "ancestor named explicitly from a subclass")
}

func TestResolve_UnrelatedClassHidesNonPublic(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	buffer := `<?php
class Report {
    public function build(User $user) {
        $user->|
    }
}
`
	got := labels(complete(r, buffer))
	assert.Contains(t, got, "save()")
	assert.NotContains(t, got, "guarded()")
	assert.NotContains(t, got, "secret()")
	assert.NotContains(t, got, "connection")
}

func TestResolve_ParameterAndFunctionHeads(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	cands := complete(r, "<?php function show(User $user) { $user->posts()->first()->| }")
	assert.Equal(t, []string{"title"}, labels(cands))

	cands = complete(r, "<?php helper()->na|")
	assert.Equal(t, []string{"name"}, labels(cands))
}

func TestResolve_BufferOverridesIndex(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	buffer := `<?php
class Post {
    public $title;
    public $draft;
    public function publish() {
        $this->dr|
    }
}
`
	assert.Equal(t, []string{"draft"}, labels(complete(r, buffer)))
}

func TestResolve_Patterns(t *testing.T) {
	t.Parallel()

	p, err := NewPattern(`Mage::getModel\('(\w+)/(\w+)'\)`, "Mage_{1}_Model_{2}", true)
	require.NoError(t, err)
	r := newTestResolver(t, WithPatterns(p))

	cands := complete(r, "<?php Mage::getModel('catalog/product')->|")
	assert.Equal(t, []string{"load($id)"}, labels(cands))

	cands = complete(r, "<?php Mage::getModel('catalog/product')->load(1)->|")
	assert.Equal(t, []string{"load($id)"}, labels(cands))
}

func TestResolve_Global(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	cands := complete(r, "<?php hel|")
	require.Len(t, cands, 1)
	assert.Equal(t, "helper()", cands[0].Label())
	assert.Equal(t, KindFunc, cands[0].Kind())

	cands = complete(r, "<?php new Us|")
	require.Len(t, cands, 1)
	assert.Equal(t, ClassRef{Name: "User"}, cands[0])

	cands = complete(r, "<?php class Local {} Lo|")
	require.Len(t, cands, 1)
	assert.Equal(t, ClassRef{Name: "Local", Flavor: "class"}, cands[0])

	cands = complete(r, "<?php function f(Post $post, $n) { $p| }")
	require.Len(t, cands, 1)
	assert.Equal(t, "$post", cands[0].Label())
	assert.Equal(t, "Post", cands[0].Detail())
}

func TestResolve_Unresolvable(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t)
	assert.Empty(t, complete(r, "<?php $nobody->|"))
	assert.Empty(t, complete(r, "<?php $this->|"), "no enclosing class")
	assert.Empty(t, complete(r, "<?php (new Foo())->missing()->|"))
	assert.Empty(t, complete(r, `<?php $s = "(new Foo())->|`))
	assert.Empty(t, complete(r, "<?php function f() { $this->connection->| }"))
}
