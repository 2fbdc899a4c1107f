package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// Test Plan for Index:
// - Load before any Save reports ErrNoIndex and Saved reports false
// - Save then Load in a fresh Index round-trips records and locations
// - Recording the same file twice leaves identical state
// - UpdateClassLocations drops classes a file no longer declares
// - RemoveFile forgets a deleted file in memory and in the store
// - A full scan (Reset + Save) prunes files that were not recorded again
// - An incremental Save keeps files that were not recorded
// - Class merges redeclarations across files in path order
// - Ancestors is breadth first, ordered extends/traits/implements and cycle safe
// - Functions and ClassNames list declarations across files
// - Concurrent readers never observe a partially recorded file

func openTemp(t *testing.T) (*Index, string) {
	t.Helper()
	root := t.TempDir()
	idx, err := Open(context.Background(), root, ".phpintel")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx, root
}

func fooRecords(path string) []symbols.Record {
	return []symbols.Record{
		{Kind: symbols.KindClass, Name: "Foo", Flavor: symbols.FlavorClass, Extends: []string{"Base"}, Visibility: symbols.Public, Path: path, Offset: 6, End: 120},
		{Kind: symbols.KindFunction, Name: "bar", Class: "Foo", Args: []symbols.Arg{{Name: "$x", Type: "Baz"}}, Returns: "Baz", Visibility: symbols.Public, Path: path, Offset: 20, End: 60},
		{Kind: symbols.KindProperty, Name: "count", Class: "Foo", Visibility: symbols.Private, Static: true, Path: path, Offset: 70},
		{Kind: symbols.KindFunction, Name: "helper", Path: path, Offset: 130, End: 160},
	}
}

func TestIndex_LoadWithoutSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, _ := openTemp(t)
	err := idx.Load(ctx)
	assert.ErrorIs(t, err, ErrNoIndex)

	saved, err := idx.Saved(ctx)
	require.NoError(t, err)
	assert.False(t, saved)

	idx.Reset()
	require.NoError(t, idx.Save(ctx))
	saved, err = idx.Saved(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestIndex_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, root := openTemp(t)
	path := root + "/src/Foo.php"

	idx.Reset()
	idx.RecordFile(path, fooRecords(path))
	idx.UpdateClassLocations(path, "Foo")
	require.NoError(t, idx.Save(ctx))
	first := idx.Stats()
	assert.NotEmpty(t, first.ScanID)

	other, err := Open(ctx, root, ".phpintel")
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.Load(ctx))

	assert.Equal(t, fooRecords(path), other.Records(path))
	assert.Equal(t, []string{path}, other.LookupLocations("Foo"))
	assert.Equal(t, []string{"Foo"}, other.ClassNames())
	assert.Equal(t, first.ScanID, other.Stats().ScanID)
	assert.True(t, Exists(root, ".phpintel"))

	// saving again is idempotent apart from the scan id
	other.RecordFile(path, fooRecords(path))
	other.UpdateClassLocations(path, "Foo")
	require.NoError(t, other.Save(ctx))
	require.NoError(t, idx.Load(ctx))
	assert.Equal(t, fooRecords(path), idx.Records(path))
	assert.Equal(t, []string{path}, idx.LookupLocations("Foo"))
	assert.NotEqual(t, first.ScanID, idx.Stats().ScanID)
}

func TestIndex_RecordFileTwice(t *testing.T) {
	t.Parallel()

	idx, _ := openTemp(t)
	idx.RecordFile("a.php", fooRecords("a.php"))
	once := idx.Class("Foo")
	idx.RecordFile("a.php", fooRecords("a.php"))
	assert.Equal(t, once, idx.Class("Foo"))
	assert.Len(t, idx.Functions(), 1)
}

func TestIndex_RenameRemovesOldLocation(t *testing.T) {
	t.Parallel()

	idx, _ := openTemp(t)
	idx.UpdateClassLocations("a.php", "Foo", "Helper")
	idx.UpdateClassLocations("b.php", "Foo")
	assert.Equal(t, []string{"a.php", "b.php"}, idx.LookupLocations("Foo"))

	idx.UpdateClassLocations("a.php", "Bar")
	assert.Equal(t, []string{"b.php"}, idx.LookupLocations("Foo"))
	assert.Equal(t, []string{"a.php"}, idx.LookupLocations("Bar"))
	assert.Empty(t, idx.LookupLocations("Helper"))
	assert.Equal(t, 2, idx.Stats().Classes)

	idx.UpdateClassLocations("b.php")
	assert.Empty(t, idx.LookupLocations("Foo"))
}

func TestIndex_RemoveFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, root := openTemp(t)

	idx.Reset()
	idx.RecordFile("a.php", fooRecords("a.php"))
	idx.RecordFile("b.php", []symbols.Record{{Kind: symbols.KindClass, Name: "B", Path: "b.php"}})
	idx.UpdateClassLocations("a.php", "Foo")
	idx.UpdateClassLocations("b.php", "B")
	require.NoError(t, idx.Save(ctx))

	require.NoError(t, idx.Load(ctx))
	idx.RemoveFile("a.php")
	assert.Empty(t, idx.LookupLocations("Foo"))
	assert.False(t, idx.HasClass("Foo"))
	assert.Empty(t, idx.Functions())
	require.NoError(t, idx.Save(ctx))

	fresh, err := Open(ctx, root, ".phpintel")
	require.NoError(t, err)
	defer fresh.Close()
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, []string{"b.php"}, fresh.Paths())
	assert.Empty(t, fresh.LookupLocations("Foo"))
	assert.Equal(t, []string{"b.php"}, fresh.LookupLocations("B"))
}

func TestIndex_FullScanPrunes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, _ := openTemp(t)

	idx.Reset()
	idx.RecordFile("a.php", fooRecords("a.php"))
	idx.RecordFile("b.php", []symbols.Record{{Kind: symbols.KindClass, Name: "B", Path: "b.php"}})
	idx.UpdateClassLocations("a.php", "Foo")
	idx.UpdateClassLocations("b.php", "B")
	require.NoError(t, idx.Save(ctx))

	// incremental: b.php is untouched
	require.NoError(t, idx.Load(ctx))
	idx.RecordFile("a.php", fooRecords("a.php"))
	require.NoError(t, idx.Save(ctx))
	require.NoError(t, idx.Load(ctx))
	assert.Equal(t, []string{"a.php", "b.php"}, idx.Paths())

	// full: b.php is gone
	idx.Reset()
	idx.RecordFile("a.php", fooRecords("a.php"))
	idx.UpdateClassLocations("a.php", "Foo")
	require.NoError(t, idx.Save(ctx))
	require.NoError(t, idx.Load(ctx))
	assert.Equal(t, []string{"a.php"}, idx.Paths())
	assert.Empty(t, idx.LookupLocations("B"))
	assert.Nil(t, idx.Class("B"))
}

func TestIndex_ClassMergesRedeclarations(t *testing.T) {
	t.Parallel()

	idx, _ := openTemp(t)
	idx.RecordFile("b.php", []symbols.Record{
		{Kind: symbols.KindClass, Name: "Foo", Path: "b.php"},
		{Kind: symbols.KindFunction, Name: "fromB", Class: "Foo", Path: "b.php", Offset: 10},
	})
	idx.RecordFile("a.php", fooRecords("a.php"))

	records := idx.Class("Foo")
	require.Len(t, records, 5)
	assert.Equal(t, "a.php", records[0].Path)
	assert.Equal(t, "fromB", records[4].Name)
	assert.True(t, idx.HasClass("Foo"))
	assert.False(t, idx.HasClass("Base"), "referenced but not declared")
}

func TestIndex_Ancestors(t *testing.T) {
	t.Parallel()

	idx, _ := openTemp(t)
	idx.RecordFile("h.php", []symbols.Record{
		{Kind: symbols.KindClass, Name: "Child", Extends: []string{"Parent"}, Implements: []string{"Countable"}, Traits: []string{"Loggable"}, Path: "h.php"},
		{Kind: symbols.KindClass, Name: "Parent", Extends: []string{"Grand"}, Path: "h.php", Offset: 1},
		{Kind: symbols.KindClass, Name: "Loggable", Flavor: symbols.FlavorTrait, Path: "h.php", Offset: 2},
		{Kind: symbols.KindClass, Name: "Grand", Extends: []string{"Child"}, Path: "h.php", Offset: 3},
	})

	assert.Equal(t, []string{"Parent", "Loggable", "Countable", "Grand"}, idx.Ancestors("Child"))
	assert.Equal(t, []string{"Child", "Parent", "Loggable", "Countable"}, idx.Ancestors("Grand"))
	assert.Empty(t, idx.Ancestors("Unknown"))

	// hierarchy follows later recordings
	idx.RecordFile("h.php", []symbols.Record{
		{Kind: symbols.KindClass, Name: "Child", Path: "h.php"},
	})
	assert.Empty(t, idx.Ancestors("Child"))
}

func TestIndex_FunctionsAndClassNames(t *testing.T) {
	t.Parallel()

	idx, _ := openTemp(t)
	idx.RecordFile("b.php", []symbols.Record{{Kind: symbols.KindFunction, Name: "zeta", Path: "b.php"}})
	idx.RecordFile("a.php", fooRecords("a.php"))

	var names []string
	for _, f := range idx.Functions() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"helper", "zeta"}, names)
	assert.Equal(t, []string{"Foo"}, idx.ClassNames())
}

func TestIndex_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	idx, _ := openTemp(t)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				path := fmt.Sprintf("f%d.php", w)
				idx.RecordFile(path, fooRecords(path))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				records := idx.Class("Foo")
				assert.Equal(t, 0, len(records)%3, "a file contributes all of its class records or none")
				_ = idx.Ancestors("Foo")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, idx.Class("Foo"), 12)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx, root := openTemp(t)
	idx.Reset()
	require.NoError(t, idx.Save(ctx))
	require.NoError(t, idx.Close())

	require.NoError(t, Remove(root, ".phpintel"))
	assert.True(t, Exists(root, ".phpintel"), "storage directory is kept")

	fresh, err := Open(ctx, root, ".phpintel")
	require.NoError(t, err)
	defer fresh.Close()
	assert.ErrorIs(t, fresh.Load(ctx), ErrNoIndex)
}
