// Package index is the persistent per-project symbol index.
//
// An Index holds two authoritative maps, class name → declaring files and
// file → ordered records, plus derived per-class aggregations and the
// inheritance graph. Everything lives in memory between Load and Save and is
// persisted to a sqlite database under the project's storage directory.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// ErrNoIndex is returned by Load when the project has never been scanned.
var ErrNoIndex = errors.New("project has no index")

// Index is the symbol index of one project root. It is safe for concurrent
// use; readers may observe state that is behind the latest scan but never a
// partially applied file.
type Index struct {
	root string
	dir  string

	mu        sync.RWMutex
	locations map[string]map[string]struct{}          // class → paths
	files     map[string][]symbols.Record             // path → records
	classes   map[string]map[string][]symbols.Record  // class → path → class record and members
	functions map[string][]symbols.Record             // path → free functions
	dirty     map[string]bool                         // paths recorded since the last Load/Save
	full      bool                                    // Reset since the last Save
	scanID    string
	lastScan  time.Time
	hier      *hierarchy

	store *store
}

// Stats summarizes the in-memory state.
type Stats struct {
	Root     string
	Files    int
	Classes  int
	ScanID   string
	LastScan time.Time
}

// Open opens (creating if needed) the index store at <root>/<dir>.
func Open(ctx context.Context, root, dir string) (*Index, error) {
	st, err := openStore(ctx, filepath.Join(root, dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index for %s: %w", root, err)
	}
	idx := &Index{root: root, dir: dir, store: st, hier: newHierarchy()}
	idx.clear()
	return idx, nil
}

// Exists reports whether root has a storage directory, i.e. whether the
// project has opted into indexing.
func Exists(root, dir string) bool {
	info, err := os.Stat(filepath.Join(root, dir))
	return err == nil && info.IsDir()
}

// Remove deletes the database of root. The storage directory itself, which
// may hold the project configuration, is kept.
func Remove(root, dir string) error {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		path := filepath.Join(root, dir, DBFile+suffix)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// Root returns the project root the index belongs to.
func (i *Index) Root() string {
	return i.root
}

// Close releases the underlying database.
func (i *Index) Close() error {
	return i.store.close()
}

func (i *Index) clear() {
	i.locations = make(map[string]map[string]struct{})
	i.files = make(map[string][]symbols.Record)
	i.classes = make(map[string]map[string][]symbols.Record)
	i.functions = make(map[string][]symbols.Record)
	i.dirty = make(map[string]bool)
	i.hier.invalidate()
}

// Reset clears the in-memory state ahead of a full scan. The store is left
// untouched until Save, which then replaces it entirely.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.clear()
	i.full = true
}

// Load replaces the in-memory state with the persisted one. It returns
// ErrNoIndex if nothing has been saved yet.
func (i *Index) Load(ctx context.Context) error {
	snap, err := i.store.read(ctx)
	if err != nil {
		if errors.Is(err, ErrNoIndex) {
			return err
		}
		return fmt.Errorf("failed to load index: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.clear()
	i.full = false
	i.locations = snap.locations
	i.scanID = snap.scanID
	i.lastScan = snap.lastScan
	for path, records := range snap.files {
		i.setFile(path, records)
	}
	return nil
}

// Saved reports whether the store holds a completed scan, without touching
// the in-memory state.
func (i *Index) Saved(ctx context.Context) (bool, error) {
	_, err := i.store.currentScanID(ctx)
	if errors.Is(err, ErrNoIndex) {
		return false, nil
	}
	return err == nil, err
}

// Save persists the in-memory state in one transaction. After a Reset every
// stored file not recorded since is dropped.
func (i *Index) Save(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	scanID, err := i.store.write(ctx, i.locations, i.files, i.dirty, i.full)
	if err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	i.scanID = scanID
	i.lastScan = time.Now().UTC()
	i.dirty = make(map[string]bool)
	i.full = false
	return nil
}

// RecordFile replaces every record of path with records.
func (i *Index) RecordFile(path string, records []symbols.Record) {
	own := make([]symbols.Record, len(records))
	copy(own, records)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.setFile(path, own)
	i.dirty[path] = true
}

// RemoveFile forgets path, its records and every class location it held.
func (i *Index) RemoveFile(path string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.setFile(path, nil)
	delete(i.files, path)
	for name, paths := range i.locations {
		delete(paths, path)
		if len(paths) == 0 {
			delete(i.locations, name)
		}
	}
	i.dirty[path] = true
}

// setFile swaps the records of one file and refreshes the derived maps.
// Callers hold the write lock.
func (i *Index) setFile(path string, records []symbols.Record) {
	for _, r := range i.files[path] {
		if name := ownerOf(r); name != "" {
			delete(i.classes[name], path)
			if len(i.classes[name]) == 0 {
				delete(i.classes, name)
			}
		}
	}
	delete(i.functions, path)

	i.files[path] = records
	for _, r := range records {
		name := ownerOf(r)
		if name == "" {
			if r.Kind == symbols.KindFunction {
				i.functions[path] = append(i.functions[path], r)
			}
			continue
		}
		if i.classes[name] == nil {
			i.classes[name] = make(map[string][]symbols.Record)
		}
		i.classes[name][path] = append(i.classes[name][path], r)
	}
	i.hier.invalidate()
}

// ownerOf returns the class a record contributes to.
func ownerOf(r symbols.Record) string {
	if r.Kind == symbols.KindClass {
		return r.Name
	}
	return r.Class
}

// UpdateClassLocations makes path the location of exactly classNames: it is
// removed from every class it no longer declares and added to each listed
// one. Classes left without any location are dropped.
func (i *Index) UpdateClassLocations(path string, classNames ...string) {
	keep := make(map[string]bool, len(classNames))
	for _, name := range classNames {
		keep[name] = true
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for name, paths := range i.locations {
		if keep[name] {
			continue
		}
		delete(paths, path)
		if len(paths) == 0 {
			delete(i.locations, name)
		}
	}
	for name := range keep {
		if i.locations[name] == nil {
			i.locations[name] = make(map[string]struct{})
		}
		i.locations[name][path] = struct{}{}
	}
}

// LookupLocations returns the sorted files declaring className.
func (i *Index) LookupLocations(className string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.locations[className])
}

// Class returns the records contributing to name across all files that
// declare it, files in path order and records in file order. Nil if unknown.
func (i *Index) Class(name string) []symbols.Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	byPath := i.classes[name]
	var out []symbols.Record
	for _, path := range sortedKeys(byPath) {
		out = append(out, byPath[path]...)
	}
	return out
}

// HasClass reports whether some file declares name.
func (i *Index) HasClass(name string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.declared(name)
}

// Ancestors returns the parents, traits and interfaces of name, transitively,
// in breadth-first order.
func (i *Index) Ancestors(name string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return ancestors(i.hier.adjacency(i.classes), name)
}

// Functions returns every free function, ordered by path then offset.
func (i *Index) Functions() []symbols.Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []symbols.Record
	for _, path := range sortedKeys(i.functions) {
		out = append(out, i.functions[path]...)
	}
	return out
}

// ClassNames returns the sorted names of all declared classes.
func (i *Index) ClassNames() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var names []string
	for name := range i.classes {
		if i.declared(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// declared reports whether some file holds a class record for name. Callers
// hold the read lock.
func (i *Index) declared(name string) bool {
	for _, records := range i.classes[name] {
		for _, r := range records {
			if r.Kind == symbols.KindClass {
				return true
			}
		}
	}
	return false
}

// Records returns a copy of the records of path.
func (i *Index) Records(path string) []symbols.Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	records := i.files[path]
	if records == nil {
		return nil
	}
	out := make([]symbols.Record, len(records))
	copy(out, records)
	return out
}

// Paths returns the sorted paths of all recorded files.
func (i *Index) Paths() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return sortedKeys(i.files)
}

// Stats returns counters describing the in-memory state.
func (i *Index) Stats() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Stats{
		Root:     i.root,
		Files:    len(i.files),
		Classes:  len(i.locations),
		ScanID:   i.scanID,
		LastScan: i.lastScan,
	}
}
