package index

import (
	"errors"
	"sort"
	"sync"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

// Edge weights order the parents of a class: the parent class is searched
// before used traits, traits before implemented interfaces.
const (
	weightExtends = iota
	weightTrait
	weightImplements
)

// hierarchy is the class inheritance graph. It is rebuilt lazily from the
// index's per-class records after any mutation.
type hierarchy struct {
	mu    sync.Mutex
	stale bool
	adj   map[string]map[string]graph.Edge[string]
}

func newHierarchy() *hierarchy {
	return &hierarchy{stale: true}
}

func (h *hierarchy) invalidate() {
	h.mu.Lock()
	h.stale = true
	h.mu.Unlock()
}

// adjacency returns the current adjacency map, rebuilding it from classes
// when stale. The returned map is never mutated afterwards.
func (h *hierarchy) adjacency(classes map[string]map[string][]symbols.Record) map[string]map[string]graph.Edge[string] {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stale || h.adj == nil {
		h.adj = buildAdjacency(classes)
		h.stale = false
	}
	return h.adj
}

func buildAdjacency(classes map[string]map[string][]symbols.Record) map[string]map[string]graph.Edge[string] {
	g := graph.New(graph.StringHash, graph.Directed())

	link := func(from, to string, weight int) {
		if to == "" || to == from {
			return
		}
		if err := g.AddVertex(to); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return
		}
		// the first relation between two classes wins
		_ = g.AddEdge(from, to, graph.EdgeWeight(weight))
	}

	for _, name := range sortedKeys(classes) {
		if err := g.AddVertex(name); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			continue
		}
		byPath := classes[name]
		for _, path := range sortedKeys(byPath) {
			for _, r := range byPath[path] {
				if r.Kind != symbols.KindClass || r.Name != name {
					continue
				}
				for _, parent := range r.Extends {
					link(name, parent, weightExtends)
				}
				for _, trait := range r.Traits {
					link(name, trait, weightTrait)
				}
				for _, iface := range r.Implements {
					link(name, iface, weightImplements)
				}
			}
		}
	}

	adj, err := g.AdjacencyMap()
	if err != nil {
		return map[string]map[string]graph.Edge[string]{}
	}
	return adj
}

// ancestors walks the graph breadth first from name. Parents of one class
// are visited in weight order, then by name. Cycles are cut by the visited
// set; name itself is never returned.
func ancestors(adj map[string]map[string]graph.Edge[string], name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges := make([]graph.Edge[string], 0, len(adj[current]))
		for _, e := range adj[current] {
			edges = append(edges, e)
		}
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Properties.Weight != edges[j].Properties.Weight {
				return edges[i].Properties.Weight < edges[j].Properties.Weight
			}
			return edges[i].Target < edges[j].Target
		})

		for _, e := range edges {
			if seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			out = append(out, e.Target)
			queue = append(queue, e.Target)
		}
	}
	return out
}
