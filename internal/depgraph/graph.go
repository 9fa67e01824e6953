package depgraph

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/r2md/pkg/types"
)

// Edge records that From references (depends on) To
type Edge struct {
	From string
	To   string
}

// Graph is a directed dependency graph over file paths. Node order is the
// order the files were scanned in and drives tie-breaking in Sort.
type Graph struct {
	nodes []string
	index map[string]int
	deps  [][]int // out-edges in insertion order
	seen  map[[2]int]struct{}
	edges int
}

// NewGraph creates a graph with one node per path. Repeated paths are
// ignored after their first occurrence.
func NewGraph(paths []string) *Graph {
	g := &Graph{
		nodes: make([]string, 0, len(paths)),
		index: make(map[string]int, len(paths)),
		seen:  make(map[[2]int]struct{}),
	}
	for _, p := range paths {
		if _, dup := g.index[p]; dup {
			continue
		}
		g.index[p] = len(g.nodes)
		g.nodes = append(g.nodes, p)
	}
	g.deps = make([][]int, len(g.nodes))
	return g
}

// AddEdge adds from -> to. It reports false, adding nothing, when either
// endpoint is not a node, the edge points at itself, or it already exists.
func (g *Graph) AddEdge(from, to string) bool {
	fi, ok := g.index[from]
	if !ok {
		return false
	}
	ti, ok := g.index[to]
	if !ok || fi == ti {
		return false
	}
	key := [2]int{fi, ti}
	if _, dup := g.seen[key]; dup {
		return false
	}
	g.seen[key] = struct{}{}
	g.deps[fi] = append(g.deps[fi], ti)
	g.edges++
	return true
}

// Has reports whether p is a node
func (g *Graph) Has(p string) bool {
	_, ok := g.index[p]
	return ok
}

// Nodes returns the node paths in scan order
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Dependencies returns the paths p references, in insertion order
func (g *Graph) Dependencies(p string) []string {
	i, ok := g.index[p]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.deps[i]))
	for _, d := range g.deps[i] {
		out = append(out, g.nodes[d])
	}
	return out
}

// Edges returns every edge, grouped by source in node order
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for from, deps := range g.deps {
		for _, to := range deps {
			out = append(out, Edge{From: g.nodes[from], To: g.nodes[to]})
		}
	}
	return out
}

// Build scans files concurrently with at most workers goroutines and
// inserts the resulting edges one file at a time, in file order. References
// that do not name another file in the set are dropped.
func Build(ctx context.Context, files []types.FileEntry, workers int) (*Graph, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.RelativePath
	}
	g := NewGraph(paths)

	refs := make([][]string, len(files))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range files {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := files[i]
			refs[i] = Scan(f.RelativePath, f.Extension(), f.Content)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to scan imports: %w", err)
	}

	for i, f := range files {
		for _, ref := range refs[i] {
			g.AddEdge(f.RelativePath, ref)
		}
	}

	log.Debug().Int("files", g.Len()).Int("edges", g.EdgeCount()).Msg("dependency graph built")
	return g, nil
}
