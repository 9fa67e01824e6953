package depgraph

import (
	"container/heap"
	"context"

	"github.com/dshills/r2md/pkg/types"
)

// Sort orders the nodes so that every file comes after the files it
// depends on. Among files that are ready at the same time the one scanned
// first wins. A cycle returns *types.CycleError and no order.
func Sort(g *Graph) ([]string, error) {
	n := len(g.nodes)
	pending := make([]int, n)      // unresolved dependencies per node
	dependents := make([][]int, n) // reverse edges
	for from, deps := range g.deps {
		pending[from] = len(deps)
		for _, to := range deps {
			dependents[to] = append(dependents[to], from)
		}
	}

	h := &intHeap{}
	heap.Init(h)
	for i := 0; i < n; i++ {
		if pending[i] == 0 {
			heap.Push(h, i)
		}
	}

	order := make([]string, 0, n)
	for h.Len() > 0 {
		curr := heap.Pop(h).(int)
		order = append(order, g.nodes[curr])
		for _, d := range dependents[curr] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(h, d)
			}
		}
	}

	if len(order) < n {
		return nil, g.cycleError(pending)
	}
	return order, nil
}

// cycleError walks unresolved edges from the first unordered node until a
// node repeats. Every unordered node still has an unordered dependency, so
// the walk always closes a loop.
func (g *Graph) cycleError(pending []int) *types.CycleError {
	var remaining []string
	start := -1
	for i, p := range pending {
		if p > 0 {
			remaining = append(remaining, g.nodes[i])
			if start < 0 {
				start = i
			}
		}
	}

	pos := make(map[int]int)
	var walk []int
	for curr := start; curr >= 0; {
		if at, ok := pos[curr]; ok {
			cycle := make([]string, 0, len(walk)-at+1)
			for _, i := range walk[at:] {
				cycle = append(cycle, g.nodes[i])
			}
			cycle = append(cycle, g.nodes[curr])
			return &types.CycleError{Cycle: cycle, Remaining: remaining}
		}
		pos[curr] = len(walk)
		walk = append(walk, curr)

		next := -1
		for _, d := range g.deps[curr] {
			if pending[d] > 0 && (next < 0 || d < next) {
				next = d
			}
		}
		curr = next
	}

	return &types.CycleError{Remaining: remaining}
}

// SortEntries builds the graph for files and returns them in dependency order
func SortEntries(ctx context.Context, files []types.FileEntry, workers int) ([]types.FileEntry, error) {
	g, err := Build(ctx, files, workers)
	if err != nil {
		return nil, err
	}
	order, err := Sort(g)
	if err != nil {
		return nil, err
	}
	return Reorder(files, func(f types.FileEntry) string { return f.RelativePath }, order), nil
}

// Reorder returns items arranged to follow order, matched by key. Items
// whose key is not in order keep their relative order at the end.
func Reorder[T any](items []T, key func(T) string, order []string) []T {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}

	slots := make([][]T, len(order))
	var rest []T
	for _, it := range items {
		if r, ok := rank[key(it)]; ok {
			slots[r] = append(slots[r], it)
		} else {
			rest = append(rest, it)
		}
	}

	out := make([]T, 0, len(items))
	for _, s := range slots {
		out = append(out, s...)
	}
	return append(out, rest...)
}

// intHeap is a min-heap of node indexes
type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *intHeap) Push(x any) {
	*h = append(*h, x.(int))
}

func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
