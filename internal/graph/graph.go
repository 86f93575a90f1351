// Package graph provides an identifier-based dependency graph with cycle
// rejection. It backs both the todo blocking graph and the goal hierarchy:
// entities reference each other by id (arena pattern) and every new edge
// is checked against the transitive closure before it is accepted.
package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned when an edge would introduce a dependency cycle.
var ErrCycle = errors.New("cycle detected")

// ErrSelfEdge is returned when an edge would create a self-loop.
var ErrSelfEdge = errors.New("self-referencing edge")

// Graph is a directed graph over int64 ids. Edges point from a node to
// the nodes it depends on: if A is blocked by B, there is an edge A → B.
type Graph struct {
	// forward maps id → set of blocker ids.
	forward map[int64]map[int64]bool
	// reverse maps id → set of dependent ids.
	reverse map[int64]map[int64]bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		forward: make(map[int64]map[int64]bool),
		reverse: make(map[int64]map[int64]bool),
	}
}

// AddEdge records that from depends on to. Nodes are created implicitly.
// Returns ErrSelfEdge for a self-loop and ErrCycle if the edge would make
// the graph cyclic; in both cases the graph is unchanged.
func (g *Graph) AddEdge(from, to int64) error {
	if from == to {
		return fmt.Errorf("%w: %d", ErrSelfEdge, from)
	}
	if g.forward[from][to] {
		return nil
	}
	// Adding from→to closes a cycle exactly when to already reaches from.
	if g.HasPath(to, from) {
		return fmt.Errorf("%w: edge %d -> %d", ErrCycle, from, to)
	}
	g.ensure(from)
	g.ensure(to)
	g.forward[from][to] = true
	g.reverse[to][from] = true
	return nil
}

// HasPath reports whether dst is reachable from src over forward edges.
func (g *Graph) HasPath(src, dst int64) bool {
	if src == dst {
		return false
	}
	visited := make(map[int64]bool)
	queue := []int64{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range g.forward[cur] {
			if next == dst {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Dependents returns every node that transitively depends on id, sorted.
func (g *Graph) Dependents(id int64) []int64 {
	visited := make(map[int64]bool)
	g.collect(g.reverse, id, visited)
	out := make([]int64, 0, len(visited))
	for v := range visited {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Blockers returns every node that id transitively depends on, sorted.
func (g *Graph) Blockers(id int64) []int64 {
	visited := make(map[int64]bool)
	g.collect(g.forward, id, visited)
	out := make([]int64, 0, len(visited))
	for v := range visited {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Graph) ensure(id int64) {
	if g.forward[id] == nil {
		g.forward[id] = make(map[int64]bool)
	}
	if g.reverse[id] == nil {
		g.reverse[id] = make(map[int64]bool)
	}
}

func (g *Graph) collect(edges map[int64]map[int64]bool, id int64, visited map[int64]bool) {
	for next := range edges[id] {
		if !visited[next] {
			visited[next] = true
			g.collect(edges, next, visited)
		}
	}
}
