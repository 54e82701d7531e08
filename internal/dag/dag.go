// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed graph operations for topological ordering and
// cycle detection. The bundler uses it to list a script tree dependencies-first,
// and the module loader uses it to detect require cycles between in-flight loads.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle lists the nodes of the cycle. When a concrete path is known it is
		// closed (first and last elements are equal); otherwise it lists the nodes
		// Kahn's algorithm could not place.
		Cycle []string
	}

	// Graph is a directed graph keyed by string node names.
	// An edge from A to B means A must be ordered before B.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to. Both nodes are implicitly added.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, n := range g.adjacency[from] {
		if n == to {
			return
		}
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns the outgoing neighbors of a node in insertion order.
func (g *Graph) Neighbors(name string) []string {
	out := make([]string, len(g.adjacency[name]))
	copy(out, g.adjacency[name])
	return out
}

// Path returns the shortest chain of nodes leading from "from" to "to", both
// included, or nil when "to" is unreachable. Path(a, a) is [a] only when a exists.
func (g *Graph) Path(from, to string) []string {
	if !g.nodeSet[from] || !g.nodeSet[to] {
		return nil
	}
	if from == to {
		return []string{from}
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[node] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = node
			if next == to {
				chain := []string{to}
				for cur := node; cur != from; cur = prev[cur] {
					chain = append(chain, cur)
				}
				chain = append(chain, from)
				for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
					chain[i], chain[j] = chain[j], chain[i]
				}
				return chain
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// CycleThrough reports the closed cycle that adding the edge from -> to would
// create, or nil when the edge keeps the graph acyclic. The graph is not modified.
func (g *Graph) CycleThrough(from, to string) []string {
	if from == to {
		return []string{from, to}
	}
	back := g.Path(to, from)
	if back == nil {
		return nil
	}
	return append([]string{from}, back...)
}

// TopologicalSort returns a valid order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}
