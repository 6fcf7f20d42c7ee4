// Package reflector turns discovered type descriptors into the mapping
// graph: class and interface definitions with their property and relation
// end-point definitions, and the relation definitions pairing those end
// points.
package reflector

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/mapping/internal/discovery"
)

// InheritanceGraph is the dependency graph between discovered types. An
// edge points from a type to each type it derives from, implements or
// extends.
type InheritanceGraph struct {
	order []string
	edges map[string][]string // type -> supertypes
}

// NewInheritanceGraph creates the graph for the given descriptors. Edges to
// types outside the set are dropped.
func NewInheritanceGraph(types []*discovery.TypeDescriptor) *InheritanceGraph {
	graph := &InheritanceGraph{
		edges: make(map[string][]string),
	}

	known := make(map[string]bool, len(types))
	for _, t := range types {
		known[t.Name] = true
		graph.order = append(graph.order, t.Name)
	}

	for _, t := range types {
		if t.Base != "" && known[t.Base] {
			graph.edges[t.Name] = append(graph.edges[t.Name], t.Base)
		}
		for _, iface := range t.Interfaces {
			if known[iface] {
				graph.edges[t.Name] = append(graph.edges[t.Name], iface)
			}
		}
	}

	return graph
}

// DetectCycles returns every inheritance cycle, visiting types in
// declaration order
func (g *InheritanceGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range g.order {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// Supertypes returns the direct supertypes of a type
func (g *InheritanceGraph) Supertypes(name string) []string {
	return append([]string(nil), g.edges[name]...)
}

// Subtypes returns the types that directly derive from, implement or extend name
func (g *InheritanceGraph) Subtypes(name string) []string {
	var result []string
	for _, node := range g.order {
		for _, super := range g.edges[node] {
			if super == name {
				result = append(result, node)
				break
			}
		}
	}
	return result
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
