// Package graph assembles all stages of a project into a directed acyclic
// graph and computes the execution orders the reproduction engine needs.
//
// Stages reference each other indirectly through shared paths: an edge runs
// from the stage producing a path to every stage declaring that path as a
// dependency. The graph holds an arena of stage records plus a separately
// built adjacency index; stages never point at each other directly.
package graph

import (
	"fmt"
	"sort"

	"github.com/marmos91/dittotrack/pkg/stage"
)

// Graph is the validated dependency graph of a project.
//
// Construction fails fast on the two build-time invariant violations:
// duplicate output declarations and cycles. Both are reported before any
// stage executes.
type Graph struct {
	// stages is the arena, in deterministic (name-sorted) order.
	stages []*stage.Stage

	// byName indexes the arena by stage name.
	byName map[string]*stage.Stage

	// producers maps each output path to the stage that produces it.
	producers map[string]*stage.Stage

	// parents maps a stage name to the stages producing its dependencies,
	// i.e. the stages that must run before it.
	parents map[string][]*stage.Stage
}

// Build validates all stage records and assembles the graph.
//
// For every dependency path of every stage, the stage (if any) whose output
// set contains that path becomes a parent. A dependency with no producing
// stage is a graph source (an external input) and creates no edge.
//
// Parameters:
//   - stages: All stage records of the project
//
// Returns:
//   - *Graph: Validated graph
//   - error: *DuplicateOutputError if two stages declare the same output,
//     *CycleError if the graph has a cycle (with the full cycle path)
func Build(stages []*stage.Stage) (*Graph, error) {
	g := &Graph{
		stages:    make([]*stage.Stage, len(stages)),
		byName:    make(map[string]*stage.Stage, len(stages)),
		producers: make(map[string]*stage.Stage),
		parents:   make(map[string][]*stage.Stage),
	}

	copy(g.stages, stages)
	sort.Slice(g.stages, func(i, j int) bool { return g.stages[i].Name < g.stages[j].Name })

	// ========================================================================
	// Step 1: Index producers; duplicate outputs fail the build immediately
	// ========================================================================

	for _, s := range g.stages {
		if _, dup := g.byName[s.Name]; dup {
			return nil, fmt.Errorf("stage %s declared twice", s.Name)
		}
		g.byName[s.Name] = s

		for _, out := range s.Outs {
			if prev, dup := g.producers[out.Path]; dup {
				return nil, &DuplicateOutputError{
					Path:   out.Path,
					Stages: []string{prev.Name, s.Name},
				}
			}
			g.producers[out.Path] = s
		}
	}

	// ========================================================================
	// Step 2: Build producer→consumer edges through shared paths
	// ========================================================================

	for _, s := range g.stages {
		for _, dep := range s.Deps {
			if producer, ok := g.producers[dep.Path]; ok {
				g.parents[s.Name] = append(g.parents[s.Name], producer)
			}
		}
	}

	// ========================================================================
	// Step 3: Cycle detection (depth-first three-coloring)
	// ========================================================================

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Stages: cycle}
	}

	return g, nil
}

// Stages returns the arena in deterministic order.
func (g *Graph) Stages() []*stage.Stage {
	return g.stages
}

// Stage returns the stage with the given name.
func (g *Graph) Stage(name string) (*stage.Stage, bool) {
	s, ok := g.byName[name]
	return s, ok
}

// Producer returns the stage producing the given output path, if any.
// A path without a producer is an external input.
func (g *Graph) Producer(path string) (*stage.Stage, bool) {
	s, ok := g.producers[path]
	return s, ok
}

// Parents returns the stages that must run before the named stage.
func (g *Graph) Parents(name string) []*stage.Stage {
	return g.parents[name]
}

// dfs colors for cycle detection.
const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // fully explored
)

// findCycle runs a depth-first coloring over parent edges and returns the
// stage names forming a cycle, or nil. The returned slice is the full cycle
// path, first element repeated at the end for readability.
func (g *Graph) findCycle() []string {
	color := make(map[string]int, len(g.stages))
	var path []string

	var visit func(s *stage.Stage) []string
	visit = func(s *stage.Stage) []string {
		color[s.Name] = gray
		path = append(path, s.Name)

		for _, parent := range g.parents[s.Name] {
			switch color[parent.Name] {
			case gray:
				// Found a back edge; slice the current path from the first
				// occurrence of the parent to close the cycle.
				for i, name := range path {
					if name == parent.Name {
						cycle := append([]string{}, path[i:]...)
						return append(cycle, parent.Name)
					}
				}
			case white:
				if cycle := visit(parent); cycle != nil {
					return cycle
				}
			}
		}

		color[s.Name] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, s := range g.stages {
		if color[s.Name] == white {
			if cycle := visit(s); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// TopoOrder returns every stage in producer-before-consumer order.
//
// The order is deterministic: ties are broken by stage name, so repeated
// runs traverse the pipeline identically.
func (g *Graph) TopoOrder() []*stage.Stage {
	return g.topoFrom(g.stages)
}

// Subgraph returns the minimal producer-before-consumer ordering required to
// satisfy the named target: its ancestors plus the target itself.
//
// The target may be a stage name or an output path produced by some stage.
func (g *Graph) Subgraph(target string) ([]*stage.Stage, error) {
	s, ok := g.byName[target]
	if !ok {
		s, ok = g.producers[target]
	}
	if !ok {
		return nil, fmt.Errorf("target %q: no such stage or tracked output", target)
	}

	return g.topoFrom([]*stage.Stage{s}), nil
}

// topoFrom returns the ancestors of the given roots (plus the roots) in
// producer-before-consumer order via DFS postorder.
func (g *Graph) topoFrom(roots []*stage.Stage) []*stage.Stage {
	visited := make(map[string]bool, len(g.stages))
	var order []*stage.Stage

	var visit func(s *stage.Stage)
	visit = func(s *stage.Stage) {
		if visited[s.Name] {
			return
		}
		visited[s.Name] = true
		for _, parent := range g.parents[s.Name] {
			visit(parent)
		}
		order = append(order, s)
	}

	for _, root := range roots {
		visit(root)
	}

	return order
}
