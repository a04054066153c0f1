// Package toposort implements C8: ordering a dependency graph so every
// product appears after its prerequisites, via Tarjan's strongly
// connected components algorithm followed by Kahn-style layering of the
// condensation, per spec.md §4.8. It is grounded on the Tarjan and
// layering implementation in original_source/trunk/python/eups/utils.py
// (stronglyConnectedComponents, topologicalSort), reworked from
// recursive/generator Python into iterative, typed Go.
package toposort

import (
	"sort"

	"github.com/CraigLoomis/eups/errs"
)

// OnCycle selects what Sort does when it finds a multi-node strongly
// connected component.
type OnCycle int

const (
	// Warn still emits the SCC as one atomic group (its internal order
	// sorted lexically) with Group.Cyclic set, so the caller can warn;
	// Sort itself logs nothing. This is the default, matching spec.md
	// §9's resolved Open Question.
	Warn OnCycle = iota
	// Fail returns CyclicDependency instead of emitting anything.
	Fail
)

// Policy configures Sort's behavior on a detected cycle.
type Policy struct {
	OnCycle OnCycle
}

// DefaultPolicy is Warn, per spec.md §9.
var DefaultPolicy = Policy{OnCycle: Warn}

// Group is one layer entry: either a single node or, when a cycle was
// collapsed, every node of that strongly connected component, sorted
// lexically. Cyclic reports whether this group is a collapsed SCC.
type Group struct {
	Nodes  []string
	Cyclic bool
}

// Sort computes the dependency-first order of graph, a map from node
// name to the list of its direct prerequisite names (i.e. graph[x]
// contains every y that x depends on — x must be emitted after every
// y in graph[x]). The result lists groups layer by layer, without
// marking where one layer ends; groups from the same layer have no
// ordering constraint between them.
func Sort(graph map[string][]string, policy Policy) ([]Group, error) {
	sccs := tarjanSCCs(graph)

	nodeSCC := make(map[string]int, len(graph))
	for i, comp := range sccs {
		for _, n := range comp {
			nodeSCC[n] = i
		}
	}

	// condensation[i] lists the SCC indices that SCC i depends on.
	condensation := make([]map[int]bool, len(sccs))
	for i := range condensation {
		condensation[i] = make(map[int]bool)
	}
	for node, deps := range graph {
		ni := nodeSCC[node]
		for _, dep := range deps {
			di, ok := nodeSCC[dep]
			if !ok || di == ni {
				continue
			}
			condensation[ni][di] = true
		}
	}

	return layer(sccs, condensation, policy)
}

// tarjanSCCs computes strongly connected components of graph using
// Tarjan's algorithm, iteratively to avoid recursion depth limits on
// large dependency graphs. Components are returned in the order their
// root is fully popped, and each component's member order is arbitrary
// (the original's stack order) — Sort re-sorts cyclic groups lexically
// before emitting them.
func tarjanSCCs(graph map[string][]string) [][]string {
	index := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var result [][]string
	counter := 0

	type frame struct {
		node    string
		i       int // index into graph[node] of the next successor to process
	}

	var nodes []string
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes) // deterministic visiting order across runs

	var strongconnect func(v string)
	strongconnect = func(v string) {
		var work []frame
		work = append(work, frame{node: v})
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			succs := graph[top.node]
			if top.i < len(succs) {
				w := succs[top.i]
				top.i++
				if _, seen := index[w]; !seen {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, frame{node: w})
				} else if onStack[w] {
					if index[w] < lowlink[top.node] {
						lowlink[top.node] = index[w]
					}
				}
				continue
			}

			// Done with top.node's successors: pop it and propagate its
			// lowlink to its caller.
			work = work[:len(work)-1]
			if len(work) > 0 {
				caller := &work[len(work)-1]
				if lowlink[top.node] < lowlink[caller.node] {
					lowlink[caller.node] = lowlink[top.node]
				}
			}

			if lowlink[top.node] == index[top.node] {
				var comp []string
				for {
					n := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[n] = false
					comp = append(comp, n)
					if n == top.node {
						break
					}
				}
				result = append(result, comp)
			}
		}
	}

	for _, n := range nodes {
		if _, seen := index[n]; !seen {
			strongconnect(n)
		}
	}
	return result
}

// layer performs Kahn-style layering over the condensation DAG:
// repeatedly emit every SCC with zero remaining in-degree (computed as
// "depends on nothing not yet emitted"), then remove them.
func layer(sccs [][]string, condensation []map[int]bool, policy Policy) ([]Group, error) {
	remaining := make([]map[int]bool, len(condensation))
	for i, deps := range condensation {
		remaining[i] = make(map[int]bool, len(deps))
		for d := range deps {
			remaining[i][d] = true
		}
	}
	emitted := make([]bool, len(sccs))

	var groups []Group
	for {
		var ready []int
		for i := range sccs {
			if emitted[i] {
				continue
			}
			if len(remaining[i]) == 0 {
				ready = append(ready, i)
			}
		}
		if len(ready) == 0 {
			break
		}
		sort.Ints(ready)

		for _, i := range ready {
			emitted[i] = true
			nodes := append([]string(nil), sccs[i]...)
			sort.Strings(nodes)
			cyclic := len(nodes) > 1
			if cyclic && policy.OnCycle == Fail {
				return nil, errs.New(errs.CyclicDependency, "topologicalSort", "cycle among %v", nodes)
			}
			groups = append(groups, Group{Nodes: nodes, Cyclic: cyclic})
		}
		for i := range remaining {
			if emitted[i] {
				continue
			}
			for _, r := range ready {
				delete(remaining[i], r)
			}
		}
	}

	for i := range sccs {
		if !emitted[i] {
			// Only reachable if the condensation itself were cyclic,
			// which can't happen by construction — defensive per
			// spec.md §4.8 point 4.
			return nil, errs.New(errs.CyclicDependency, "topologicalSort", "condensation failed to fully layer, corrupted computation")
		}
	}

	return groups, nil
}
