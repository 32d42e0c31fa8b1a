package analysis

import (
	"sort"

	"github.com/vanderheijden86/beadplan/pkg/debug"
	"github.com/vanderheijden86/beadplan/pkg/metrics"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// DAG is a graph that passed Validate. The critical-path, planning and
// slack functions only accept a *DAG, so they never see a cyclic graph.
type DAG struct {
	*Graph
	order []string // dependencies first
}

// Order returns a deterministic topological order with every issue placed
// after all of the issues it depends on.
func (d *DAG) Order() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

const (
	unvisited uint8 = iota
	inProgress
	done
)

type dfsFrame struct {
	id   string
	next int // index of the next dependency to explore
}

// Validate checks that the dependency relation is acyclic.
//
// Nodes are visited in supplied order and dependencies in supplied edge
// order, so the reported cycle is stable for a given input. On failure the
// error is a *CycleError.
func Validate(g *Graph) (*DAG, error) {
	stop := metrics.Timer(metrics.CycleDetection)
	cycle := findFirstCycle(g)
	stop()

	if cycle != nil {
		err := &CycleError{Cycle: cycle, Components: cyclicComponents(g)}
		debug.Log("validate: %v", err)
		return nil, err
	}

	return &DAG{Graph: g, order: stabilizedOrder(g)}, nil
}

// findFirstCycle runs an iterative three-color DFS and returns the first
// closed walk it meets, or nil.
func findFirstCycle(g *Graph) []string {
	state := make(map[string]uint8, len(g.ids))
	onStack := make(map[string]int) // id -> depth in stack

	for _, root := range g.ids {
		if state[root] != unvisited {
			continue
		}
		stack := []dfsFrame{{id: root}}
		state[root] = inProgress
		onStack[root] = 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.dependsOnView(top.id)
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				switch state[dep] {
				case inProgress:
					start := onStack[dep]
					cycle := make([]string, 0, len(stack)-start+1)
					for _, f := range stack[start:] {
						cycle = append(cycle, f.id)
					}
					return append(cycle, dep)
				case unvisited:
					state[dep] = inProgress
					onStack[dep] = len(stack)
					stack = append(stack, dfsFrame{id: dep})
				}
				continue
			}
			state[top.id] = done
			delete(onStack, top.id)
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

// cyclicComponents lists strongly connected components with more than one
// node. Self loops are rejected at build time, so singletons never cycle.
func cyclicComponents(g *Graph) [][]string {
	var out [][]string
	for _, scc := range topo.TarjanSCC(g.g) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]string, len(scc))
		for i, n := range scc {
			ids[i] = g.idOf(n.ID())
		}
		SortIDs(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i][0], out[j][0]) })
	return out
}

// stabilizedOrder returns a dependencies-first topological order. gonum
// sorts edge sources before targets, i.e. dependents first, so the result
// is reversed.
func stabilizedOrder(g *Graph) []string {
	defer metrics.Timer(metrics.TopologicalSort)()

	byID := func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool {
			return lessID(g.idOf(nodes[i].ID()), g.idOf(nodes[j].ID()))
		})
	}
	sorted, err := topo.SortStabilized(g.g, byID)
	if err != nil {
		// Unreachable after findFirstCycle succeeded.
		panic("analysis: topological sort failed on validated graph: " + err.Error())
	}

	order := make([]string, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		order = append(order, g.idOf(sorted[i].ID()))
	}
	return order
}

// FindCycles reports up to limit cycles without failing, one per cyclic
// component. Each cycle is the shortest closed walk through the smallest id
// of its component. A limit <= 0 means no limit.
func FindCycles(g *Graph, limit int) [][]string {
	defer metrics.Timer(metrics.CycleDetection)()

	var cycles [][]string
	for _, comp := range cyclicComponents(g) {
		if limit > 0 && len(cycles) >= limit {
			break
		}
		if c := shortestCycleThrough(g, comp[0], comp); c != nil {
			cycles = append(cycles, c)
		}
	}
	return cycles
}

// shortestCycleThrough does a BFS from start along dependency edges,
// restricted to the component, until it reaches start again.
func shortestCycleThrough(g *Graph, start string, comp []string) []string {
	member := make(map[string]bool, len(comp))
	for _, id := range comp {
		member[id] = true
	}

	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependsOnView(cur) {
			if !member[dep] {
				continue
			}
			if dep == start {
				var rev []string
				for n := cur; n != ""; n = parent[n] {
					rev = append(rev, n)
				}
				cycle := make([]string, 0, len(rev)+1)
				for i := len(rev) - 1; i >= 0; i-- {
					cycle = append(cycle, rev[i])
				}
				return append(cycle, start)
			}
			if _, seen := parent[dep]; !seen {
				parent[dep] = cur
				queue = append(queue, dep)
			}
		}
	}
	return nil
}
