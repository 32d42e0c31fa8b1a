// Package analysis implements the dependency-graph scheduler: graph
// construction, cycle validation, critical path, parallel grouping and
// summary statistics.
//
// Edge direction is fixed throughout the package: an edge {From: A, To: B}
// means A depends on B, so B must finish before A can start. Roots are
// issues with no dependencies; leaves are issues nothing depends on.
package analysis

import (
	"github.com/vanderheijden86/beadplan/pkg/metrics"
	"github.com/vanderheijden86/beadplan/pkg/model"

	"gonum.org/v1/gonum/graph/simple"
)

// Graph is an immutable snapshot of issues and their dependencies.
// Build one with BuildGraph; there is no mutation API.
type Graph struct {
	nodes map[string]model.IssueNode
	ids   []string       // supplied order
	index map[string]int // id -> position in ids, doubles as gonum node id

	edges      []model.DependencyEdge // deduplicated, supplied order
	dependsOn  map[string][]string    // from -> [to...]
	dependents map[string][]string    // to -> [from...]
	depSet     map[string]map[string]struct{}

	g *simple.DirectedGraph
}

// BuildGraph validates the raw records and builds a graph snapshot.
//
// Nodes are checked first (field validation, then duplicate ids), then edges
// in order (self loops, then unknown endpoints). The first problem found is
// returned as a *StructuralError. Repeated edges are kept once.
func BuildGraph(nodes []model.IssueNode, edges []model.DependencyEdge) (*Graph, error) {
	defer metrics.Timer(metrics.GraphBuild)()

	g := &Graph{
		nodes:      make(map[string]model.IssueNode, len(nodes)),
		ids:        make([]string, 0, len(nodes)),
		index:      make(map[string]int, len(nodes)),
		dependsOn:  make(map[string][]string),
		dependents: make(map[string][]string),
		depSet:     make(map[string]map[string]struct{}),
		g:          simple.NewDirectedGraph(),
	}

	for i, n := range nodes {
		if err := n.Validate(); err != nil {
			return nil, &StructuralError{Kind: KindInvalidNode, NodeID: n.ID, Index: i, Err: err}
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, &StructuralError{Kind: KindDuplicateNode, NodeID: n.ID, Index: i}
		}
		g.nodes[n.ID] = n
		g.index[n.ID] = len(g.ids)
		g.ids = append(g.ids, n.ID)
		g.g.AddNode(simple.Node(int64(g.index[n.ID])))
	}

	for i, e := range edges {
		if e.IsSelfLoop() {
			return nil, &StructuralError{Kind: KindSelfLoop, From: e.From, To: e.To, NodeID: e.From, Index: i}
		}
		for _, end := range [2]string{e.From, e.To} {
			if _, ok := g.nodes[end]; !ok {
				return nil, &StructuralError{Kind: KindDanglingEdge, From: e.From, To: e.To, NodeID: end, Index: i}
			}
		}
		if g.HasDependency(e.From, e.To) {
			continue
		}
		set := g.depSet[e.From]
		if set == nil {
			set = make(map[string]struct{})
			g.depSet[e.From] = set
		}
		set[e.To] = struct{}{}
		g.edges = append(g.edges, e)
		g.dependsOn[e.From] = append(g.dependsOn[e.From], e.To)
		g.dependents[e.To] = append(g.dependents[e.To], e.From)

		from, to := g.g.Node(int64(g.index[e.From])), g.g.Node(int64(g.index[e.To]))
		g.g.SetEdge(g.g.NewEdge(from, to))
	}

	return g, nil
}

// Node returns the issue with the given id.
func (g *Graph) Node(id string) (model.IssueNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether the id is part of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// IDs returns node ids in the order they were supplied.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Nodes returns all issues in the order they were supplied.
func (g *Graph) Nodes() []model.IssueNode {
	out := make([]model.IssueNode, len(g.ids))
	for i, id := range g.ids {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns the deduplicated edges in the order they were supplied.
func (g *Graph) Edges() []model.DependencyEdge {
	return append([]model.DependencyEdge(nil), g.edges...)
}

// DependsOn returns the ids the issue depends on, in supplied edge order.
func (g *Graph) DependsOn(id string) []string {
	return append([]string(nil), g.dependsOn[id]...)
}

// Dependents returns the ids that depend on the issue, in supplied edge order.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// HasDependency reports whether from depends directly on to.
func (g *Graph) HasDependency(from, to string) bool {
	_, ok := g.depSet[from][to]
	return ok
}

// DependencyCount is the number of issues id depends on (fan-out).
func (g *Graph) DependencyCount(id string) int {
	return len(g.dependsOn[id])
}

// DependentCount is the number of issues depending on id (fan-in).
func (g *Graph) DependentCount(id string) int {
	return len(g.dependents[id])
}

// NodeCount returns the number of issues.
func (g *Graph) NodeCount() int { return len(g.ids) }

// EdgeCount returns the number of distinct dependency edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// IsRoot reports whether the issue has no dependencies.
func (g *Graph) IsRoot(id string) bool { return len(g.dependsOn[id]) == 0 }

// IsLeaf reports whether nothing depends on the issue.
func (g *Graph) IsLeaf(id string) bool { return len(g.dependents[id]) == 0 }

// dependsOnView and friends return the internal slices without copying.
// Callers must not modify them.
func (g *Graph) dependsOnView(id string) []string  { return g.dependsOn[id] }
func (g *Graph) dependentsView(id string) []string { return g.dependents[id] }

func (g *Graph) idOf(n int64) string { return g.ids[n] }
