package testutil

import (
	"math"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/model"
)

// TB is the subset of testing.TB the assertions need. Both *testing.T and
// *rapid.T satisfy it.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// AssertPartition verifies every node appears in exactly one group and
// groups are indexed 0..n-1 in order.
func AssertPartition(t TB, nodes []model.IssueNode, groups []analysis.ParallelGroup) {
	t.Helper()
	seen := make(map[string]int)
	for i, g := range groups {
		if g.Index != i {
			t.Errorf("group at position %d has index %d", i, g.Index)
		}
		if len(g.IssueIDs) == 0 {
			t.Errorf("group %d is empty", i)
		}
		for _, id := range g.IssueIDs {
			if prev, dup := seen[id]; dup {
				t.Errorf("issue %s appears in groups %d and %d", id, prev, i)
			}
			seen[id] = i
		}
	}
	for _, n := range nodes {
		if _, ok := seen[n.ID]; !ok {
			t.Errorf("issue %s missing from every group", n.ID)
		}
	}
	if len(seen) != len(nodes) {
		t.Errorf("groups hold %d issues, graph has %d", len(seen), len(nodes))
	}
}

// AssertGroupsRespectDependencies verifies every dependency sits in a
// strictly earlier group than its dependent. Edges touching issues absent
// from the plan are ignored.
func AssertGroupsRespectDependencies(t TB, edges []model.DependencyEdge, groups []analysis.ParallelGroup) {
	t.Helper()
	idx := analysis.GroupIndex(groups)
	for _, e := range edges {
		from, okFrom := idx[e.From]
		to, okTo := idx[e.To]
		if !okFrom || !okTo {
			continue
		}
		if to >= from {
			t.Errorf("edge %s: dependency in group %d, dependent in group %d", e, to, from)
		}
	}
}

// AssertClosedWalk verifies the cycle starts and ends on the same node and
// every consecutive pair is an edge.
func AssertClosedWalk(t TB, edges []model.DependencyEdge, cycle []string) {
	t.Helper()
	if len(cycle) < 3 {
		t.Fatalf("cycle too short to be a closed walk: %v", cycle)
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle does not close: %v", cycle)
	}
	set := make(map[model.DependencyEdge]bool, len(edges))
	for _, e := range edges {
		set[e] = true
	}
	for i := 0; i+1 < len(cycle); i++ {
		e := model.DependencyEdge{From: cycle[i], To: cycle[i+1]}
		if !set[e] {
			t.Errorf("cycle step %s is not an edge", e)
		}
	}
}

// AssertPathIsChain verifies consecutive path entries are dependency edges
// (path[i+1] depends on path[i]), that the path starts at a root and ends
// at a leaf, and that TotalDuration is the sum of path efforts.
func AssertPathIsChain(t TB, g *analysis.Graph, cp analysis.CriticalPath) {
	t.Helper()
	if len(cp.Path) == 0 {
		if g.NodeCount() != 0 {
			t.Errorf("empty critical path on non-empty graph")
		}
		return
	}
	for i := 0; i+1 < len(cp.Path); i++ {
		if !g.HasDependency(cp.Path[i+1], cp.Path[i]) {
			t.Errorf("%s does not depend on %s", cp.Path[i+1], cp.Path[i])
		}
	}
	if !g.IsRoot(cp.Path[0]) {
		t.Errorf("path starts at %s, which has dependencies", cp.Path[0])
	}
	if last := cp.Path[len(cp.Path)-1]; !g.IsLeaf(last) {
		t.Errorf("path ends at %s, which has dependents", last)
	}
	sum := 0.0
	for _, id := range cp.Path {
		n, _ := g.Node(id)
		sum += n.Effort
	}
	if math.Abs(sum-cp.TotalDuration) > 1e-9 {
		t.Errorf("TotalDuration = %v, sum of path efforts = %v", cp.TotalDuration, sum)
	}
}

// LongestPathBruteForce enumerates every root-to-leaf chain and returns the
// largest effort sum. Exponential; keep fixtures small.
func LongestPathBruteForce(g *analysis.Graph) float64 {
	var walk func(id string) float64
	walk = func(id string) float64 {
		n, _ := g.Node(id)
		best := 0.0
		for _, dep := range g.Dependents(id) {
			best = math.Max(best, walk(dep))
		}
		return n.Effort + best
	}
	best := 0.0
	for _, id := range g.IDs() {
		if g.IsRoot(id) {
			best = math.Max(best, walk(id))
		}
	}
	return best
}
