package analysis_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vanderheijden86/beadplan/pkg/analysis"
	"github.com/vanderheijden86/beadplan/pkg/model"
	"github.com/vanderheijden86/beadplan/pkg/testutil"
)

func TestBuildGraphAdjacency(t *testing.T) {
	nodes := []model.IssueNode{
		testutil.Node("A", 2, model.PriorityP0),
		testutil.Node("B", 3, model.PriorityP1),
		testutil.Node("C", 1, model.PriorityP2),
	}
	g, err := analysis.BuildGraph(nodes, testutil.Edges("A", "B", "A", "C", "B", "C"))
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if g.NodeCount() != 3 || g.EdgeCount() != 3 {
		t.Fatalf("counts = %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
	if got := g.DependsOn("A"); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("DependsOn(A) = %v", got)
	}
	if got := g.Dependents("C"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Dependents(C) = %v", got)
	}
	if !g.HasDependency("A", "B") || g.HasDependency("B", "A") {
		t.Error("HasDependency direction is wrong")
	}
	if !g.IsRoot("C") || g.IsRoot("A") {
		t.Error("C should be the only root")
	}
	if !g.IsLeaf("A") || g.IsLeaf("C") {
		t.Error("A should be the only leaf")
	}
	if got := g.IDs(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("IDs() = %v, want supplied order", got)
	}
	if n, ok := g.Node("B"); !ok || n.Effort != 3 {
		t.Errorf("Node(B) = %+v, %v", n, ok)
	}
	if g.Has("Z") {
		t.Error("Has(Z) should be false")
	}
}

func TestBuildGraphDuplicateEdgesAreIdempotent(t *testing.T) {
	nodes := []model.IssueNode{testutil.Node("A", 1, model.PriorityP1), testutil.Node("B", 1, model.PriorityP1)}
	g, err := analysis.BuildGraph(nodes, testutil.Edges("A", "B", "A", "B", "A", "B"))
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1", g.EdgeCount())
	}
	if g.DependencyCount("A") != 1 || g.DependentCount("B") != 1 {
		t.Error("duplicate edges were double counted")
	}
}

func TestBuildGraphAccessorsReturnCopies(t *testing.T) {
	nodes := []model.IssueNode{testutil.Node("A", 1, model.PriorityP1), testutil.Node("B", 1, model.PriorityP1)}
	g, err := analysis.BuildGraph(nodes, testutil.Edges("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	deps := g.DependsOn("A")
	deps[0] = "mutated"
	if g.DependsOn("A")[0] != "B" {
		t.Error("DependsOn exposed internal state")
	}
	ids := g.IDs()
	ids[0] = "mutated"
	if g.IDs()[0] != "A" {
		t.Error("IDs exposed internal state")
	}
}

func TestBuildGraphStructuralErrors(t *testing.T) {
	a := testutil.Node("A", 1, model.PriorityP1)
	b := testutil.Node("B", 1, model.PriorityP1)

	tests := []struct {
		name     string
		nodes    []model.IssueNode
		edges    []model.DependencyEdge
		sentinel error
		kind     analysis.StructuralKind
		nodeID   string
	}{
		{"duplicate node", []model.IssueNode{a, b, a}, nil, analysis.ErrDuplicateNode, analysis.KindDuplicateNode, "A"},
		{"dangling target", []model.IssueNode{a}, testutil.Edges("A", "X"), analysis.ErrDanglingEdge, analysis.KindDanglingEdge, "X"},
		{"dangling source", []model.IssueNode{a}, testutil.Edges("Y", "A"), analysis.ErrDanglingEdge, analysis.KindDanglingEdge, "Y"},
		{"self loop", []model.IssueNode{a, b}, testutil.Edges("A", "B", "B", "B"), analysis.ErrSelfLoop, analysis.KindSelfLoop, "B"},
		{"invalid node", []model.IssueNode{{ID: "A", Priority: "P9", Status: model.StatusOpen}}, nil, analysis.ErrInvalidNode, analysis.KindInvalidNode, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := analysis.BuildGraph(tt.nodes, tt.edges)
			if g != nil {
				t.Error("graph must not be returned with a structural error")
			}
			if !errors.Is(err, tt.sentinel) || !errors.Is(err, analysis.ErrStructural) {
				t.Fatalf("err = %v, want %v", err, tt.sentinel)
			}
			var se *analysis.StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("err is %T, want *StructuralError", err)
			}
			if se.Kind != tt.kind || se.NodeID != tt.nodeID {
				t.Errorf("got kind=%s node=%s, want kind=%s node=%s", se.Kind, se.NodeID, tt.kind, tt.nodeID)
			}
			if errors.Is(err, analysis.ErrCycle) {
				t.Error("structural error must not match ErrCycle")
			}
		})
	}
}

func TestBuildGraphEmpty(t *testing.T) {
	g, err := analysis.BuildGraph(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Error("empty graph should have no nodes or edges")
	}
}
